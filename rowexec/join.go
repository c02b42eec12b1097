// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rowexec

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/dolthub/morsel-engine/hashjoin"
	"github.com/dolthub/morsel-engine/morsel"
)

// JoinType selects one of the five outer-join-node variants.
type JoinType int

const (
	LeftOuter JoinType = iota
	RightOuter
	FullOuter
	LeftSemi
	LeftAnti
)

func (t JoinType) String() string {
	switch t {
	case LeftOuter:
		return "left outer"
	case RightOuter:
		return "right outer"
	case FullOuter:
		return "full outer"
	case LeftSemi:
		return "left semi"
	case LeftAnti:
		return "left anti"
	default:
		return "unknown"
	}
}

// Streaming batch sizes: right outer and full outer chunk their output,
// left outer flushes once its pending index buffer grows past a
// threshold.
const (
	rightOuterBatchSize     = 1000
	fullOuterChunkSize      = 1000
	leftOuterFlushThreshold = 50_000
)

type joinStream int

const (
	streamLeft joinStream = iota
	streamRight
)

// OuterJoin implements the left/right/full outer and left semi/anti join
// variants behind a single node, using the two-phase stream protocol: every
// morsel received is buffered as "left" input until EOS, then every morsel
// received is buffered as "right" input until its own EOS, at which point
// the buffered relations are joined and the result streamed out.
type OuterJoin struct {
	joinType   JoinType
	leftKeys   []string
	rightKeys  []string
	leftSchema morsel.Schema
	rightSchema morsel.Schema

	stream       joinStream
	leftBuffer   []*morsel.Morsel
	rightBuffer  []*morsel.Morsel
	leftRelation *morsel.Morsel
}

// NewOuterJoin validates the join-column counts (a mismatch is fatal, per
// §4.2) and constructs the two-phase join node.
func NewOuterJoin(joinType JoinType, leftSchema, rightSchema morsel.Schema, leftKeys, rightKeys []string) (*OuterJoin, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, errors.Errorf("join: mismatched join-column counts: %d left vs %d right", len(leftKeys), len(rightKeys))
	}
	return &OuterJoin{
		joinType:    joinType,
		leftSchema:  leftSchema,
		rightSchema: rightSchema,
		leftKeys:    leftKeys,
		rightKeys:   rightKeys,
		stream:      streamLeft,
	}, nil
}

// Execute implements Operator, driving the two-phase left-then-right
// buffering protocol described in §4.2.
func (j *OuterJoin) Execute(item morsel.Item) ([]morsel.Item, error) {
	switch j.stream {
	case streamLeft:
		if !item.IsEOS() {
			j.leftBuffer = append(j.leftBuffer, item.Morsel)
			return nil, nil
		}
		left, err := morsel.Concat(j.leftBuffer...)
		if err != nil {
			return nil, err
		}
		if left == nil {
			left = morsel.Empty(j.leftSchema)
		}
		j.leftRelation = left
		j.leftBuffer = nil
		j.stream = streamRight
		return nil, nil

	default: // streamRight
		if !item.IsEOS() {
			j.rightBuffer = append(j.rightBuffer, item.Morsel)
			return nil, nil
		}
		right, err := morsel.Concat(j.rightBuffer...)
		if err != nil {
			return nil, err
		}
		if right == nil {
			right = morsel.Empty(j.rightSchema)
		}
		j.rightBuffer = nil

		outputs, err := j.dispatch(j.leftRelation, right)
		if err != nil {
			return nil, err
		}

		items := make([]morsel.Item, 0, len(outputs)+1)
		for _, m := range outputs {
			items = append(items, morsel.Data(m))
		}
		items = append(items, morsel.EOS())
		return items, nil
	}
}

func (j *OuterJoin) dispatch(left, right *morsel.Morsel) ([]*morsel.Morsel, error) {
	switch j.joinType {
	case LeftOuter:
		return leftOuterJoin(left, right, j.leftKeys, j.rightKeys)
	case RightOuter:
		return rightOuterJoin(left, right, j.leftKeys, j.rightKeys)
	case FullOuter:
		return fullOuterJoin(left, right, j.leftKeys, j.rightKeys)
	case LeftSemi:
		return leftSemiJoin(left, right, j.leftKeys, j.rightKeys)
	case LeftAnti:
		return leftAntiJoin(left, right, j.leftKeys, j.rightKeys)
	default:
		return nil, errors.Errorf("join: unknown join type %v", j.joinType)
	}
}

// hasKeyNameCollision reports the key ordering quirk condition: a left-side
// join column sharing its Name with some right-relation column. The
// original name-resolved implementation this is ported from swapped its
// left/right key lists in this situation. Here Identity, never Name,
// resolves every column reference; leftOuterJoin computes the condition
// but discards the result, and no join variant ever swaps its key lists.
// See DESIGN.md.
func hasKeyNameCollision(left, right *morsel.Morsel, leftKeys []string) bool {
	rightNames := make(map[string]bool, len(right.Schema()))
	for _, c := range right.Schema() {
		rightNames[c.Name] = true
	}
	for _, id := range leftKeys {
		idx := left.Schema().IndexOf(id)
		if idx >= 0 && rightNames[left.Schema()[idx].Name] {
			return true
		}
	}
	return false
}

func leftOuterJoin(left, right *morsel.Morsel, leftKeys, rightKeys []string) ([]*morsel.Morsel, error) {
	_ = hasKeyNameCollision(left, right, leftKeys)

	table, err := hashjoin.Build(right, rightKeys)
	if err != nil {
		return nil, err
	}

	var out []*morsel.Morsel
	var leftIdx, rightIdx []int

	flush := func() {
		out = append(out, mustAlign(left, right, leftIdx, rightIdx))
		leftIdx, rightIdx = nil, nil
	}

	for row := 0; row < left.NumRows(); row++ {
		matches, err := table.Probe(left, row, leftKeys)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			for _, m := range matches {
				leftIdx = append(leftIdx, row)
				rightIdx = append(rightIdx, m)
			}
		} else {
			leftIdx = append(leftIdx, row)
			rightIdx = append(rightIdx, morsel.NullIndex)
		}
		if len(leftIdx) > leftOuterFlushThreshold {
			flush()
		}
	}
	flush()

	return out, nil
}

func rightOuterJoin(left, right *morsel.Morsel, leftKeys, rightKeys []string) ([]*morsel.Morsel, error) {
	table, err := hashjoin.Build(left, leftKeys)
	if err != nil {
		return nil, err
	}

	var out []*morsel.Morsel
	n := right.NumRows()
	for start := 0; start < n || start == 0; start += rightOuterBatchSize {
		end := start + rightOuterBatchSize
		if end > n {
			end = n
		}

		var leftIdx, rightIdx []int
		for row := start; row < end; row++ {
			matches, err := table.Probe(right, row, rightKeys)
			if err != nil {
				return nil, err
			}
			if len(matches) > 0 {
				for _, m := range matches {
					leftIdx = append(leftIdx, m)
					rightIdx = append(rightIdx, row)
				}
			} else {
				leftIdx = append(leftIdx, morsel.NullIndex)
				rightIdx = append(rightIdx, row)
			}
		}
		out = append(out, mustAlign(left, right, leftIdx, rightIdx))
		if n == 0 {
			break
		}
	}

	return out, nil
}

func fullOuterJoin(left, right *morsel.Morsel, leftKeys, rightKeys []string) ([]*morsel.Morsel, error) {
	table, err := hashjoin.Build(right, rightKeys)
	if err != nil {
		return nil, err
	}

	matchedRight := roaring.New()
	var leftIdx, rightIdx []int

	for row := 0; row < left.NumRows(); row++ {
		matches, err := table.Probe(left, row, leftKeys)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			for _, m := range matches {
				leftIdx = append(leftIdx, row)
				rightIdx = append(rightIdx, m)
				matchedRight.Add(uint32(m))
			}
		} else {
			leftIdx = append(leftIdx, row)
			rightIdx = append(rightIdx, morsel.NullIndex)
		}
	}

	// Every right row never paired with a left row is emitted once with
	// left columns null. A roaring.Bitmap membership test keeps this a
	// single linear pass instead of the naive quadratic "i not in list"
	// scan (Design Notes §9).
	for i := 0; i < right.NumRows(); i++ {
		if !matchedRight.Contains(uint32(i)) {
			leftIdx = append(leftIdx, morsel.NullIndex)
			rightIdx = append(rightIdx, i)
		}
	}

	var out []*morsel.Morsel
	for start := 0; start < len(leftIdx) || start == 0; start += fullOuterChunkSize {
		end := start + fullOuterChunkSize
		if end > len(leftIdx) {
			end = len(leftIdx)
		}
		out = append(out, mustAlign(left, right, leftIdx[start:end], rightIdx[start:end]))
		if len(leftIdx) == 0 {
			break
		}
	}

	return out, nil
}

func leftSemiJoin(left, right *morsel.Morsel, leftKeys, rightKeys []string) ([]*morsel.Morsel, error) {
	table, err := hashjoin.Build(right, rightKeys)
	if err != nil {
		return nil, err
	}

	var idx []int
	for row := 0; row < left.NumRows(); row++ {
		matches, err := table.Probe(left, row, leftKeys)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			idx = append(idx, row)
		}
	}

	return []*morsel.Morsel{morsel.Take(left, idx)}, nil
}

func leftAntiJoin(left, right *morsel.Morsel, leftKeys, rightKeys []string) ([]*morsel.Morsel, error) {
	table, err := hashjoin.Build(right, rightKeys)
	if err != nil {
		return nil, err
	}

	var idx []int
	for row := 0; row < left.NumRows(); row++ {
		matches, err := table.Probe(left, row, leftKeys)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			idx = append(idx, row)
		}
	}

	return []*morsel.Morsel{morsel.Take(left, idx)}, nil
}

func mustAlign(left, right *morsel.Morsel, leftIdx, rightIdx []int) *morsel.Morsel {
	out, err := morsel.Align(left, right, leftIdx, rightIdx)
	if err != nil {
		// leftIdx/rightIdx are always constructed pairwise in this file, so
		// a length mismatch here would be a programming error, not a
		// reachable runtime condition.
		panic(err)
	}
	return out
}
