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
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/dolthub/morsel-engine/morsel"
	"github.com/dolthub/morsel-engine/qerrors"
)

// Direction is the sort order of a single key column.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// SortKey is one column of a (possibly multi-column) ORDER BY key.
type SortKey struct {
	Identity  string
	Direction Direction
}

// sortStrategy computes, once per call, the row order of acc under keys.
// The four strategies below are selected once at construction time (Design
// Notes: heap-sort's deep type-dispatch is a small selector computed once,
// not re-derived per batch) and share this one signature.
type sortStrategy func(acc *morsel.Morsel, keys []SortKey) []int

// HeapSort is the top-K operator: it keeps a running accumulator no larger
// than limit, re-sorting and pruning it every time a new morsel arrives,
// and emits the final accumulator on EOS. A limit of -1 disables pruning,
// degenerating to a full stable sort.
type HeapSort struct {
	keys     []SortKey
	limit    int
	schema   morsel.Schema
	strategy sortStrategy
	acc      *morsel.Morsel
}

// NewHeapSort validates that every key column exists in schema (fatal with
// ColumnNotFound otherwise, a construction-time failure rather than a
// per-row one)
// and selects a sort strategy once.
func NewHeapSort(schema morsel.Schema, keys []SortKey, limit int) (*HeapSort, error) {
	for _, k := range keys {
		if schema.IndexOf(k.Identity) < 0 {
			return nil, qerrors.ColumnNotFound.New(k.Identity)
		}
	}
	return &HeapSort{
		keys:     keys,
		limit:    limit,
		schema:   schema,
		strategy: selectSortStrategy(schema, keys),
	}, nil
}

// Execute implements Operator.
func (h *HeapSort) Execute(item morsel.Item) ([]morsel.Item, error) {
	if item.IsEOS() {
		acc := h.acc
		if acc == nil {
			acc = morsel.Empty(h.schema)
		}
		return []morsel.Item{morsel.Data(acc), morsel.EOS()}, nil
	}

	m := item.Morsel
	if m.NumRows() == 0 {
		// Edge case: a zero-row morsel mid-stream is a no-op.
		return nil, nil
	}

	merged, err := morsel.Concat(h.acc, m)
	if err != nil {
		return nil, err
	}

	indices := h.strategy(merged, h.keys)
	indices = takeLimit(indices, h.limit)
	h.acc = morsel.Take(merged, indices)

	return nil, nil
}

// takeLimit truncates a sorted index vector to limit rows. A limit of -1
// (or any negative value) disables pruning.
func takeLimit(indices []int, limit int) []int {
	if limit < 0 || limit >= len(indices) {
		return indices
	}
	return indices[:limit]
}

func selectSortStrategy(schema morsel.Schema, keys []SortKey) sortStrategy {
	kinds := make([]morsel.Kind, len(keys))
	for i, k := range keys {
		idx := schema.IndexOf(k.Identity)
		kinds[i] = schema[idx].Type.Kind
	}

	anyStringy := false
	for _, k := range kinds {
		if k == morsel.String || k == morsel.Binary {
			anyStringy = true
			break
		}
	}

	switch {
	case len(keys) == 1 && anyStringy:
		return singleStringSort
	case anyStringy:
		return multiColumnBulkSort
	case len(keys) == 1:
		return singleNumericSort
	default:
		return lexicographicSort
	}
}

// singleStringSort handles a single string/binary key directly.
func singleStringSort(acc *morsel.Morsel, keys []SortKey) []int {
	col, _ := acc.Column(keys[0].Identity)
	return stableSortIndices(acc.NumRows(), func(i, j int) int {
		return compareStrings(col.Values[i], col.Values[j])
	}, keys[0].Direction)
}


// multiColumnBulkSort handles a multi-column key where at least one column
// is string/binary, comparing column by column in key order.
func multiColumnBulkSort(acc *morsel.Morsel, keys []SortKey) []int {
	cols := resolveColumns(acc, keys)
	return stableSortIndicesMulti(acc.NumRows(), cols, keys)
}

// singleNumericSort handles a single numeric key.
func singleNumericSort(acc *morsel.Morsel, keys []SortKey) []int {
	col, _ := acc.Column(keys[0].Identity)
	return stableSortIndices(acc.NumRows(), func(i, j int) int {
		return compareNumeric(col.Values[i], col.Values[j])
	}, keys[0].Direction)
}

// lexicographicSort is the general multi-column numeric fallback.
func lexicographicSort(acc *morsel.Morsel, keys []SortKey) []int {
	cols := resolveColumns(acc, keys)
	return stableSortIndicesMulti(acc.NumRows(), cols, keys)
}

func resolveColumns(acc *morsel.Morsel, keys []SortKey) []*morsel.Column {
	cols := make([]*morsel.Column, len(keys))
	for i, k := range keys {
		cols[i], _ = acc.Column(k.Identity)
	}
	return cols
}

// stableSortIndices always sorts ascending first, then reverses the index
// vector for Descending — matching numpy.argsort(...)[::-1] rather than
// negating the comparator. The two are not equivalent under ties: reversing
// the vector puts tied rows in reverse-of-accumulator-position order, while
// a negated-comparator stable sort would keep them in accumulator-position
// order.
func stableSortIndices(n int, compare func(i, j int) int, dir Direction) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return compare(indices[a], indices[b]) < 0
	})
	if dir == Descending {
		reverse(indices)
	}
	return indices
}

func reverse(indices []int) {
	for i, j := 0, len(indices)-1; i < j; i, j = i+1, j-1 {
		indices[i], indices[j] = indices[j], indices[i]
	}
}

func stableSortIndicesMulti(n int, cols []*morsel.Column, keys []SortKey) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		for k, col := range cols {
			c := compareAny(col.Values[ia], col.Values[ib])
			if keys[k].Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return indices
}

// compareAny dispatches on the runtime type of the two values being
// compared; nil sorts before any non-nil value.
func compareAny(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if _, ok := a.(string); ok {
		return compareStrings(a, b)
	}
	return compareNumeric(a, b)
}

func compareStrings(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	as, bs := cast.ToString(a), cast.ToString(b)
	return strings.Compare(as, bs)
}

func compareNumeric(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	af, bf := cast.ToFloat64(a), cast.ToFloat64(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}
