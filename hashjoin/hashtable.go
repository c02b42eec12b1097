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

// Package hashjoin implements the multi-key row hash table the join
// operators build one relation into and probe the other against. Keys are
// hashed with hashstructure rather than a byte-serialization scheme so that
// struct- and list-valued columns participate in a join key exactly like
// scalar ones.
package hashjoin

import (
	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"

	"github.com/dolthub/morsel-engine/morsel"
)

// Table maps the 64-bit hash of a join-key tuple to the set of build-side
// row indices that hashed to it. Collisions are preserved as a chain;
// Probe returns every candidate index for the caller to verify.
type Table struct {
	buckets map[uint64][]int
}

// Build hashes every row of m over the named key columns (by identity) and
// inserts its row index into the table. Rows with any NULL key column are
// omitted, since a NULL key can never match another row (null != null).
func Build(m *morsel.Morsel, keyIdentities []string) (*Table, error) {
	cols := make([]*morsel.Column, len(keyIdentities))
	for i, id := range keyIdentities {
		col, err := m.MustColumn(id)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}

	t := &Table{buckets: make(map[uint64][]int, m.NumRows())}
	for row := 0; row < m.NumRows(); row++ {
		tuple, ok := keyTuple(cols, row)
		if !ok {
			continue
		}
		h, err := HashTuple(tuple)
		if err != nil {
			return nil, errors.Wrap(err, "hashjoin: hashing build-side key")
		}
		t.buckets[h] = append(t.buckets[h], row)
	}
	return t, nil
}

// Probe returns the candidate build-side row indices for the given
// probe-side row. A non-matching key and a NULL key (which can never
// match) both return (nil, nil); an error is returned only for a missing
// key column or a hashing failure.
func (t *Table) Probe(m *morsel.Morsel, row int, keyIdentities []string) ([]int, error) {
	cols := make([]*morsel.Column, len(keyIdentities))
	for i, id := range keyIdentities {
		col, err := m.MustColumn(id)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	tuple, ok := keyTuple(cols, row)
	if !ok {
		return nil, nil
	}
	h, err := HashTuple(tuple)
	if err != nil {
		return nil, errors.Wrap(err, "hashjoin: hashing probe-side key")
	}
	return t.buckets[h], nil
}

// HashTuple computes the 64-bit hash of an ordered key tuple. Struct values
// (map[string]any) and list values ([]any) are hashed field-by-field /
// element-by-element by hashstructure, so nested types participate in the
// join key without a manual flattening step.
func HashTuple(tuple []any) (uint64, error) {
	return hashstructure.Hash(tuple, nil)
}

// keyTuple extracts the ordered key values for a row, reporting false if
// any of them is NULL.
func keyTuple(cols []*morsel.Column, row int) ([]any, bool) {
	tuple := make([]any, len(cols))
	for i, col := range cols {
		v := col.Values[row]
		if v == nil {
			return nil, false
		}
		tuple[i] = v
	}
	return tuple, true
}
