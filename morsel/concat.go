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

package morsel

import (
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// NullIndex marks an unmatched row in an index vector passed to Take or
// Align: the output row gets every column set to NULL instead of being
// copied from the source.
const NullIndex = -1

// Concat concatenates morsels that describe the same logical relation,
// merging schemas permissively: an Int64 column concatenated against a
// Float64 column of the same identity promotes to Float64 (via cast, since
// the underlying values are still plain Go values, not a typed arena), and
// nullability widens (the result is nullable if any input is).
//
// Nil inputs are skipped; Concat with no non-nil morsels returns nil, and
// with exactly one it returns that morsel unchanged.
func Concat(morsels ...*Morsel) (*Morsel, error) {
	var nonEmpty []*Morsel
	for _, m := range morsels {
		if m != nil {
			nonEmpty = append(nonEmpty, m)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0], nil
	}

	schema, err := mergeSchemas(nonEmpty)
	if err != nil {
		return nil, err
	}

	totalRows := 0
	for _, m := range nonEmpty {
		totalRows += m.NumRows()
	}

	columns := make([]Column, len(schema))
	for i, col := range schema {
		values := make([]any, 0, totalRows)
		for _, m := range nonEmpty {
			src, ok := m.Column(col.Identity)
			if !ok {
				return nil, errors.Errorf("morsel: concat: column %q missing from a batch being concatenated", col.Identity)
			}
			for _, v := range src.Values {
				values = append(values, coerce(v, col.Type.Kind))
			}
		}
		columns[i] = Column{Type: col.Type, Nullable: col.Nullable, Values: values}
	}

	return New(schema, columns)
}

// mergeSchemas unions the schemas of every morsel being concatenated,
// widening numeric types and nullability as it goes. Column order follows
// the first morsel's schema.
func mergeSchemas(morsels []*Morsel) (Schema, error) {
	merged := append(Schema{}, morsels[0].Schema()...)
	for _, m := range morsels[1:] {
		for _, col := range m.Schema() {
			idx := merged.IndexOf(col.Identity)
			if idx < 0 {
				merged = append(merged, col)
				continue
			}
			existing := merged[idx]
			kind, err := widen(existing.Type.Kind, col.Type.Kind)
			if err != nil {
				return nil, errors.Wrapf(err, "merging column %q", col.Identity)
			}
			existing.Type.Kind = kind
			existing.Nullable = existing.Nullable || col.Nullable
			merged[idx] = existing
		}
	}
	return merged, nil
}

// widen resolves the common type of two columns of the same identity
// appearing across batches being concatenated. Only the Int64/Float64
// promotion is permitted; any other mismatch is fatal.
func widen(a, b Kind) (Kind, error) {
	if a == b {
		return a, nil
	}
	if a.isNumeric() && b.isNumeric() {
		return Float64, nil
	}
	return a, errors.Errorf("incompatible column types %s and %s", a, b)
}

// coerce adapts a single value to the target kind when numeric promotion
// requires it. Non-numeric kinds and already-matching values pass through.
func coerce(v any, target Kind) any {
	if v == nil || target != Float64 {
		return v
	}
	if _, ok := v.(float64); ok {
		return v
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return v
	}
	return f
}

// Take returns a new morsel containing the rows at the given positions, in
// order. An index of NullIndex produces an all-NULL row and widens every
// column to Nullable.
func Take(m *Morsel, indices []int) *Morsel {
	schema := m.Schema()
	hasNull := false
	for _, idx := range indices {
		if idx == NullIndex {
			hasNull = true
			break
		}
	}

	outSchema := schema
	if hasNull {
		outSchema = make(Schema, len(schema))
		for i, col := range schema {
			col.Nullable = true
			outSchema[i] = col
		}
	}

	columns := make([]Column, len(schema))
	for i := range schema {
		src := m.ColumnAt(i)
		values := make([]any, len(indices))
		for j, idx := range indices {
			if idx == NullIndex {
				values[j] = nil
				continue
			}
			values[j] = src.Values[idx]
		}
		columns[i] = Column{Type: src.Type, Nullable: outSchema[i].Nullable, Values: values}
	}

	out, _ := New(outSchema, columns)
	return out
}

// Slice returns a new morsel containing length rows starting at offset.
// Offsets and lengths are clamped to the morsel's bounds.
func Slice(m *Morsel, offset, length int) *Morsel {
	if offset < 0 {
		offset = 0
	}
	if offset > m.NumRows() {
		offset = m.NumRows()
	}
	end := offset + length
	if length < 0 || end > m.NumRows() {
		end = m.NumRows()
	}

	indices := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		indices = append(indices, i)
	}
	return Take(m, indices)
}

// ConcatSchemas appends two relation schemas, as used by Align to build
// the output schema of a join: the concatenation of both input schemas.
func ConcatSchemas(a, b Schema) Schema {
	out := make(Schema, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Align combines two relations and two same-length index vectors (with
// NullIndex entries denoting unmatched rows) into a single output morsel
// whose schema is the concatenation of both input schemas and whose rows
// are taken by index, with NULLs where the index is NullIndex. This is the
// align_tables primitive the join operators use to materialize their
// output after index computation.
func Align(left, right *Morsel, leftIdx, rightIdx []int) (*Morsel, error) {
	if len(leftIdx) != len(rightIdx) {
		return nil, errors.Errorf("morsel: align: index vectors have different lengths (%d vs %d)", len(leftIdx), len(rightIdx))
	}

	leftTaken := Take(left, leftIdx)
	rightTaken := Take(right, rightIdx)

	schema := ConcatSchemas(leftTaken.Schema(), rightTaken.Schema())
	columns := make([]Column, 0, len(schema))
	for i := range leftTaken.Schema() {
		columns = append(columns, leftTaken.ColumnAt(i))
	}
	for i := range rightTaken.Schema() {
		columns = append(columns, rightTaken.ColumnAt(i))
	}

	return New(schema, columns)
}
