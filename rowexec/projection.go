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
	"github.com/dolthub/morsel-engine/morsel"
	"github.com/dolthub/morsel-engine/qerrors"
)

// Evaluator computes a derived column's values for a morsel. Expression
// evaluation proper is an external collaborator (out of scope); Projection
// only depends on this seam, and calls only Eval.
type Evaluator interface {
	// Identity is the column identity this evaluator produces.
	Identity() string
	// Eval computes the column's values over every row of m.
	Eval(m *morsel.Morsel) (morsel.Column, error)
}

// ProjectionItem is one entry of a projection list: either a plain
// identifier reference (Eval is nil) or a derived expression that must be
// evaluated and appended before the final column set is selected.
type ProjectionItem struct {
	Column morsel.SchemaColumn
	Eval   Evaluator // nil for a plain identifier reference
}

// Projection prunes, reorders, and renames columns, first evaluating and
// appending any derived expressions in the projection list. Renames are
// resolved by column identity, never by name, so a renamed column still
// refers to the same upstream data.
type Projection struct {
	items []ProjectionItem
}

// NewProjection builds a projection from an ordered item list. Order by
// columns appended during the sort phase (and discarded before emission)
// are passed in items exactly like ordinary selected columns; the caller
// controls whether they appear in the final output.
func NewProjection(items []ProjectionItem) *Projection {
	return &Projection{items: items}
}

// Execute implements Operator. EOS passes through unchanged.
func (p *Projection) Execute(item morsel.Item) ([]morsel.Item, error) {
	if item.IsEOS() {
		return []morsel.Item{morsel.EOS()}, nil
	}

	m := item.Morsel
	for _, it := range p.items {
		if it.Eval == nil {
			continue
		}
		col, err := it.Eval.Eval(m)
		if err != nil {
			return nil, err
		}
		m = appendColumn(m, it.Column, col)
	}

	out, err := selectColumns(m, p.items)
	if err != nil {
		return nil, err
	}
	return []morsel.Item{morsel.Data(out)}, nil
}

func appendColumn(m *morsel.Morsel, sc morsel.SchemaColumn, col morsel.Column) *morsel.Morsel {
	schema := append(append(morsel.Schema{}, m.Schema()...), sc)
	columns := make([]morsel.Column, len(schema))
	for i := range m.Schema() {
		columns[i] = m.ColumnAt(i)
	}
	columns[len(columns)-1] = col
	out, _ := morsel.New(schema, columns)
	return out
}

func selectColumns(m *morsel.Morsel, items []ProjectionItem) (*morsel.Morsel, error) {
	schema := make(morsel.Schema, len(items))
	columns := make([]morsel.Column, len(items))
	for i, it := range items {
		col, err := m.MustColumn(it.Column.Identity)
		if err != nil {
			return nil, qerrors.ColumnNotFound.New(it.Column.Identity)
		}
		schema[i] = it.Column
		columns[i] = *col
	}
	return morsel.New(schema, columns)
}
