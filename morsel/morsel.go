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

// Package morsel implements the column-oriented record batch that flows
// between physical operators, along with the distinguished end-of-stream
// sentinel that terminates every operator's output stream.
package morsel

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/dolthub/morsel-engine/qerrors"
)

// Kind identifies the logical type family a Column holds. Struct and List
// hold nested values directly (map[string]any and []any respectively) so
// that join keys built from them can be hashed without a serialization step.
type Kind int

const (
	Int64 Kind = iota
	Float64
	Bool
	String
	Binary
	Timestamp
	Struct
	List
)

func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Binary:
		return "binary"
	case Timestamp:
		return "timestamp"
	case Struct:
		return "struct"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// isNumeric reports whether values of this kind are promotable under
// permissive schema merge (Int64 widening to Float64).
func (k Kind) isNumeric() bool {
	return k == Int64 || k == Float64
}

// ColumnType describes the static type of a column.
type ColumnType struct {
	Kind Kind
	// Elem is the element type of a List column; nil otherwise.
	Elem *ColumnType
}

// SchemaColumn is a stable identity plus a human-facing name and type.
// Operators reference columns by Identity, never by Name, so renames do
// not invalidate references held by downstream operators.
type SchemaColumn struct {
	Identity string
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is an ordered list of named, typed columns.
type Schema []SchemaColumn

// IndexOf returns the position of the column with the given identity, or -1.
func (s Schema) IndexOf(identity string) int {
	for i, c := range s {
		if c.Identity == identity {
			return i
		}
	}
	return -1
}

// Column is a typed vector of values, one per row in the owning Morsel. A
// nil entry denotes SQL NULL regardless of Kind.
type Column struct {
	Type     ColumnType
	Nullable bool
	Values   []any
}

func (c Column) Len() int { return len(c.Values) }

// Item is the tagged union that flows between operators: either a Morsel
// of data, or the distinguished end-of-stream token. It is never modeled
// as a nil or empty Morsel, so operators can tell "no rows this call" from
// "no more rows ever" unambiguously.
type Item struct {
	eos    bool
	Morsel *Morsel
}

// Data wraps a Morsel as a non-EOS stream item.
func Data(m *Morsel) Item { return Item{Morsel: m} }

// EOS is the distinguished end-of-stream item.
func EOS() Item { return Item{eos: true} }

// IsEOS reports whether this item is the end-of-stream sentinel.
func (i Item) IsEOS() bool { return i.eos }

// Morsel is an immutable, schema-typed, column-oriented batch of rows. A
// Morsel may have zero rows and still carry a schema.
type Morsel struct {
	schema  Schema
	columns []Column
	numRows int
}

// New constructs a Morsel from a schema and its parallel columns. All
// columns must have the same length, matching the schema's column count.
func New(schema Schema, columns []Column) (*Morsel, error) {
	if len(schema) != len(columns) {
		return nil, errors.Errorf("morsel: schema has %d columns but %d column vectors were given", len(schema), len(columns))
	}
	numRows := 0
	if len(columns) > 0 {
		numRows = columns[0].Len()
		for i, c := range columns {
			if c.Len() != numRows {
				return nil, errors.Errorf("morsel: column %q has %d rows, expected %d", schema[i].Name, c.Len(), numRows)
			}
		}
	}
	return &Morsel{schema: schema, columns: columns, numRows: numRows}, nil
}

// Empty returns a zero-row morsel carrying the given schema.
func Empty(schema Schema) *Morsel {
	columns := make([]Column, len(schema))
	for i, col := range schema {
		columns[i] = Column{Type: col.Type, Nullable: col.Nullable, Values: []any{}}
	}
	return &Morsel{schema: schema, columns: columns, numRows: 0}
}

// Schema returns the morsel's schema.
func (m *Morsel) Schema() Schema { return m.schema }

// NumRows returns the number of rows in the morsel.
func (m *Morsel) NumRows() int { return m.numRows }

// Column returns the column with the given identity and whether it exists.
func (m *Morsel) Column(identity string) (*Column, bool) {
	idx := m.schema.IndexOf(identity)
	if idx < 0 {
		return nil, false
	}
	return &m.columns[idx], true
}

// ColumnAt returns the column at the given position.
func (m *Morsel) ColumnAt(i int) Column { return m.columns[i] }

// MustColumn is like Column but returns a ColumnNotFound error instead of
// a boolean, for callers (operator constructors) that treat a missing
// reference as fatal.
func (m *Morsel) MustColumn(identity string) (*Column, error) {
	col, ok := m.Column(identity)
	if !ok {
		return nil, qerrors.ColumnNotFound.New(identity)
	}
	return col, nil
}

func (m *Morsel) String() string {
	return fmt.Sprintf("morsel(rows=%d, cols=%d)", m.numRows, len(m.columns))
}
