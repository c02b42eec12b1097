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

package rowexec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/morsel-engine/morsel"
	"github.com/dolthub/morsel-engine/rowexec"
)

// doubleEvaluator appends a derived column equal to 2x an existing column.
type doubleEvaluator struct {
	identity string
	source   string
}

func (d doubleEvaluator) Identity() string { return d.identity }

func (d doubleEvaluator) Eval(m *morsel.Morsel) (morsel.Column, error) {
	src, _ := m.Column(d.source)
	values := make([]any, len(src.Values))
	for i, v := range src.Values {
		values[i] = v.(int64) * 2
	}
	return morsel.Column{Type: morsel.ColumnType{Kind: morsel.Int64}, Values: values}, nil
}

func twoColMorsel(t *testing.T) *morsel.Morsel {
	t.Helper()
	schema := morsel.Schema{
		{Identity: "a", Name: "a", Type: morsel.ColumnType{Kind: morsel.Int64}},
		{Identity: "b", Name: "b", Type: morsel.ColumnType{Kind: morsel.Int64}},
	}
	m, err := morsel.New(schema, []morsel.Column{
		{Type: morsel.ColumnType{Kind: morsel.Int64}, Values: []any{int64(1), int64(2)}},
		{Type: morsel.ColumnType{Kind: morsel.Int64}, Values: []any{int64(10), int64(20)}},
	})
	require.NoError(t, err)
	return m
}

func TestProjectionPrunesAndReordersByIdentity(t *testing.T) {
	p := rowexec.NewProjection([]rowexec.ProjectionItem{
		{Column: morsel.SchemaColumn{Identity: "b", Name: "b"}},
		{Column: morsel.SchemaColumn{Identity: "a", Name: "renamed_a"}},
	})

	items, err := p.Execute(morsel.Data(twoColMorsel(t)))
	require.NoError(t, err)
	require.Len(t, items, 1)
	out := items[0].Morsel
	require.Equal(t, []string{"b", "a"}, []string{out.Schema()[0].Identity, out.Schema()[1].Identity})
	require.Equal(t, "renamed_a", out.Schema()[1].Name)
}

func TestProjectionEvaluatesAndAppendsBeforeSelecting(t *testing.T) {
	p := rowexec.NewProjection([]rowexec.ProjectionItem{
		{
			Column: morsel.SchemaColumn{Identity: "doubled", Name: "doubled", Type: morsel.ColumnType{Kind: morsel.Int64}},
			Eval:   doubleEvaluator{identity: "doubled", source: "a"},
		},
	})

	items, err := p.Execute(morsel.Data(twoColMorsel(t)))
	require.NoError(t, err)
	out := items[0].Morsel
	require.Len(t, out.Schema(), 1)
	col, ok := out.Column("doubled")
	require.True(t, ok)
	require.Equal(t, []any{int64(2), int64(4)}, col.Values)
}

func TestProjectionEOSPassesThroughUnchanged(t *testing.T) {
	p := rowexec.NewProjection(nil)
	items, err := p.Execute(morsel.EOS())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].IsEOS())
}

func TestProjectionMissingColumnIsFatal(t *testing.T) {
	p := rowexec.NewProjection([]rowexec.ProjectionItem{{Column: morsel.SchemaColumn{Identity: "missing"}}})
	_, err := p.Execute(morsel.Data(twoColMorsel(t)))
	require.Error(t, err)
}
