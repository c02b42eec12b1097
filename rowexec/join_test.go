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

func idSchema(prefix string, names ...string) morsel.Schema {
	schema := make(morsel.Schema, len(names))
	for i, n := range names {
		schema[i] = morsel.SchemaColumn{Identity: prefix + n, Name: n, Type: morsel.ColumnType{Kind: morsel.Int64}}
	}
	return schema
}

func idMorsel(t *testing.T, schema morsel.Schema, cols ...[]any) *morsel.Morsel {
	t.Helper()
	columns := make([]morsel.Column, len(cols))
	for i, vals := range cols {
		columns[i] = morsel.Column{Type: morsel.ColumnType{Kind: morsel.Int64}, Values: vals}
	}
	m, err := morsel.New(schema, columns)
	require.NoError(t, err)
	return m
}

func anyInts(vs ...int64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func runJoin(t *testing.T, j *rowexec.OuterJoin, left, right *morsel.Morsel) []morsel.Item {
	t.Helper()
	_, err := j.Execute(morsel.Data(left))
	require.NoError(t, err)
	_, err = j.Execute(morsel.EOS())
	require.NoError(t, err)
	_, err = j.Execute(morsel.Data(right))
	require.NoError(t, err)
	items, err := j.Execute(morsel.EOS())
	require.NoError(t, err)
	return items
}

// TestLeftOuterJoinCountsMatchSpecExample reproduces the worked example: a
// 5-row left relation joined with a 3-row right relation on a key matching 2
// rows on each side yields 5 - 2 + (2*2) = 7 output rows.
func TestLeftOuterJoinCountsMatchSpecExample(t *testing.T) {
	leftSchema := idSchema("l.", "key", "v")
	rightSchema := idSchema("r.", "key", "w")

	left := idMorsel(t, leftSchema, anyInts(1, 2, 2, 4, 5), anyInts(10, 20, 30, 40, 50))
	right := idMorsel(t, rightSchema, anyInts(2, 2, 9), anyInts(100, 200, 900))

	j, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	require.Len(t, items, 2)
	require.True(t, items[1].IsEOS())
	require.Equal(t, 7, items[0].Morsel.NumRows())
}

func TestLeftOuterJoinUnmatchedRowsGetNullRightColumns(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, anyInts(1, 2))
	right := idMorsel(t, rightSchema, anyInts(2))

	j, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	out := items[0].Morsel
	require.Equal(t, 2, out.NumRows())
	rKey, _ := out.Column("r.key")
	require.Contains(t, rKey.Values, nil)
}

func TestRightOuterJoinUnmatchedLeftIsNull(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, anyInts(1))
	right := idMorsel(t, rightSchema, anyInts(1, 2))

	j, err := rowexec.NewOuterJoin(rowexec.RightOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	require.Len(t, items, 2)
	out := items[0].Morsel
	require.Equal(t, 2, out.NumRows())
	lKey, _ := out.Column("l.key")
	require.Contains(t, lKey.Values, nil)
}

func TestFullOuterJoinIncludesBothUnmatchedSides(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, anyInts(1, 2))
	right := idMorsel(t, rightSchema, anyInts(2, 3))

	j, err := rowexec.NewOuterJoin(rowexec.FullOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	out := items[0].Morsel
	require.Equal(t, 3, out.NumRows())
}

func TestLeftSemiJoinEmitsLeftRowAtMostOnce(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, anyInts(1, 2, 2))
	right := idMorsel(t, rightSchema, anyInts(2, 2, 2))

	j, err := rowexec.NewOuterJoin(rowexec.LeftSemi, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	require.Len(t, items, 2)
	out := items[0].Morsel
	require.Equal(t, 2, out.NumRows())
	require.Len(t, out.Schema(), 1)
}

func TestLeftAntiJoinEmitsOnlyUnmatchedLeftRows(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, anyInts(1, 2, 3))
	right := idMorsel(t, rightSchema, anyInts(2))

	j, err := rowexec.NewOuterJoin(rowexec.LeftAnti, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	out := items[0].Morsel
	require.Equal(t, 2, out.NumRows())
	key, _ := out.Column("l.key")
	require.ElementsMatch(t, anyInts(1, 3), key.Values)
}

func TestNullJoinKeysNeverMatch(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	left := idMorsel(t, leftSchema, []any{nil})
	right := idMorsel(t, rightSchema, []any{nil})

	j, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	out := items[0].Morsel
	require.Equal(t, 1, out.NumRows())
	rKey, _ := out.Column("r.key")
	require.Nil(t, rKey.Values[0])
}

func TestKeyNameCollisionDoesNotChangeJoinResult(t *testing.T) {
	// The left join key shares a Name ("key") with a right-relation column.
	// Keys resolve by Identity, and the key lists are not swapped, so the
	// join matches l.key against r.key as usual.
	leftSchema := morsel.Schema{{Identity: "l.key", Name: "key", Type: morsel.ColumnType{Kind: morsel.Int64}}}
	rightSchema := morsel.Schema{{Identity: "r.key", Name: "key", Type: morsel.ColumnType{Kind: morsel.Int64}}}

	left := idMorsel(t, leftSchema, anyInts(1, 2))
	right := idMorsel(t, rightSchema, anyInts(2))

	j, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	items := runJoin(t, j, left, right)
	require.Equal(t, 2, items[0].Morsel.NumRows())
}

func TestMismatchedJoinColumnCountsIsFatal(t *testing.T) {
	leftSchema := idSchema("l.", "a", "b")
	rightSchema := idSchema("r.", "a")

	_, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.a", "l.b"}, []string{"r.a"})
	require.Error(t, err)
}

func TestEmptyUpstreamJoinEmitsEmptyResultThenEOS(t *testing.T) {
	leftSchema := idSchema("l.", "key")
	rightSchema := idSchema("r.", "key")

	j, err := rowexec.NewOuterJoin(rowexec.LeftOuter, leftSchema, rightSchema, []string{"l.key"}, []string{"r.key"})
	require.NoError(t, err)

	_, err = j.Execute(morsel.EOS())
	require.NoError(t, err)
	items, err := j.Execute(morsel.EOS())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 0, items[0].Morsel.NumRows())
	require.True(t, items[1].IsEOS())
}
