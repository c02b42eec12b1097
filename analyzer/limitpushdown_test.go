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

package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/morsel-engine/analyzer"
	"github.com/dolthub/morsel-engine/plan"
)

// Scan -> Filter -> Projection -> Limit -> Projection (root, the output
// node). A moved Limit must have a node on each side, so every plan here
// ends in an output node above the limits. The limit should end up
// immediately after Filter, the nearest barrier toward the leaves, crossing
// the transparent Projection on the way.
func TestLimitPushdownCrossesProjectionStopsAtFilter(t *testing.T) {
	p := plan.New()
	scan := p.AddNode(plan.Scan, -1)
	filter := p.AddNode(plan.Filter, scan.ID)
	projection := p.AddNode(plan.Projection, filter.ID)
	limit := p.AddNode(plan.Limit, projection.ID)
	output := p.AddNode(plan.Projection, limit.ID)

	out, stats, err := analyzer.Run(p, analyzer.LimitPushdownStrategy{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.OptimizationLimitPushdown)

	// Parent is the producer (toward the leaves) and Child the consumer
	// (toward the root), so the limit now sits between filter and filter's
	// former consumer (projection).
	require.Equal(t, limit.ID, out.Child(filter.ID))
	require.Equal(t, filter.ID, out.Parent(limit.ID))
	require.Equal(t, projection.ID, out.Child(limit.ID))
	require.Equal(t, limit.ID, out.Parent(projection.ID))
	require.Equal(t, output.ID, out.Root())
}

// Scan -> Filter -> Limit -> Projection (root): the Limit is already
// immediately after the nearest barrier, so it is taken out and put back in
// the same place (the rewrite is still counted).
func TestLimitPushdownNoOpWhenAlreadyAtBarrier(t *testing.T) {
	p := plan.New()
	scan := p.AddNode(plan.Scan, -1)
	filter := p.AddNode(plan.Filter, scan.ID)
	limit := p.AddNode(plan.Limit, filter.ID)
	output := p.AddNode(plan.Projection, limit.ID)

	out, stats, err := analyzer.Run(p, analyzer.LimitPushdownStrategy{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.OptimizationLimitPushdown)
	require.Equal(t, limit.ID, out.Child(filter.ID))
	require.Equal(t, output.ID, out.Root())
}

// Scan -> Sort -> Limit -> Projection (root): Sort is a barrier, so the
// limit must not cross it, preserving which rows are returned after
// ordering.
func TestLimitPushdownStopsAtSort(t *testing.T) {
	p := plan.New()
	scan := p.AddNode(plan.Scan, -1)
	sortNode := p.AddNode(plan.Sort, scan.ID)
	limit := p.AddNode(plan.Limit, sortNode.ID)
	output := p.AddNode(plan.Projection, limit.ID)

	out, stats, err := analyzer.Run(p, analyzer.LimitPushdownStrategy{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.OptimizationLimitPushdown)
	require.Equal(t, limit.ID, out.Child(sortNode.ID))
	require.Equal(t, output.ID, out.Root())
}

// Two limits stacked above a single barrier both land immediately after it.
func TestLimitPushdownMultipleLimitsCollapseToSameBarrier(t *testing.T) {
	p := plan.New()
	scan := p.AddNode(plan.Scan, -1)
	filter := p.AddNode(plan.Filter, scan.ID)
	limit1 := p.AddNode(plan.Limit, filter.ID)
	limit2 := p.AddNode(plan.Limit, limit1.ID)
	p.AddNode(plan.Projection, limit2.ID)

	out, stats, err := analyzer.Run(p, analyzer.LimitPushdownStrategy{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.OptimizationLimitPushdown)

	// Both limits now sit directly above filter. The root-to-leaf visit
	// collects limit2 before limit1; each is reinserted directly after
	// filter in that order, so limit1 ends up next to filter again.
	firstAboveFilter := out.Child(filter.ID)
	require.True(t, firstAboveFilter == limit1.ID || firstAboveFilter == limit2.ID)
	_, stillRoot := out.Node(out.Root())
	require.True(t, stillRoot)
}
