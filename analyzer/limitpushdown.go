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

package analyzer

import (
	"github.com/dolthub/morsel-engine/plan"
)

const limitPushdownScratchKey = "limit_pushdown.collected_limits"

// barrierTypes is the set of node types a pending Limit cannot cross: each
// either changes cardinality in a way a limit can't commute with (Filter,
// Aggregate, Join, Union, Subquery) or is where data enters the plan (Scan).
// Sort/HeapSort is included too, resolving the Open Question recorded in
// DESIGN.md: an unordered limit commuting across a sort would silently
// change which rows survive, not just how many.
var barrierTypes = map[plan.NodeType]bool{
	plan.Join:              true,
	plan.Scan:              true,
	plan.AggregateAndGroup: true,
	plan.Aggregate:         true,
	plan.Subquery:          true,
	plan.Union:             true,
	plan.Filter:            true,
	plan.Sort:              true,
}

// LimitPushdownStrategy rewrites the plan so every Limit node sits as close
// to the leaves as it safely can, by walking root-to-leaf and, at each
// barrier node, flushing every pending limit collected since the last
// barrier (or the root) immediately after that barrier.
type LimitPushdownStrategy struct{}

// Visit implements OptimizationStrategy. It operates on ctx.OptimizedPlan,
// which is seeded from ctx.PreOptimizedTree on first use and mutated
// in place thereafter.
func (LimitPushdownStrategy) Visit(node *plan.Node, ctx *Context) (*Context, error) {
	if ctx.OptimizedPlan == nil {
		ctx.OptimizedPlan = ctx.PreOptimizedTree.Copy()
	}
	tree := ctx.OptimizedPlan
	ctx.NodeID = node.ID

	pending := ctx.Scratch(limitPushdownScratchKey, func() any { return []plan.NodeID{} }).([]plan.NodeID)

	if node.Type == plan.Limit {
		pending = append(pending, node.ID)
		ctx.SetScratch(limitPushdownScratchKey, pending)
		return ctx, nil
	}

	if !barrierTypes[node.Type] {
		// Transparent node (e.g. Projection): a limit may cross it freely.
		return ctx, nil
	}

	for _, limitID := range pending {
		limitNode, ok := tree.Node(limitID)
		if !ok {
			// Already rewired by an earlier barrier in this same pending
			// batch; nothing left to do for it.
			continue
		}
		if err := tree.RemoveNode(limitID, true); err != nil {
			return nil, err
		}
		if err := tree.InsertNodeAfter(limitID, limitNode, node.ID); err != nil {
			return nil, err
		}
		ctx.Statistics.OptimizationLimitPushdown++
	}
	ctx.SetScratch(limitPushdownScratchKey, []plan.NodeID{})

	return ctx, nil
}

// Complete implements OptimizationStrategy. There is no post-pass work: the
// rewrite is finished the moment traversal ends.
func (LimitPushdownStrategy) Complete(tree *plan.Plan, ctx *Context) (*plan.Plan, error) {
	if tree == nil {
		tree = ctx.PreOptimizedTree.Copy()
	}
	return tree, nil
}
