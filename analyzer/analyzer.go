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

// Package analyzer implements the optimizer's pass manager: a visitor that
// walks the logical plan once per strategy, threading an OptimizerContext
// that owns each strategy's scratch state rather than hanging it off a
// dangling global.
package analyzer

import (
	"github.com/dolthub/morsel-engine/plan"
)

// Statistics accumulates optimizer counters, one per strategy action, for
// the cursor's stats accessor (shared state, reader-visible via the
// cursor's stats accessor after execution completes").
type Statistics struct {
	OptimizationLimitPushdown int
}

// Context carries what a strategy's visit needs: a read-only reference to
// the pre-optimization tree, the optimized plan under construction, the id
// of the node currently visited, and per-strategy scratch compartments
// keyed by strategy name so one strategy's state can never leak into
// another's.
type Context struct {
	PreOptimizedTree *plan.Plan
	OptimizedPlan    *plan.Plan
	NodeID           plan.NodeID
	Statistics       *Statistics

	scratch map[string]any
}

// NewContext seeds a context from the plan about to be optimized.
func NewContext(tree *plan.Plan) *Context {
	return &Context{
		PreOptimizedTree: tree,
		Statistics:       &Statistics{},
		scratch:          make(map[string]any),
	}
}

// Scratch returns strategy's private scratch slot, creating it with init
// the first time it is requested.
func (c *Context) Scratch(strategy string, init func() any) any {
	if v, ok := c.scratch[strategy]; ok {
		return v
	}
	v := init()
	c.scratch[strategy] = v
	return v
}

// SetScratch replaces strategy's scratch slot.
func (c *Context) SetScratch(strategy string, v any) {
	c.scratch[strategy] = v
}

// OptimizationStrategy is a single rewrite pass over the logical plan,
// visited depth-first, node by node.
type OptimizationStrategy interface {
	// Visit is called once per node in traversal order.
	Visit(node *plan.Node, ctx *Context) (*Context, error)
	// Complete runs once after every node has been visited.
	Complete(tree *plan.Plan, ctx *Context) (*plan.Plan, error)
}

// Run applies strategy to tree in a single depth-first (root-to-leaf) pass,
// then invokes Complete.
func Run(tree *plan.Plan, strategy OptimizationStrategy) (*plan.Plan, *Statistics, error) {
	ctx := NewContext(tree)

	order := rootToLeafOrder(tree)
	for _, id := range order {
		node, ok := tree.Node(id)
		if !ok {
			continue
		}
		var err error
		ctx, err = strategy.Visit(node, ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := strategy.Complete(ctx.OptimizedPlan, ctx)
	if err != nil {
		return nil, nil, err
	}
	return result, ctx.Statistics, nil
}

// rootToLeafOrder walks the plan from its root down to its deepest leaf,
// following Parent (the producer side) at each step. Visiting root-to-leaf
// is what lets a rewrite like limit pushdown accumulate state (pending
// limits) while descending and act on it the moment a barrier is reached,
// rather than only after the whole subtree below the barrier has already
// been visited.
//
// The plan modeled here is a linear operator chain, as produced by the
// planner for the queries in scope. Only each node's single Parent link is
// followed, so a second input branch (e.g. a Join's other subtree) is not
// visited.
func rootToLeafOrder(tree *plan.Plan) []plan.NodeID {
	root := tree.Root()
	if root == -1 {
		return nil
	}

	var chain []plan.NodeID
	id := root
	for id != -1 {
		chain = append(chain, id)
		id = tree.Parent(id)
	}
	return chain
}
