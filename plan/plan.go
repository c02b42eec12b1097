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

// Package plan implements the logical plan DAG the optimizer rewrites:
// stable node ids, a type tag per node, and an edge list with the two
// rewrite primitives the limit-pushdown strategy needs (RemoveNode with
// healing, InsertNodeAfter).
package plan

import (
	"github.com/pkg/errors"

	"github.com/dolthub/morsel-engine/morsel"
)

// NodeType tags the kind of logical operation a Node represents.
type NodeType int

const (
	Scan NodeType = iota
	Filter
	Join
	Aggregate
	AggregateAndGroup
	Subquery
	Union
	Limit
	Projection
	Sort
)

func (t NodeType) String() string {
	switch t {
	case Scan:
		return "Scan"
	case Filter:
		return "Filter"
	case Join:
		return "Join"
	case Aggregate:
		return "Aggregate"
	case AggregateAndGroup:
		return "AggregateAndGroup"
	case Subquery:
		return "Subquery"
	case Union:
		return "Union"
	case Limit:
		return "Limit"
	case Projection:
		return "Projection"
	case Sort:
		return "Sort"
	default:
		return "Unknown"
	}
}

// NodeID is a stable, opaque identifier assigned at node creation time and
// never reused or recomputed by rewrites.
type NodeID int

// Node is one vertex of the logical plan DAG: a type tag, a stable id, and
// whatever payload the planner attached (limit count, join keys, sort keys,
// projection list, and so on — all out of scope here).
type Node struct {
	ID      NodeID
	Type    NodeType
	Columns []morsel.SchemaColumn
	Payload any
}

// Plan is a directed acyclic graph of Nodes, stored as a node table plus an
// edge list. Data flows from leaves (Scan nodes, which have no producer)
// toward the root (the final output node, which has no consumer): every
// node's Parent points one step closer to the leaves (the node that
// produces its input), and every node's Child points one step closer to
// the root (the node that consumes its output). "After" a barrier along
// the flow of data means between the barrier and the node that used to
// consume its output, since the barrier sits closer to the leaves.
type Plan struct {
	nextID NodeID
	nodes  map[NodeID]*Node
	// producerOf maps a node id to the node whose output feeds it (the
	// node one step closer to the leaves), or -1 if it is itself a leaf.
	producerOf map[NodeID]NodeID
	// consumerOf maps a node id to the node that consumes its output (the
	// node one step closer to the root), or -1 if it is the plan's root.
	consumerOf map[NodeID]NodeID
	root       NodeID
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{
		nodes:      make(map[NodeID]*Node),
		producerOf: make(map[NodeID]NodeID),
		consumerOf: make(map[NodeID]NodeID),
		root:       -1,
	}
}

// AddNode allocates a fresh node id for typ, wired to consume input's
// output (input may be -1 for a leaf, i.e. a Scan). The new node has no
// consumer yet, so it always becomes the plan's new root — this models the
// linear operator chain the planner hands the optimizer (see analyzer.go),
// where each node is built on top of whatever was previously the root.
func (p *Plan) AddNode(typ NodeType, input NodeID) *Node {
	id := p.nextID
	p.nextID++

	n := &Node{ID: id, Type: typ}
	p.nodes[id] = n
	p.producerOf[id] = input
	p.consumerOf[id] = -1

	if input != -1 {
		p.consumerOf[input] = id
	}
	p.root = id
	return n
}

// Node returns the node with the given id.
func (p *Plan) Node(id NodeID) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Root returns the plan's root node id (the final output node, with no
// consumer), or -1 for an empty plan.
func (p *Plan) Root() NodeID { return p.root }

// Parent returns the node that produces id's input — one step closer to
// the leaves — or -1 if id is a leaf.
func (p *Plan) Parent(id NodeID) NodeID { return p.producerOf[id] }

// Child returns the node that consumes id's output — one step closer to
// the root — or -1 if id is the plan's root.
func (p *Plan) Child(id NodeID) NodeID { return p.consumerOf[id] }

// Copy returns a deep-enough copy of the plan for the optimizer to mutate
// independently of the pre-optimized tree it was seeded from.
func (p *Plan) Copy() *Plan {
	cp := &Plan{
		nextID:     p.nextID,
		nodes:      make(map[NodeID]*Node, len(p.nodes)),
		producerOf: make(map[NodeID]NodeID, len(p.producerOf)),
		consumerOf: make(map[NodeID]NodeID, len(p.consumerOf)),
		root:       p.root,
	}
	for id, n := range p.nodes {
		copied := *n
		cp.nodes[id] = &copied
	}
	for id, producer := range p.producerOf {
		cp.producerOf[id] = producer
	}
	for id, consumer := range p.consumerOf {
		cp.consumerOf[id] = consumer
	}
	return cp
}

// RemoveNode deletes id from the plan. A node being removed this way (a
// Limit in transit during pushdown) is asserted to have exactly one parent
// and one child: it must be neither a leaf (nothing to
// heal the gap onto upstream) nor the plan's root (nothing to heal it onto
// downstream). When heal is true, id's producer and consumer are wired
// directly together, closing the gap; when false, both links are simply
// cleared, leaving a hole the caller will fill immediately with
// InsertNodeAfter.
func (p *Plan) RemoveNode(id NodeID, heal bool) error {
	n, ok := p.nodes[id]
	if !ok {
		return errors.Errorf("plan: remove_node: no such node %d", id)
	}
	producer := p.producerOf[id]
	consumer := p.consumerOf[id]
	if producer == -1 || consumer == -1 {
		return errors.Errorf("plan: remove_node: node %d (%s) has no parent or child to heal onto", id, n.Type)
	}

	delete(p.nodes, id)
	delete(p.producerOf, id)
	delete(p.consumerOf, id)

	if heal {
		p.consumerOf[producer] = consumer
		p.producerOf[consumer] = producer
	}
	return nil
}

// InsertNodeAfter inserts node (assigning it id, which must already be
// allocated and absent from the live graph — i.e. this reinserts a node
// RemoveNode just took out) so that it directly consumes barrier's output,
// with whatever used to consume barrier now consuming node instead. This
// is "after the barrier" in the data-flow-direction sense:
// the barrier sits closer to the leaves, so "after" means between the
// barrier and its former consumer.
func (p *Plan) InsertNodeAfter(id NodeID, node *Node, barrier NodeID) error {
	if _, ok := p.nodes[barrier]; !ok {
		return errors.Errorf("plan: insert_node_after: no such barrier node %d", barrier)
	}
	barrierConsumer := p.consumerOf[barrier]

	p.nodes[id] = node
	p.producerOf[id] = barrier
	p.consumerOf[barrier] = id
	p.consumerOf[id] = barrierConsumer

	if barrierConsumer == -1 {
		p.root = id
	} else {
		p.producerOf[barrierConsumer] = id
	}
	return nil
}
