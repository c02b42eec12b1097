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

// Package pipeline implements the pull/push driver described in §5: "the
// cursor's pipeline driver which repeatedly pulls morsels from the root
// and pushes down through operator chains." It is pulled out of the
// cursor as its own type because the loop itself — pull an item, push it
// down, stop on EOS — never changes across statements or plans.
package pipeline

import "github.com/dolthub/morsel-engine/morsel"

// Source is anything that can be pulled from one item at a time: either
// the morsel stream a planner's plan returns from Execute (§6), or, inside a unit test, a
// canned sequence of items. Next returns morsel.EOS() as its final item
// and must never be called again afterward.
type Source interface {
	Next() (morsel.Item, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (morsel.Item, error)

func (f SourceFunc) Next() (morsel.Item, error) { return f() }

// Sink is driven once per item a Source yields. An operator chain's root
// node satisfies this via its Execute method; Run hands it every item
// produced upstream and collects every item it emits in turn.
type Sink interface {
	Execute(item morsel.Item) ([]morsel.Item, error)
}

// Driver runs the pull-then-push loop: pull the next item from src, push
// it into sink, collect whatever sink emits, and stop the moment sink
// itself emits EOS. It accumulates every data item sink produces along
// the way, in order, as the query's result morsels.
type Driver struct {
	src  Source
	sink Sink

	results []*morsel.Morsel
	done    bool
}

// New constructs a Driver over src and sink. Neither may be reused by a
// second Driver once Run has started, since both are stateful per query.
func New(src Source, sink Sink) *Driver {
	return &Driver{src: src, sink: sink}
}

// Run drives the pipeline to completion, returning every data morsel sink
// emitted across the whole run, in emission order. Run is not safe to
// call twice on the same Driver.
func (d *Driver) Run() ([]*morsel.Morsel, error) {
	for {
		item, err := d.src.Next()
		if err != nil {
			return nil, err
		}

		emitted, err := d.sink.Execute(item)
		if err != nil {
			return nil, err
		}

		sawEOS := false
		for _, out := range emitted {
			if out.IsEOS() {
				sawEOS = true
				continue
			}
			d.results = append(d.results, out.Morsel)
		}

		if sawEOS {
			d.done = true
			return d.results, nil
		}
		if item.IsEOS() {
			// The source ended but the sink never echoed EOS back: every
			// operator in this package's contract (§3) must emit EOS once
			// it has seen EOS on every input, so a well-formed sink that
			// is itself an upstream-terminal node (no further inputs)
			// always does on this call. Treat the source's own EOS as
			// authoritative to avoid spinning forever on a sink bug.
			d.done = true
			return d.results, nil
		}
	}
}

// Done reports whether Run has observed EOS.
func (d *Driver) Done() bool { return d.done }

// Slice turns a fixed slice of items into a Source, the shape a test
// double or a fully-buffered upstream morsel set takes.
func Slice(items []morsel.Item) Source {
	i := 0
	return SourceFunc(func() (morsel.Item, error) {
		if i >= len(items) {
			return morsel.EOS(), nil
		}
		item := items[i]
		i++
		return item, nil
	})
}
