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

// Package rowexec implements the physical operators: streaming nodes that
// consume morsel.Item values from zero or more upstream operators and
// produce morsel.Item values of their own, terminating with EOS.
package rowexec

import "github.com/dolthub/morsel-engine/morsel"

// Operator is a physical execution node. Execute is handed the next item
// from a single upstream (for multi-input operators such as joins, the
// caller is responsible for driving each input separately, as the two-phase
// join protocol does) and returns zero or more items. An operator MUST
// emit EOS once it has observed EOS on every input, and MUST NOT be called
// again afterward.
type Operator interface {
	Execute(item morsel.Item) ([]morsel.Item, error)
}
