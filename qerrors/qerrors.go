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

// Package qerrors centralizes the engine's error surface as comparable,
// parameterized Kinds, the same pattern the auth package uses for
// ErrNotAuthorized and ErrNoPermission.
package qerrors

import "gopkg.in/src-d/go-errors.v1"

var (
	// InvalidCursorState is returned when a cursor method is called while the
	// cursor is in a state that does not permit it.
	InvalidCursorState = errors.NewKind("cursor must be in %s state, is %s")

	// MissingSqlStatement is returned when no executable statement remains
	// after comment-stripping and splitting.
	MissingSqlStatement = errors.NewKind("no SQL statement to execute")

	// UnsupportedSyntax is returned for syntax the engine understands but
	// rejects in context, such as parameterizing a batch of statements.
	UnsupportedSyntax = errors.NewKind("unsupported syntax: %s")

	// ColumnNotFound is returned when an operator is constructed against a
	// column identity that is absent from its upstream schema.
	ColumnNotFound = errors.NewKind("column not found: %s")

	// SqlError wraps a failure surfaced by the (external) planner or
	// expression evaluator.
	SqlError = errors.NewKind("%s")

	// MissingDependency is returned when an optional runtime dependency
	// (such as a configured remote cache) was required but unavailable.
	MissingDependency = errors.NewKind("missing dependency: %s")
)
