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

// Package cursor implements the client-facing state machine described in
// §4.5 and §6: SQL preprocessing, the initialized/executed/closed state
// guards, and the pipeline driver that turns a planner's morsel stream
// into the cursor's own DataFrame-shaped result.
package cursor

import (
	"context"
	"os"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/morsel-engine/engineconfig"
	"github.com/dolthub/morsel-engine/morsel"
	"github.com/dolthub/morsel-engine/pipeline"
	"github.com/dolthub/morsel-engine/qerrors"
)

// State is one of the cursor's three life-cycle states (§4.5).
type State int

const (
	Initialized State = iota
	Executed
	Closed
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Executed:
		return "executed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Plan is the external planner's per-statement handle (§6). Its Execute
// returns the plan's morsel stream, terminated by EOS, as a
// pipeline.Source.
type Plan interface {
	Execute() (pipeline.Source, error)
}

// Planner compiles a single SQL statement, with its parameters, into an
// iterator of Plans — one per statement the planner decides to split the
// input into (a stored procedure call, for instance, may compile to more
// than one). Out of scope to implement, only to consume (§6).
type Planner interface {
	Plan(sql string, params []any, queryID string) (PlanIterator, error)
}

// PlanIterator yields successive Plans; ok is false once exhausted.
type PlanIterator interface {
	Next() (Plan, bool, error)
}

// HistoryRecord is one entry of the cursor's executed-statement history
// (§4.5): the statement text, whether it completed without error, and
// when it ran. Success starts false and is fixed up to true once the
// plan completes without error.
type HistoryRecord struct {
	Statement string
	Success   bool
	Timestamp time.Time
}

// passthroughSink feeds every item it is handed straight back out,
// unchanged, so pipeline.Driver can drive a bare Plan (which has no
// physical operator of its own — the plan IS the operator chain) through
// the same pull/push loop used for operator trees under test.
type passthroughSink struct{}

func (passthroughSink) Execute(item morsel.Item) ([]morsel.Item, error) {
	return []morsel.Item{item}, nil
}

// Cursor is the client-facing handle named in §6: a three-state machine
// around one or more planner-produced plans, exposing the last statement's
// result, execution statistics, and accumulated log messages.
type Cursor struct {
	id              string
	state           State
	planner         Planner
	log             *logrus.Entry
	profileLocation string

	history []HistoryRecord
	stats   map[string]any
	result  *morsel.Morsel
}

// Option configures a Cursor at construction time.
type Option func(*Cursor)

// WithConfig threads an engineconfig.Config into the cursor, enabling the
// §6 PROFILE_LOCATION rolling log whenever the config's ProfileLocation is
// set.
func WithConfig(cfg engineconfig.Config) Option {
	return func(c *Cursor) { c.profileLocation = cfg.ProfileLocation }
}

// New constructs a Cursor in the initialized state with a fresh query id,
// mirroring the source's `_qid = str(uuid4())`.
func New(planner Planner, opts ...Option) *Cursor {
	c := &Cursor{
		id:      uuid.NewV4().String(),
		state:   Initialized,
		planner: planner,
		log:     logrus.StandardLogger().WithField("component", "cursor"),
		stats:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the cursor's query id.
func (c *Cursor) ID() string { return c.id }

// Messages returns every log line appended to the cursor (currently just
// statement-completion notices), in order.
func (c *Cursor) Messages() []string {
	msgs := make([]string, len(c.history))
	for i, h := range c.history {
		status := "ok"
		if !h.Success {
			status = "failed"
		}
		msgs[i] = h.Statement + ": " + status
	}
	return msgs
}

// Stats returns the cursor's accumulated statistics, reader-visible only
// after Execute has run (§5's "reader-visible via the cursor's stats
// accessor after execution completes").
func (c *Cursor) Stats() map[string]any {
	out := make(map[string]any, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// ensureState guards each entry point the way the source's state-machine
// decorators do, per Design Notes §9: a single helper plus an explicit
// post-action transition at the call site.
func (c *Cursor) ensureState(expected State) error {
	if c.state != expected {
		return qerrors.InvalidCursorState.New(expected.String(), c.state.String())
	}
	return nil
}

// Execute implements the §4.5 algorithm: preprocess SQL into statements,
// compile and drive every plan but the last for side effects, drive the
// last plan's result into the cursor's DataFrame representation.
func (c *Cursor) Execute(sql string, params ...any) error {
	if err := c.ensureState(Initialized); err != nil {
		return err
	}

	span, _ := opentracing.StartSpanFromContext(context.Background(), "cursor.execute")
	defer span.Finish()

	statements := Preprocess(sql)
	if len(statements) == 0 {
		return qerrors.MissingSqlStatement.New()
	}
	if len(statements) > 1 && len(params) > 0 {
		return qerrors.UnsupportedSyntax.New("parameters with a multi-statement batch")
	}
	span.SetTag("statement_count", len(statements))
	span.SetTag("query_id", c.id)

	var last *morsel.Morsel
	for i, stmt := range statements {
		record := HistoryRecord{Statement: stmt, Timestamp: time.Now()}

		result, err := c.runStatement(stmt, params)
		if err != nil {
			record.Success = false
			c.history = append(c.history, record)
			c.appendToProfileLog(record)
			return errors.Wrapf(err, "executing statement %d of %d", i+1, len(statements))
		}

		record.Success = true
		c.history = append(c.history, record)
		c.appendToProfileLog(record)
		last = result
	}

	c.result = last
	c.state = Executed
	return nil
}

// ExecuteToArrow behaves like Execute but additionally truncates the final
// statement's result to at most limit rows before returning it as a
// columnar table (a *morsel.Morsel, this engine's Arrow-shaped output).
// A non-positive limit leaves the result untruncated.
func (c *Cursor) ExecuteToArrow(sql string, limit int, params ...any) (*morsel.Morsel, error) {
	if err := c.Execute(sql, params...); err != nil {
		return nil, err
	}
	if limit <= 0 || c.result == nil || c.result.NumRows() <= limit {
		return c.result, nil
	}

	indices := make([]int, limit)
	for i := range indices {
		indices[i] = i
	}
	return morsel.Take(c.result, indices), nil
}

// appendToProfileLog appends record to the PROFILE_LOCATION rolling log
// (§6: "every executed statement is appended"), a no-op when no profile
// location was configured. A failure to open or write the log is reported
// through the cursor's logger rather than surfaced as an execution error,
// since profiling is observability, not correctness.
func (c *Cursor) appendToProfileLog(record HistoryRecord) {
	if c.profileLocation == "" {
		return
	}

	f, err := os.OpenFile(c.profileLocation, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		c.log.WithFields(logrus.Fields{"path": c.profileLocation, "err": err}).Error("failed to open profile log")
		return
	}
	defer f.Close()

	status := "ok"
	if !record.Success {
		status = "failed"
	}
	line := record.Timestamp.Format(time.RFC3339) + "\t" + c.id + "\t" + status + "\t" + record.Statement + "\n"
	if _, err := f.WriteString(line); err != nil {
		c.log.WithFields(logrus.Fields{"path": c.profileLocation, "err": err}).Error("failed to append to profile log")
	}
}

// runStatement compiles stmt via the planner and drains every plan it
// produces, keeping only the last plan's drained result — "drain all but
// the last plan (for side effects); keep the last plan's final result."
func (c *Cursor) runStatement(stmt string, params []any) (*morsel.Morsel, error) {
	it, err := c.planner.Plan(stmt, params, c.id)
	if err != nil {
		return nil, qerrors.SqlError.New(err.Error())
	}

	var result *morsel.Morsel
	for {
		p, ok, err := it.Next()
		if err != nil {
			return nil, qerrors.SqlError.New(err.Error())
		}
		if !ok {
			break
		}

		src, err := p.Execute()
		if err != nil {
			return nil, err
		}

		morsels, err := pipeline.New(src, passthroughSink{}).Run()
		if err != nil {
			return nil, err
		}

		merged, err := morsel.Concat(morsels...)
		if err != nil {
			return nil, err
		}
		result = merged
	}
	return result, nil
}

// Close transitions the cursor from executed to closed. It is not safe to
// call twice: a second call fails with InvalidCursorState, per §4.5's
// "any other transition attempt fails."
func (c *Cursor) Close() error {
	if err := c.ensureState(Executed); err != nil {
		return err
	}
	c.state = Closed
	c.result = nil
	c.log.WithField("query_id", c.id).Debug("cursor closed")
	return nil
}
