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

// Package cache implements the remote key-value cache named in §6: a thin
// wrapper over a real Redis backend that disables itself after too many
// consecutive errors, the only process-wide shared mutable state this
// engine owns.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultFailureThreshold is the consecutive-error count (§5, §6) after
// which the cache disables itself for the remainder of the process
// lifetime.
const DefaultFailureThreshold = 10

// Counters are the observable counts named in §6: hits, misses, sets,
// skips (Get calls short-circuited while disabled), and errors.
type Counters struct {
	Hits   uint64
	Misses uint64
	Sets   uint64
	Skips  uint64
	Errors uint64
}

// Cache is a Redis-backed key-value cache guarded by a consecutive-failure
// counter. Once the counter reaches its threshold the cache is disabled
// for good: Get becomes a no-op that counts as a skip, Set becomes a
// silent no-op. A single successful Get resets the counter; a failed Set
// jumps it straight to the threshold, per §6's "Threshold reached also on
// any set failure."
type Cache struct {
	client    *redis.Client
	threshold int64
	log       *logrus.Entry

	consecutiveFailures int64
	disabled            int32

	mu       sync.Mutex
	counters Counters
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithThreshold overrides DefaultFailureThreshold.
func WithThreshold(n int) Option {
	return func(c *Cache) { c.threshold = int64(n) }
}

// WithLogger overrides the package-default logrus.Logger used to report
// the disable-on-failure transition.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Cache) { c.log = l.WithField("component", "cache") }
}

// New constructs a Cache backed by a Redis server reachable at addr (a
// redis:// connection URL, such as the REDIS_CONNECTION environment
// variable named in §6). It is a construction-time error for addr to fail
// to parse, since that indicates a configuration mistake rather than a
// transient backend problem.
func New(addr string, opts ...Option) (*Cache, error) {
	parsed, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		client:    redis.NewClient(parsed),
		threshold: DefaultFailureThreshold,
		log:       logrus.StandardLogger().WithField("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewWithClient wraps an already-constructed redis.Client, for callers
// (tests, or a connection pool owned elsewhere) that build their own.
func NewWithClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		threshold: DefaultFailureThreshold,
		log:       logrus.StandardLogger().WithField("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Disabled reports whether the cache has tripped its failure threshold.
func (c *Cache) Disabled() bool {
	return atomic.LoadInt32(&c.disabled) != 0
}

// Counters returns a snapshot of the cache's observable counters.
func (c *Cache) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Get looks up key. While disabled it increments Skips and reports a miss
// without touching the backend at all. A backend error increments Errors
// and the consecutive-failure counter (possibly disabling the cache); a
// successful call, hit or miss, resets the consecutive-failure counter to
// zero, since only errors should accumulate toward the threshold.
func (c *Cache) Get(ctx context.Context, key []byte) ([]byte, bool) {
	if c.Disabled() {
		c.mu.Lock()
		c.counters.Skips++
		c.mu.Unlock()
		return nil, false
	}

	val, err := c.client.Get(ctx, string(key)).Bytes()
	switch {
	case err == nil:
		c.recordSuccess()
		c.mu.Lock()
		c.counters.Hits++
		c.mu.Unlock()
		return val, true
	case err == redis.Nil:
		c.recordSuccess()
		c.mu.Lock()
		c.counters.Misses++
		c.mu.Unlock()
		return nil, false
	default:
		c.recordFailure(err, 1)
		return nil, false
	}
}

// Set stores value under key. While disabled it is a silent no-op, per
// §6. A backend error jumps the consecutive-failure counter straight to
// the threshold, disabling the cache immediately rather than waiting for
// DefaultFailureThreshold further failures — §5's "Threshold reached also
// on any set failure."
func (c *Cache) Set(ctx context.Context, key, value []byte) error {
	if c.Disabled() {
		return nil
	}

	if err := c.client.Set(ctx, string(key), value, 0).Err(); err != nil {
		c.recordFailure(err, c.threshold)
		return err
	}

	c.recordSuccess()
	c.mu.Lock()
	c.counters.Sets++
	c.mu.Unlock()
	return nil
}

func (c *Cache) recordSuccess() {
	atomic.StoreInt64(&c.consecutiveFailures, 0)
}

// recordFailure increments Errors by one and the consecutive-failure
// counter by delta (1 for Get, the full threshold for a Set failure),
// disabling the cache and logging the transition the first time the
// threshold is reached or crossed.
func (c *Cache) recordFailure(err error, delta int64) {
	c.mu.Lock()
	c.counters.Errors++
	c.mu.Unlock()

	failures := atomic.AddInt64(&c.consecutiveFailures, delta)
	if failures >= c.threshold && atomic.CompareAndSwapInt32(&c.disabled, 0, 1) {
		c.log.WithFields(logrus.Fields{
			"consecutive_failures": failures,
			"threshold":            c.threshold,
			"err":                  err,
		}).Error("cache disabled after too many consecutive failures")
	}
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
