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

// Package engineconfig builds the engine's Config the way sqle.Config is
// built up elsewhere in this codebase: environment variables first
// (PROFILE_LOCATION and REDIS_CONNECTION), then an optional YAML file
// layered on top for settings that have no environment-variable home.
package engineconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/morsel-engine/cache"
)

const (
	// ProfileLocationEnv names a rolling log file every executed statement
	// is appended to. Optional; profiling is disabled when unset.
	ProfileLocationEnv = "PROFILE_LOCATION"
	// RedisConnectionEnv provides a remote cache URL when no explicit
	// server is passed to the cache constructor. Optional; CacheEnabled
	// reports false when it is unset (the YAML file cannot set it).
	RedisConnectionEnv = "REDIS_CONNECTION"
)

// Config is the engine's assembled configuration: the two environment
// values named in §6, plus the cache failure threshold and join
// streaming batch sizes that §4.2's "(e.g. 1000 rows)" /
// "(e.g. 50,000 rows)" leave as tunable defaults rather than hard
// constants.
type Config struct {
	ProfileLocation string `yaml:"-"`
	RedisConnection string `yaml:"-"`

	CacheFailureThreshold int `yaml:"cache_failure_threshold"`

	RightOuterBatchSize     int `yaml:"right_outer_batch_size"`
	FullOuterChunkSize      int `yaml:"full_outer_chunk_size"`
	LeftOuterFlushThreshold int `yaml:"left_outer_flush_threshold"`
}

// defaults mirrors the streaming batch sizes named in §4.2.
func defaults() Config {
	return Config{
		CacheFailureThreshold:   cache.DefaultFailureThreshold,
		RightOuterBatchSize:     1000,
		FullOuterChunkSize:      1000,
		LeftOuterFlushThreshold: 50_000,
	}
}

// FromEnv reads PROFILE_LOCATION and REDIS_CONNECTION from the process
// environment and, if yamlPath names a file that exists, layers its
// contents (cache failure threshold, streaming batch sizes) on top of the
// package defaults. yamlPath may be empty, in which case only the
// environment and the defaults apply.
func FromEnv(yamlPath string) (Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if err := cfg.loadYAML(yamlPath); err != nil {
			return Config{}, err
		}
	}

	cfg.ProfileLocation = os.Getenv(ProfileLocationEnv)
	cfg.RedisConnection = os.Getenv(RedisConnectionEnv)

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "engineconfig: reading %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "engineconfig: parsing %s", path)
	}
	return nil
}

// ProfilingEnabled reports whether PROFILE_LOCATION names a file to append
// executed statements to.
func (c Config) ProfilingEnabled() bool { return c.ProfileLocation != "" }

// CacheEnabled reports whether REDIS_CONNECTION (or an explicit server
// passed elsewhere) makes the remote cache available.
func (c Config) CacheEnabled() bool { return c.RedisConnection != "" }

// JoinBatchSizes exposes the three streaming thresholds as a small struct,
// for callers that want them without depending on the rest of Config,
// falling back to the §4.2 defaults for any that were left at zero. The
// join operators in rowexec do not read these; they use fixed constants
// with the same default values.
type JoinBatchSizes struct {
	RightOuterBatchSize     int
	FullOuterChunkSize      int
	LeftOuterFlushThreshold int
}

func (c Config) JoinBatchSizes() JoinBatchSizes {
	b := JoinBatchSizes{
		RightOuterBatchSize:     c.RightOuterBatchSize,
		FullOuterChunkSize:      c.FullOuterChunkSize,
		LeftOuterFlushThreshold: c.LeftOuterFlushThreshold,
	}
	d := defaults()
	if b.RightOuterBatchSize <= 0 {
		b.RightOuterBatchSize = d.RightOuterBatchSize
	}
	if b.FullOuterChunkSize <= 0 {
		b.FullOuterChunkSize = d.FullOuterChunkSize
	}
	if b.LeftOuterFlushThreshold <= 0 {
		b.LeftOuterFlushThreshold = d.LeftOuterFlushThreshold
	}
	return b
}
