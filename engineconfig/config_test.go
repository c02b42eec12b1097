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

package engineconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/morsel-engine/cache"
	"github.com/dolthub/morsel-engine/engineconfig"
)

func TestFromEnvReadsProfileAndRedisVars(t *testing.T) {
	t.Setenv(engineconfig.ProfileLocationEnv, "/tmp/profile.log")
	t.Setenv(engineconfig.RedisConnectionEnv, "redis://localhost:6379/0")

	cfg, err := engineconfig.FromEnv("")
	require.NoError(t, err)
	require.True(t, cfg.ProfilingEnabled())
	require.True(t, cfg.CacheEnabled())
	require.Equal(t, "/tmp/profile.log", cfg.ProfileLocation)
}

func TestFromEnvDefaultsWhenUnset(t *testing.T) {
	t.Setenv(engineconfig.ProfileLocationEnv, "")
	t.Setenv(engineconfig.RedisConnectionEnv, "")

	cfg, err := engineconfig.FromEnv("")
	require.NoError(t, err)
	require.False(t, cfg.ProfilingEnabled())
	require.False(t, cfg.CacheEnabled())

	sizes := cfg.JoinBatchSizes()
	require.Equal(t, 1000, sizes.RightOuterBatchSize)
	require.Equal(t, 1000, sizes.FullOuterChunkSize)
	require.Equal(t, 50_000, sizes.LeftOuterFlushThreshold)
}

func TestFromEnvLayersYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_failure_threshold: 3\nright_outer_batch_size: 500\n"), 0644))

	cfg, err := engineconfig.FromEnv(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.CacheFailureThreshold)
	require.Equal(t, 500, cfg.JoinBatchSizes().RightOuterBatchSize)
	require.Equal(t, 1000, cfg.JoinBatchSizes().FullOuterChunkSize)
}

func TestFromEnvMissingYAMLFileIsNotAnError(t *testing.T) {
	cfg, err := engineconfig.FromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, cache.DefaultFailureThreshold, cfg.CacheFailureThreshold)
}
