package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Coordinator.MaxConcurrentTasks)
	assert.Equal(t, 300*time.Second, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, time.Second, cfg.Coordinator.DependencyPollInterval)
	assert.Equal(t, DependencyAnyTerminal, cfg.Coordinator.DependencyPolicy)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
coordinator:
  max_concurrent_tasks: 4
  task_timeout: 90s
  dependency_policy: succeed_only
agents:
  - id: researcher
    name: Researcher
    capabilities: [search, summarize]
    leader: true
  - id: writer
    name: Writer
memory:
  backend: redis
  redis:
    addr: redis.internal:6379
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Coordinator.MaxConcurrentTasks)
	assert.Equal(t, 90*time.Second, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, DependencySucceedOnly, cfg.Coordinator.DependencyPolicy)
	// Settings absent from the file keep their defaults.
	assert.Equal(t, 300*time.Second, cfg.Coordinator.DependencyWindow)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "researcher", cfg.Agents[0].ID)
	assert.True(t, cfg.Agents[0].Leader)
	assert.Equal(t, []string{"search", "summarize"}, cfg.Agents[0].Capabilities)

	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Memory.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
coordinator:
  max_concurrent_tasks: 4
`)
	t.Setenv("COORDFLOW_COORDINATOR_MAX_CONCURRENT_TASKS", "7")
	t.Setenv("COORDFLOW_COORDINATOR_TASK_TIMEOUT", "45s")
	t.Setenv("COORDFLOW_COORDINATOR_DEPENDENCY_POLICY", "succeed_only")
	t.Setenv("COORDFLOW_MEMORY_REDIS_ADDR", "override:6379")
	t.Setenv("COORDFLOW_METRICS_ENABLED", "false")
	t.Setenv("COORDFLOW_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Coordinator.MaxConcurrentTasks)
	assert.Equal(t, 45*time.Second, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, DependencySucceedOnly, cfg.Coordinator.DependencyPolicy)
	assert.Equal(t, "override:6379", cfg.Memory.Redis.Addr)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MalformedEnvIgnored(t *testing.T) {
	t.Setenv("COORDFLOW_COORDINATOR_MAX_CONCURRENT_TASKS", "lots")
	t.Setenv("COORDFLOW_COORDINATOR_TASK_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Coordinator.MaxConcurrentTasks)
	assert.Equal(t, 300*time.Second, cfg.Coordinator.TaskTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "coordinator: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Coordinator.MaxConcurrentTasks = 0 }, "max_concurrent_tasks"},
		{"negative timeout", func(c *Config) { c.Coordinator.TaskTimeout = -time.Second }, "task_timeout"},
		{"zero poll interval", func(c *Config) { c.Coordinator.DependencyPollInterval = 0 }, "dependency_poll_interval"},
		{"unknown policy", func(c *Config) { c.Coordinator.DependencyPolicy = "optimistic" }, "dependency_policy"},
		{"missing agent id", func(c *Config) { c.Agents = []AgentSpec{{Name: "x"}} }, "agents[0].id"},
		{"duplicate agent id", func(c *Config) {
			c.Agents = []AgentSpec{{ID: "a"}, {ID: "a"}}
		}, "duplicate agent id"},
		{"two leaders", func(c *Config) {
			c.Agents = []AgentSpec{{ID: "a", Leader: true}, {ID: "b", Leader: true}}
		}, "one agent may be marked leader"},
		{"unknown backend", func(c *Config) { c.Memory.Backend = "etcd" }, "memory.backend"},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"unknown log format", func(c *Config) { c.Log.Format = "logfmt" }, "log.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
