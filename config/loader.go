package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "COORDFLOW"

// Load builds the configuration from defaults, an optional YAML file,
// and environment variable overrides, then validates it. An empty path
// skips the file stage.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overlays COORDFLOW_* environment variables onto cfg.
// Malformed values are ignored in favor of the existing setting.
func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.Coordinator.MaxConcurrentTasks, "COORDINATOR_MAX_CONCURRENT_TASKS")
	envDuration(&cfg.Coordinator.TaskTimeout, "COORDINATOR_TASK_TIMEOUT")
	envDuration(&cfg.Coordinator.DependencyWindow, "COORDINATOR_DEPENDENCY_WINDOW")
	envDuration(&cfg.Coordinator.DependencyPollInterval, "COORDINATOR_DEPENDENCY_POLL_INTERVAL")
	envDuration(&cfg.Coordinator.SupervisorInterval, "COORDINATOR_SUPERVISOR_INTERVAL")
	envDuration(&cfg.Coordinator.ShutdownGrace, "COORDINATOR_SHUTDOWN_GRACE")
	envDuration(&cfg.Coordinator.HealthInterval, "COORDINATOR_HEALTH_INTERVAL")
	envDuration(&cfg.Coordinator.PerformanceInterval, "COORDINATOR_PERFORMANCE_INTERVAL")
	if v, ok := lookup("COORDINATOR_DEPENDENCY_POLICY"); ok {
		cfg.Coordinator.DependencyPolicy = DependencyPolicy(v)
	}

	envString(&cfg.Memory.Backend, "MEMORY_BACKEND")
	envString(&cfg.Memory.Redis.Addr, "MEMORY_REDIS_ADDR")
	envString(&cfg.Memory.Redis.Password, "MEMORY_REDIS_PASSWORD")
	envInt(&cfg.Memory.Redis.DB, "MEMORY_REDIS_DB")
	envInt(&cfg.Memory.Redis.PoolSize, "MEMORY_REDIS_POOL_SIZE")
	envString(&cfg.Memory.Redis.KeyPrefix, "MEMORY_REDIS_KEY_PREFIX")

	if v, ok := lookup("METRICS_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	envInt(&cfg.Metrics.Port, "METRICS_PORT")

	envString(&cfg.Log.Level, "LOG_LEVEL")
	envString(&cfg.Log.Format, "LOG_FORMAT")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + "_" + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
