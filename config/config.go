// Package config provides the coordflow configuration model.
//
// Loading precedence: defaults → YAML file → environment variables.
//
//	cfg, err := config.Load("config.yaml")
package config

import (
	"fmt"
	"time"
)

// DependencyPolicy selects when a dependent task may proceed.
type DependencyPolicy string

const (
	// DependencyAnyTerminal releases a dependent task once the
	// dependency reaches any terminal status, successful or not.
	DependencyAnyTerminal DependencyPolicy = "any_terminal"
	// DependencySucceedOnly fails the dependent task when a
	// dependency finalizes unsuccessfully.
	DependencySucceedOnly DependencyPolicy = "succeed_only"
)

// Config is the complete coordflow configuration.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Agents      []AgentSpec       `yaml:"agents"`
	Memory      MemoryConfig      `yaml:"memory"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// AgentSpec declares one agent in the coordinator's fixed pool.
type AgentSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`
	// Leader marks the agent the hierarchical strategy treats as leader.
	Leader bool `yaml:"leader"`
}

// CoordinatorConfig tunes the scheduling core.
type CoordinatorConfig struct {
	// MaxConcurrentTasks bounds the number of tasks admitted but not
	// yet finalized. Admission is rejected once the limit is reached.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// TaskTimeout is the global per-task deadline measured from admission.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// DependencyWindow is the maximum time a task waits for its
	// declared dependencies to leave the active set.
	DependencyWindow time.Duration `yaml:"dependency_window"`

	// DependencyPollInterval is the resolver's polling period.
	DependencyPollInterval time.Duration `yaml:"dependency_poll_interval"`

	// DependencyPolicy selects any_terminal or succeed_only semantics.
	DependencyPolicy DependencyPolicy `yaml:"dependency_policy"`

	// SupervisorInterval is the timeout sweep period.
	SupervisorInterval time.Duration `yaml:"supervisor_interval"`

	// ShutdownGrace is how long Stop waits for the active set to drain
	// before force-cancelling the stragglers.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// HealthInterval is the period of the background health monitor.
	// Zero disables the monitor.
	HealthInterval time.Duration `yaml:"health_interval"`

	// PerformanceInterval is the period of the background performance
	// monitor. Zero disables the monitor.
	PerformanceInterval time.Duration `yaml:"performance_interval"`
}

// MemoryConfig selects and tunes the memory store backend.
type MemoryConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis memory store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			MaxConcurrentTasks:     10,
			TaskTimeout:            300 * time.Second,
			DependencyWindow:       300 * time.Second,
			DependencyPollInterval: 1 * time.Second,
			DependencyPolicy:       DependencyAnyTerminal,
			SupervisorInterval:     30 * time.Second,
			ShutdownGrace:          30 * time.Second,
			HealthInterval:         60 * time.Second,
			PerformanceInterval:    300 * time.Second,
		},
		Memory: MemoryConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				DB:        0,
				PoolSize:  10,
				KeyPrefix: "coordflow:",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	cc := c.Coordinator
	if cc.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("coordinator.max_concurrent_tasks must be positive, got %d", cc.MaxConcurrentTasks)
	}
	if cc.TaskTimeout <= 0 {
		return fmt.Errorf("coordinator.task_timeout must be positive, got %s", cc.TaskTimeout)
	}
	if cc.DependencyWindow <= 0 {
		return fmt.Errorf("coordinator.dependency_window must be positive, got %s", cc.DependencyWindow)
	}
	if cc.DependencyPollInterval <= 0 {
		return fmt.Errorf("coordinator.dependency_poll_interval must be positive, got %s", cc.DependencyPollInterval)
	}
	if cc.SupervisorInterval <= 0 {
		return fmt.Errorf("coordinator.supervisor_interval must be positive, got %s", cc.SupervisorInterval)
	}
	switch cc.DependencyPolicy {
	case DependencyAnyTerminal, DependencySucceedOnly:
	default:
		return fmt.Errorf("coordinator.dependency_policy must be %q or %q, got %q",
			DependencyAnyTerminal, DependencySucceedOnly, cc.DependencyPolicy)
	}
	seen := map[string]bool{}
	leaders := 0
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d].id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Leader {
			leaders++
		}
	}
	if leaders > 1 {
		return fmt.Errorf("at most one agent may be marked leader, got %d", leaders)
	}
	switch c.Memory.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("memory.backend must be \"memory\" or \"redis\", got %q", c.Memory.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
