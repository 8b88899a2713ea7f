// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the coordinator's Prometheus metrics.
// A nil Collector is valid and records nothing.
type Collector struct {
	tasksAdmitted *prometheus.CounterVec
	taskOutcomes  *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	activeTasks   prometheus.Gauge

	agentTransitions *prometheus.CounterVec

	coordinations        *prometheus.CounterVec
	coordinationDuration *prometheus.HistogramVec

	dependencyWait *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against the
// default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.tasksAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_admitted_total",
			Help:      "Total number of tasks admitted into the active set",
		},
		[]string{"agent_id", "priority"},
	)

	c.taskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Total number of finalized tasks by terminal status",
		},
		[]string{"agent_id", "status"},
	)

	c.taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task duration from admission to finalization in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"agent_id", "status"},
	)

	c.activeTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Number of tasks currently admitted and not finalized",
		},
	)

	c.agentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_state_transitions_total",
			Help:      "Total number of agent state transitions",
		},
		[]string{"agent_id", "from_state", "to_state"},
	)

	c.coordinations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinations_total",
			Help:      "Total number of coordination requests",
		},
		[]string{"strategy", "status"},
	)

	c.coordinationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordination_duration_seconds",
			Help:      "Coordination request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	c.dependencyWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dependency_wait_seconds",
			Help:      "Time tasks spent waiting on their dependencies",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300},
		},
		[]string{"agent_id"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordAdmission records one admitted task.
func (c *Collector) RecordAdmission(agentID, priority string) {
	if c == nil {
		return
	}
	c.tasksAdmitted.WithLabelValues(agentID, priority).Inc()
	c.activeTasks.Inc()
}

// RecordOutcome records one finalized task.
func (c *Collector) RecordOutcome(agentID, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.taskOutcomes.WithLabelValues(agentID, status).Inc()
	c.taskDuration.WithLabelValues(agentID, status).Observe(duration.Seconds())
	c.activeTasks.Dec()
}

// RecordAgentTransition records one agent state transition.
func (c *Collector) RecordAgentTransition(agentID, fromState, toState string) {
	if c == nil {
		return
	}
	c.agentTransitions.WithLabelValues(agentID, fromState, toState).Inc()
}

// RecordCoordination records one coordination request.
func (c *Collector) RecordCoordination(strategy, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.coordinations.WithLabelValues(strategy, status).Inc()
	c.coordinationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordDependencyWait records how long a task waited on dependencies.
func (c *Collector) RecordDependencyWait(agentID string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dependencyWait.WithLabelValues(agentID).Observe(duration.Seconds())
}
