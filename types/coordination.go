package types

import "time"

// CoordinationRequest asks the engine to combine several agents'
// outputs using one of the four strategies. It is not persisted as a
// Task.
type CoordinationRequest struct {
	Strategy  Strategy       `json:"strategy"`
	AgentIDs  []string       `json:"agents"`
	Objective string         `json:"objective"`
	Context   map[string]any `json:"context,omitempty"`
}

// CoordinationResult is the composite outcome of one coordination
// request. Parallel, sequential and hierarchical strategies fill
// Results with per-agent (or per-step) contributions; the
// collaborative strategy produces a single joint Response instead.
type CoordinationResult struct {
	Strategy     Strategy          `json:"strategy"`
	Participants []string          `json:"participants"`
	Results      map[string]string `json:"results,omitempty"`
	Response     string            `json:"response,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// ResultEnvelope is the uniform response wrapper for coordination
// requests. Failures are reported through Error; the call itself never
// raises past the request boundary.
type ResultEnvelope struct {
	Success   bool                `json:"success"`
	RequestID string              `json:"request_id"`
	Result    *CoordinationResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// HealthReport is the structured status returned by an agent's own
// health probe.
type HealthReport struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus classifies overall coordinator health.
type SystemStatus string

const (
	SystemHealthy  SystemStatus = "healthy"
	SystemDegraded SystemStatus = "degraded"
	SystemCritical SystemStatus = "critical"
)

// AgentHealth is one agent's entry in a system health report.
type AgentHealth struct {
	Status     AgentStatus   `json:"status"`
	Responsive bool          `json:"responsive"`
	Health     *HealthReport `json:"health,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// SystemHealth is the aggregated health projection returned by the
// coordinator: per-agent probe results, the memory store's health, and
// an overall classification (critical when more than half of the
// agents are unresponsive, degraded when any is).
type SystemHealth struct {
	Status      SystemStatus           `json:"status"`
	Agents      map[string]AgentHealth `json:"agents"`
	ActiveTasks int                    `json:"active_tasks"`
	TotalAgents int                    `json:"total_agents"`
	MemoryStore string                 `json:"memory_store"`
	Stats       Stats                  `json:"stats"`
	Timestamp   time.Time              `json:"timestamp"`
}

// AgentStats tracks one agent's rolling utilization figures. Averages
// are maintained incrementally, never recomputed from full history.
type AgentStats struct {
	TasksCompleted    int           `json:"tasks_completed"`
	AvgCompletionTime time.Duration `json:"avg_completion_time"`
	SuccessRate       float64       `json:"success_rate"`
}

// Stats aggregates coordinator-wide task statistics. Counts are
// monotonically non-decreasing.
type Stats struct {
	TotalTasks        int                   `json:"total_tasks"`
	CompletedTasks    int                   `json:"completed_tasks"`
	FailedTasks       int                   `json:"failed_tasks"`
	AvgCompletionTime time.Duration         `json:"avg_completion_time"`
	AgentUtilization  map[string]AgentStats `json:"agent_utilization"`
}
