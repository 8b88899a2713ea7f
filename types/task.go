package types

import (
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work assigned to exactly one agent, subject to
// optional dependencies and the global task deadline.
type Task struct {
	ID           string         `json:"id"`
	AgentID      string         `json:"agent_id"`
	Type         string         `json:"type,omitempty"`
	Description  string         `json:"description"`
	Priority     TaskPriority   `json:"priority"`
	CreatedAt    time.Time      `json:"created_at"`
	DueDate      *time.Time     `json:"due_date,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Status       TaskStatus     `json:"status"`
	Result       *TaskResult    `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// TaskResult holds the output of a completed task.
type TaskResult struct {
	Response    string    `json:"response"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewTask builds a pending task with a generated id and stamped
// creation time. Context may be nil.
func NewTask(agentID, description string, priority TaskPriority, context map[string]any) *Task {
	if context == nil {
		context = map[string]any{}
	}
	return &Task{
		ID:           uuid.New().String(),
		AgentID:      agentID,
		Type:         "general",
		Description:  description,
		Priority:     priority,
		CreatedAt:    time.Now(),
		Dependencies: []string{},
		Context:      context,
		Status:       TaskPending,
	}
}

// AgentInfo is the coordinator's descriptor for a registered agent.
// Created once at system start and mutated exclusively by the
// coordinator; never destroyed while the process runs.
type AgentInfo struct {
	AgentID            string         `json:"agent_id"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	Capabilities       []string       `json:"capabilities,omitempty"`
	Status             AgentStatus    `json:"status"`
	CurrentTask        string         `json:"current_task,omitempty"`
	TaskQueueSize      int            `json:"task_queue_size"`
	LastActivity       time.Time      `json:"last_activity"`
	PerformanceMetrics map[string]any `json:"performance_metrics,omitempty"`
}

// Clone returns a deep-enough copy for read-only projections; callers
// must not reach back into registry-owned state through a snapshot.
func (a *AgentInfo) Clone() AgentInfo {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	cp.PerformanceMetrics = make(map[string]any, len(a.PerformanceMetrics))
	for k, v := range a.PerformanceMetrics {
		cp.PerformanceMetrics[k] = v
	}
	return cp
}
