package types

// AgentStatus represents the lifecycle state of a registered agent.
type AgentStatus string

const (
	AgentInactive    AgentStatus = "inactive"
	AgentActive      AgentStatus = "active"
	AgentBusy        AgentStatus = "busy"
	AgentError       AgentStatus = "error"
	AgentMaintenance AgentStatus = "maintenance"
)

// Available reports whether an agent in this status may accept a task.
// Only ACTIVE and INACTIVE agents are admissible targets.
func (s AgentStatus) Available() bool {
	return s == AgentActive || s == AgentInactive
}

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskTimeout   TaskStatus = "timeout"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal outcome.
// A task reaches exactly one terminal status, after which it lives in
// history and is never re-admitted.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskTimeout, TaskCancelled:
		return true
	}
	return false
}

// TaskPriority is advisory metadata attached to a task. It is rendered
// into the agent prompt and recorded in history but does not reorder
// admission or execution.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityNormal   TaskPriority = "normal"
	PriorityHigh     TaskPriority = "high"
	PriorityUrgent   TaskPriority = "urgent"
	PriorityCritical TaskPriority = "critical"
)

// Valid reports whether the priority is one of the known levels.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Strategy selects how a coordination request combines agent outputs.
type Strategy string

const (
	StrategySequential    Strategy = "sequential"
	StrategyParallel      Strategy = "parallel"
	StrategyHierarchical  Strategy = "hierarchical"
	StrategyCollaborative Strategy = "collaborative"
)

// Valid reports whether the strategy is one of the four supported modes.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyParallel, StrategyHierarchical, StrategyCollaborative:
		return true
	}
	return false
}
