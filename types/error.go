package types

import "fmt"

// ErrorCode represents a unified error code across the coordinator.
type ErrorCode string

// Admission-time error codes. These are returned synchronously to the
// caller and the task never enters the active set.
const (
	ErrInvalidTask          ErrorCode = "INVALID_TASK"
	ErrAgentUnavailable     ErrorCode = "AGENT_UNAVAILABLE"
	ErrCoordinatorSaturated ErrorCode = "COORDINATOR_SATURATED"
	ErrNotRunning           ErrorCode = "NOT_RUNNING"
)

// Post-admission error codes. These are stamped onto the task record
// and surfaced via history and status queries.
const (
	ErrDependencyTimeout ErrorCode = "DEPENDENCY_TIMEOUT"
	ErrDependencyFailed  ErrorCode = "DEPENDENCY_FAILED"
	ErrExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrTaskTimeout       ErrorCode = "TASK_TIMEOUT"
)

// Coordination error codes.
const (
	ErrNoAvailableAgents       ErrorCode = "NO_AVAILABLE_AGENTS"
	ErrLeaderNotParticipating  ErrorCode = "LEADER_NOT_PARTICIPATING"
	ErrJointSessionUnavailable ErrorCode = "JOINT_SESSION_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	AgentID   string    `json:"agent_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgent sets the agent the error originated from.
func (e *Error) WithAgent(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
