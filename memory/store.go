// Package memory provides the coordinator's knowledge/memory store
// capability: persist and retrieve records by agent id and importance.
//
// The store is an external collaborator from the coordinator's point of
// view — eventually consistent, never blocking indefinitely. Supported
// backends:
//   - Memory: for development and testing (default)
//   - Redis: for production deployments
package memory

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Record is one stored memory entry.
type Record struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Kind       string    `json:"kind"`
	Payload    any       `json:"payload"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows a Retrieve call. Zero values match everything.
type Filter struct {
	// Kind matches records of one kind when non-empty.
	Kind string
	// MinImportance drops records below the threshold.
	MinImportance float64
	// Since drops records created before the given time.
	Since time.Time
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(r *Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if r.Importance < f.MinImportance {
		return false
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Store is the memory store capability consumed by the coordinator.
type Store interface {
	// Save persists one record for an agent. Records with higher
	// importance are returned first by Retrieve.
	Save(ctx context.Context, agentID, kind string, payload any, importance float64) error

	// Retrieve returns up to limit of the agent's records matching the
	// filter, most important first (ties broken newest first).
	// limit <= 0 means no limit.
	Retrieve(ctx context.Context, agentID string, filter Filter, limit int) ([]*Record, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
