package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-memory implementation of Store. Suitable for
// development and testing; data is lost on restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record
	closed  bool
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]*Record)}
}

// Save persists one record for an agent.
func (s *InMemoryStore) Save(ctx context.Context, agentID, kind string, payload any, importance float64) error {
	if agentID == "" || kind == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.records[agentID] = append(s.records[agentID], &Record{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Kind:       kind,
		Payload:    payload,
		Importance: importance,
		CreatedAt:  time.Now(),
	})
	return nil
}

// Retrieve returns matching records, most important first.
func (s *InMemoryStore) Retrieve(ctx context.Context, agentID string, filter Filter, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make([]*Record, 0)
	for _, r := range s.records[agentID] {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping checks if the store is healthy.
func (s *InMemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ensure InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)
