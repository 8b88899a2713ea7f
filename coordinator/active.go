package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/coordflow/types"
)

// activeEntry is one admitted, not-yet-finalized task together with the
// bookkeeping the coordinator needs to supervise it: the admission
// time for timeout sweeps and the cancel func that actually releases
// the in-flight agent call when the task is abandoned.
type activeEntry struct {
	task       *types.Task
	admittedAt time.Time
	cancel     context.CancelFunc

	// finalized guards exactly-once finalization between the execution
	// goroutine, the supervisor sweep, and shutdown drain.
	finalized bool
}

// activeSet is the map of tasks currently admitted and not finalized.
// It is the single ownership point for in-flight task state.
type activeSet struct {
	mu      sync.RWMutex
	entries map[string]*activeEntry
}

func newActiveSet() *activeSet {
	return &activeSet{entries: make(map[string]*activeEntry)}
}

// IsActive implements the resolver's activeView.
func (s *activeSet) IsActive(taskID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[taskID]
	return ok
}

func (s *activeSet) insert(e *activeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.task.ID] = e
}

// take claims an entry for finalization and removes it from the set.
// Returns false when the task is unknown or already claimed, making
// finalization exactly-once regardless of which path gets there first.
func (s *activeSet) take(taskID string) (*activeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[taskID]
	if !ok || e.finalized {
		return nil, false
	}
	e.finalized = true
	delete(s.entries, taskID)
	return e, true
}

func (s *activeSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// olderThan returns the ids of entries admitted before the cutoff.
func (s *activeSet) olderThan(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, e := range s.entries {
		if e.admittedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ids returns every active task id.
func (s *activeSet) ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}
