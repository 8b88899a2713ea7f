package coordinator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/types"
)

// Ledger is the append-only history of finalized tasks plus running
// statistics. A task enters the ledger exactly once, with a terminal
// status; the ledger owns the entry from then on.
//
// Averages are maintained with the incremental weighted-recompute
// formula new_avg = (old_avg*(n-1) + v) / n, never by rescanning
// history.
type Ledger struct {
	mu      sync.RWMutex
	history []*types.Task
	seen    map[string]struct{}

	totalTasks     int
	completedTasks int
	failedTasks    int
	avgCompletion  time.Duration
	perAgent       map[string]*types.AgentStats

	logger *zap.Logger
}

// NewLedger creates an empty outcome ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		seen:     make(map[string]struct{}),
		perAgent: make(map[string]*types.AgentStats),
		logger:   logger.With(zap.String("component", "ledger")),
	}
}

// Append records a finalized task and folds its outcome into the
// running statistics. completionTime is the wall time from admission to
// finalization. A duplicate append is a coordinator bug; it is logged
// and dropped so history stays exactly-once.
func (l *Ledger) Append(task *types.Task, completionTime time.Duration) {
	if task == nil || !task.Status.IsTerminal() {
		l.logger.Error("ledger rejected non-terminal task",
			zap.String("task_id", taskID(task)),
		)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[task.ID]; dup {
		l.logger.Error("duplicate ledger append dropped", zap.String("task_id", task.ID))
		return
	}
	l.seen[task.ID] = struct{}{}
	l.history = append(l.history, task)

	success := task.Status == types.TaskCompleted

	l.totalTasks++
	if success {
		l.completedTasks++
	} else {
		l.failedTasks++
	}
	l.avgCompletion = foldAvg(l.avgCompletion, l.totalTasks, completionTime)

	stats, ok := l.perAgent[task.AgentID]
	if !ok {
		stats = &types.AgentStats{}
		l.perAgent[task.AgentID] = stats
	}
	stats.TasksCompleted++
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	n := float64(stats.TasksCompleted)
	stats.SuccessRate = (stats.SuccessRate*(n-1) + outcome) / n
	stats.AvgCompletionTime = foldAvg(stats.AvgCompletionTime, stats.TasksCompleted, completionTime)
}

// foldAvg applies the incremental average update for the n-th sample.
func foldAvg(old time.Duration, n int, v time.Duration) time.Duration {
	if n <= 1 {
		return v
	}
	return time.Duration((int64(old)*int64(n-1) + int64(v)) / int64(n))
}

// Contains reports whether a task id has been finalized.
func (l *Ledger) Contains(taskID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[taskID]
	return ok
}

// Outcome returns the terminal status of a finalized task.
func (l *Ledger) Outcome(taskID string) (types.TaskStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.seen[taskID]; !ok {
		return "", false
	}
	// History is append-only and small relative to lookups by recent
	// finalizers; scan from the tail.
	for i := len(l.history) - 1; i >= 0; i-- {
		if l.history[i].ID == taskID {
			return l.history[i].Status, true
		}
	}
	return "", false
}

// History returns up to limit most recent finalized tasks, newest last.
// limit <= 0 returns the full history.
func (l *Ledger) History(limit int) []*types.Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if limit > 0 && len(l.history) > limit {
		start = len(l.history) - limit
	}
	out := make([]*types.Task, len(l.history)-start)
	copy(out, l.history[start:])
	return out
}

// Len returns the number of finalized tasks.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.history)
}

// Stats returns a copy of the aggregate statistics.
func (l *Ledger) Stats() types.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	util := make(map[string]types.AgentStats, len(l.perAgent))
	for id, s := range l.perAgent {
		util[id] = *s
	}
	return types.Stats{
		TotalTasks:        l.totalTasks,
		CompletedTasks:    l.completedTasks,
		FailedTasks:       l.failedTasks,
		AvgCompletionTime: l.avgCompletion,
		AgentUtilization:  util,
	}
}

func taskID(task *types.Task) string {
	if task == nil {
		return "<nil>"
	}
	return task.ID
}
