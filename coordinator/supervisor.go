package coordinator

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/types"
)

// Supervisor periodically sweeps the active set and forcibly finalizes
// tasks whose age exceeds the global task timeout. It is the sole
// mechanism for reclaiming hung agent executions: expiring a task
// cancels its execution context, so the in-flight agent call is
// released rather than leaking detached.
type Supervisor struct {
	active   *activeSet
	interval time.Duration
	timeout  time.Duration

	// expire finalizes one overdue task; wired to the coordinator's
	// finalize path so history, registry, semaphore and metrics stay
	// consistent.
	expire func(taskID string)

	stopCh chan struct{}
	doneCh chan struct{}
	logger *zap.Logger
}

// NewSupervisor creates a timeout supervisor over the active set.
func NewSupervisor(active *activeSet, interval, timeout time.Duration, expire func(taskID string), logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		active:   active,
		interval: interval,
		timeout:  timeout,
		expire:   expire,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger.With(zap.String("component", "supervisor")),
	}
}

// Start launches the sweep loop.
func (s *Supervisor) Start() {
	go s.loop()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Supervisor) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Supervisor) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			s.logger.Info("supervisor stopped")
			return
		}
	}
}

// Sweep finalizes every active task older than the global timeout. It
// is exported so tests can trigger a sweep without waiting for the
// ticker.
func (s *Supervisor) Sweep() {
	overdue := s.active.olderThan(time.Now().Add(-s.timeout))
	for _, taskID := range overdue {
		s.logger.Warn("task exceeded global timeout",
			zap.String("task_id", taskID),
			zap.Duration("timeout", s.timeout),
		)
		s.expire(taskID)
	}
}

// expireError is the error message stamped onto timed-out tasks.
func expireError() *types.Error {
	return types.NewError(types.ErrTaskTimeout, "task execution timeout")
}
