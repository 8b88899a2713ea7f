package coordinator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/types"
)

// activeView is the resolver's read-only view over the active-task set.
// Implemented by the coordinator's active map.
type activeView interface {
	// IsActive reports whether a task id is admitted and not finalized.
	IsActive(taskID string) bool
}

// Resolver validates tasks at admission and gates execution on their
// declared dependencies. A dependency is satisfied once it leaves the
// active set; under the succeed_only policy it must additionally have
// finalized as completed.
type Resolver struct {
	registry *Registry
	ledger   *Ledger
	active   activeView

	window       time.Duration
	pollInterval time.Duration
	policy       config.DependencyPolicy

	logger *zap.Logger
}

// NewResolver creates a dependency resolver over the given views.
func NewResolver(registry *Registry, ledger *Ledger, active activeView, cfg config.CoordinatorConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry:     registry,
		ledger:       ledger,
		active:       active,
		window:       cfg.DependencyWindow,
		pollInterval: cfg.DependencyPollInterval,
		policy:       cfg.DependencyPolicy,
		logger:       logger.With(zap.String("component", "resolver")),
	}
}

// Validate checks a task before admission: non-empty id, agent id and
// description; target agent registered; every dependency id either
// currently active or already in history. Unknown dependency ids reject
// the task before it is ever queued.
func (r *Resolver) Validate(task *types.Task) error {
	if task == nil {
		return types.NewError(types.ErrInvalidTask, "task is nil")
	}
	if task.ID == "" || task.AgentID == "" || task.Description == "" {
		return types.NewError(types.ErrInvalidTask, "task id, agent id and description are required")
	}
	if !task.Priority.Valid() {
		return types.NewError(types.ErrInvalidTask, "unknown priority: "+string(task.Priority))
	}
	if !r.registry.Exists(task.AgentID) {
		return types.NewError(types.ErrInvalidTask, "unknown agent: "+task.AgentID)
	}
	for _, dep := range task.Dependencies {
		if !r.active.IsActive(dep) && !r.ledger.Contains(dep) {
			return types.NewError(types.ErrInvalidTask, "unknown dependency: "+dep)
		}
	}
	return nil
}

// Await blocks until every dependency of the task has left the active
// set, the wait window elapses, or ctx is cancelled. Returns nil when
// all dependencies are satisfied; DEPENDENCY_TIMEOUT naming the still
// pending ids when the window elapses; DEPENDENCY_FAILED under the
// succeed_only policy when a dependency finalized unsuccessfully.
func (r *Resolver) Await(ctx context.Context, task *types.Task) error {
	if len(task.Dependencies) == 0 {
		return nil
	}

	deadline := time.NewTimer(r.window)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		pending := r.pending(task.Dependencies)
		if len(pending) == 0 {
			return r.checkOutcomes(task.Dependencies)
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			r.logger.Warn("dependency window elapsed",
				zap.String("task_id", task.ID),
				zap.Strings("pending", pending),
			)
			return types.NewError(types.ErrDependencyTimeout,
				"dependencies not completed: "+strings.Join(pending, ", "))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pending returns the dependency ids not yet satisfied. Finalization
// removes a task from the active set before its outcome lands in the
// ledger; under succeed_only the verdict needs that outcome, so a
// dependency inside the removal/append gap still counts as pending.
func (r *Resolver) pending(deps []string) []string {
	var out []string
	for _, dep := range deps {
		if r.active.IsActive(dep) {
			out = append(out, dep)
			continue
		}
		if r.policy == config.DependencySucceedOnly && !r.ledger.Contains(dep) {
			out = append(out, dep)
		}
	}
	return out
}

// checkOutcomes applies the dependency policy once every dependency has
// a recorded outcome.
func (r *Resolver) checkOutcomes(deps []string) error {
	if r.policy != config.DependencySucceedOnly {
		return nil
	}
	var failed []string
	for _, dep := range deps {
		if status, ok := r.ledger.Outcome(dep); ok && status != types.TaskCompleted {
			failed = append(failed, dep)
		}
	}
	if len(failed) > 0 {
		return types.NewError(types.ErrDependencyFailed,
			"dependencies did not succeed: "+strings.Join(failed, ", "))
	}
	return nil
}
