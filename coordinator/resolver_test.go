package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/types"
)

func testResolverConfig() config.CoordinatorConfig {
	cfg := config.Default().Coordinator
	cfg.DependencyWindow = 200 * time.Millisecond
	cfg.DependencyPollInterval = 10 * time.Millisecond
	return cfg
}

func newTestResolver(t *testing.T, cfg config.CoordinatorConfig) (*Resolver, *activeSet, *Ledger) {
	t.Helper()
	registry := newTestRegistry(t, "a1", "a2")
	ledger := NewLedger(zap.NewNop())
	active := newActiveSet()
	return NewResolver(registry, ledger, active, cfg, zap.NewNop()), active, ledger
}

func activate(active *activeSet, taskID string) {
	task := types.NewTask("a1", "dep", types.PriorityNormal, nil)
	task.ID = taskID
	active.insert(&activeEntry{task: task, admittedAt: time.Now(), cancel: func() {}})
}

func TestResolver_ValidateRequiredFields(t *testing.T) {
	r, _, _ := newTestResolver(t, testResolverConfig())

	for _, task := range []*types.Task{
		nil,
		{AgentID: "a1", Description: "d"},
		{ID: "t1", Description: "d"},
		{ID: "t1", AgentID: "a1"},
	} {
		err := r.Validate(task)
		require.Error(t, err)
		assert.Equal(t, types.ErrInvalidTask, types.GetErrorCode(err))
	}
}

func TestResolver_ValidateUnknownAgent(t *testing.T) {
	r, _, _ := newTestResolver(t, testResolverConfig())

	task := types.NewTask("ghost", "desc", types.PriorityNormal, nil)
	err := r.Validate(task)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTask, types.GetErrorCode(err))
}

func TestResolver_ValidateUnknownDependency(t *testing.T) {
	r, active, ledger := newTestResolver(t, testResolverConfig())
	activate(active, "dep-active")
	ledger.Append(finalizedTask("dep-done", "a1", types.TaskCompleted), time.Second)

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep-active", "dep-done"}
	require.NoError(t, r.Validate(task))

	task.Dependencies = append(task.Dependencies, "dep-ghost")
	err := r.Validate(task)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTask, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "dep-ghost")
}

func TestResolver_AwaitNoDependenciesReturnsImmediately(t *testing.T) {
	r, _, _ := newTestResolver(t, testResolverConfig())

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	start := time.Now()
	require.NoError(t, r.Await(context.Background(), task))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestResolver_AwaitSatisfiedWhenDependencyLeavesActiveSet(t *testing.T) {
	r, active, ledger := newTestResolver(t, testResolverConfig())
	activate(active, "dep1")

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}

	done := make(chan error, 1)
	go func() { done <- r.Await(context.Background(), task) }()

	time.Sleep(30 * time.Millisecond)
	entry, ok := active.take("dep1")
	require.True(t, ok)
	entry.task.Status = types.TaskFailed
	ledger.Append(entry.task, time.Second)

	select {
	case err := <-done:
		// Default any_terminal policy: a failed dependency still
		// releases the dependent task.
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("await did not return after dependency finalized")
	}
}

func TestResolver_AwaitWindowTimeout(t *testing.T) {
	cfg := testResolverConfig()
	r, active, _ := newTestResolver(t, cfg)
	activate(active, "dep1")

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}

	start := time.Now()
	err := r.Await(context.Background(), task)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, types.ErrDependencyTimeout, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "dep1")
	// The window bounds the wait: not before, not indefinitely after.
	assert.GreaterOrEqual(t, elapsed, cfg.DependencyWindow)
	assert.Less(t, elapsed, cfg.DependencyWindow+100*time.Millisecond)
}

func TestResolver_AwaitContextCancellation(t *testing.T) {
	r, active, _ := newTestResolver(t, testResolverConfig())
	activate(active, "dep1")

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Await(ctx, task) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("await ignored cancellation")
	}
}

func TestResolver_SucceedOnlyPolicyFailsOnFailedDependency(t *testing.T) {
	cfg := testResolverConfig()
	cfg.DependencyPolicy = config.DependencySucceedOnly
	r, _, ledger := newTestResolver(t, cfg)

	ledger.Append(finalizedTask("dep1", "a1", types.TaskFailed), time.Second)

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}

	err := r.Await(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, types.ErrDependencyFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "dep1")
}

func TestResolver_SucceedOnlyWaitsForRecordedOutcome(t *testing.T) {
	cfg := testResolverConfig()
	cfg.DependencyPolicy = config.DependencySucceedOnly
	r, active, ledger := newTestResolver(t, cfg)
	activate(active, "dep1")

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}

	done := make(chan error, 1)
	go func() { done <- r.Await(context.Background(), task) }()

	// Finalization removes the entry from the active set before the
	// outcome lands in the ledger. The dependent must not slip through
	// that gap: the failed outcome, recorded later, still decides the
	// verdict.
	time.Sleep(30 * time.Millisecond)
	entry, ok := active.take("dep1")
	require.True(t, ok)
	time.Sleep(50 * time.Millisecond)
	entry.task.Status = types.TaskFailed
	ledger.Append(entry.task, time.Second)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, types.ErrDependencyFailed, types.GetErrorCode(err))
	case <-time.After(time.Second):
		t.Fatal("await did not return after outcome was recorded")
	}
}

func TestResolver_SucceedOnlyPolicyPassesOnCompletedDependency(t *testing.T) {
	cfg := testResolverConfig()
	cfg.DependencyPolicy = config.DependencySucceedOnly
	r, _, ledger := newTestResolver(t, cfg)

	ledger.Append(finalizedTask("dep1", "a1", types.TaskCompleted), time.Second)

	task := types.NewTask("a1", "desc", types.PriorityNormal, nil)
	task.Dependencies = []string{"dep1"}
	require.NoError(t, r.Await(context.Background(), task))
}
