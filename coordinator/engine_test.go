package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/types"
)

func newTestEngine(t *testing.T, joint types.JointSessionRunner, leaderID string, execs ...*mockExecutor) (*Engine, *Registry) {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	executors := make(map[string]types.Executor, len(execs))
	for _, m := range execs {
		registry.Register(types.AgentInfo{AgentID: m.id, Name: m.id})
		require.NoError(t, registry.Activate(m.id))
		executors[m.id] = m
	}
	return NewEngine(registry, executors, joint, leaderID, zap.NewNop()), registry
}

func coordReq(strategy types.Strategy, agentIDs ...string) types.CoordinationRequest {
	return types.CoordinationRequest{
		AgentIDs:  agentIDs,
		Objective: "build the report",
		Strategy:  strategy,
		Context:   map[string]any{"quarter": "Q3"},
	}
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e, _ := newTestEngine(t, nil, "", &mockExecutor{id: "a1"})

	_, err := e.Coordinate(context.Background(), coordReq(types.Strategy("voting"), "a1"))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTask, types.GetErrorCode(err))
}

func TestEngine_NoEligibleAgents(t *testing.T) {
	busy := &mockExecutor{id: "a1"}
	e, registry := newTestEngine(t, nil, "", busy)
	require.NoError(t, registry.MarkBusy("a1", "t1"))

	// Unregistered, busy, and unknown participants all drop out.
	_, err := e.Coordinate(context.Background(), coordReq(types.StrategyParallel, "a1", "ghost"))
	require.Error(t, err)
	assert.Equal(t, types.ErrNoAvailableAgents, types.GetErrorCode(err))
	assert.Zero(t, busy.callCount())
}

func TestEngine_EligibleFiltersAndPreservesOrder(t *testing.T) {
	a := &mockExecutor{id: "a"}
	b := &mockExecutor{id: "b"}
	c := &mockExecutor{id: "c"}
	e, registry := newTestEngine(t, nil, "", a, b, c)
	require.NoError(t, registry.Deactivate("b"))

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategySequential, "c", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, res.Participants)
	assert.Zero(t, b.callCount())
}

func TestEngine_ParallelCollectsAllResponses(t *testing.T) {
	a := &mockExecutor{id: "a"}
	b := &mockExecutor{id: "b"}
	e, _ := newTestEngine(t, nil, "", a, b)

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategyParallel, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, types.StrategyParallel, res.Strategy)
	assert.Equal(t, "output from a", res.Results["a"])
	assert.Equal(t, "output from b", res.Results["b"])
	assert.Contains(t, a.lastPrompt(), "Objective: build the report")
	assert.Contains(t, a.lastPrompt(), "Work independently")
}

func TestEngine_ParallelIsolatesFailures(t *testing.T) {
	a := &mockExecutor{id: "a"}
	b := &mockExecutor{id: "b", processFn: func(context.Context, string) (string, error) {
		return "", errors.New("model overloaded")
	}}
	e, _ := newTestEngine(t, nil, "", a, b)

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategyParallel, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "output from a", res.Results["a"])
	assert.Equal(t, "Error: model overloaded", res.Results["b"])
}

func TestEngine_SequentialThreadsResultsForward(t *testing.T) {
	a := &mockExecutor{id: "a", processFn: func(context.Context, string) (string, error) {
		return "draft", nil
	}}
	b := &mockExecutor{id: "b"}
	e, _ := newTestEngine(t, nil, "", a, b)

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategySequential, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "draft", res.Results["step_1_a"])
	assert.Equal(t, "output from b", res.Results["step_2_b"])

	// The second prompt carries the first agent's output twice: in the
	// previous-results block and in the accumulated context.
	assert.Contains(t, b.lastPrompt(), "Sequential Task 2/2")
	assert.Contains(t, b.lastPrompt(), "step_1_a")
	assert.Contains(t, b.lastPrompt(), "previous_a")
	assert.Contains(t, b.lastPrompt(), "draft")
}

func TestEngine_SequentialAbortsOnFirstFailure(t *testing.T) {
	a := &mockExecutor{id: "a", processFn: func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	}}
	b := &mockExecutor{id: "b"}
	e, _ := newTestEngine(t, nil, "", a, b)

	_, err := e.Coordinate(context.Background(), coordReq(types.StrategySequential, "a", "b"))
	require.Error(t, err)
	assert.Equal(t, types.ErrExecutionFailure, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "step 1")
	assert.Zero(t, b.callCount())
}

func TestEngine_HierarchicalLeaderDirectsFollowers(t *testing.T) {
	lead := &mockExecutor{id: "lead", processFn: func(context.Context, string) (string, error) {
		return "split the work", nil
	}}
	f1 := &mockExecutor{id: "f1"}
	f2 := &mockExecutor{id: "f2", processFn: func(context.Context, string) (string, error) {
		return "", errors.New("offline")
	}}
	e, _ := newTestEngine(t, nil, "lead", lead, f1, f2)

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategyHierarchical, "lead", "f1", "f2"))
	require.NoError(t, err)
	assert.Equal(t, "split the work", res.Results["leader_directive"])
	assert.Equal(t, "output from f1", res.Results["f1"])
	assert.Equal(t, "Error: offline", res.Results["f2"])

	assert.Contains(t, lead.lastPrompt(), "As the lead agent")
	assert.Contains(t, lead.lastPrompt(), "lead, f1, f2")
	assert.Contains(t, f1.lastPrompt(), "Leader Direction: split the work")
}

func TestEngine_HierarchicalWithoutLeaderFails(t *testing.T) {
	lead := &mockExecutor{id: "lead"}
	f1 := &mockExecutor{id: "f1"}
	e, _ := newTestEngine(t, nil, "lead", lead, f1)

	_, err := e.Coordinate(context.Background(), coordReq(types.StrategyHierarchical, "f1"))
	require.Error(t, err)
	assert.Equal(t, types.ErrLeaderNotParticipating, types.GetErrorCode(err))
	assert.Zero(t, f1.callCount())
}

func TestEngine_HierarchicalLeaderFailureIsFatal(t *testing.T) {
	lead := &mockExecutor{id: "lead", processFn: func(context.Context, string) (string, error) {
		return "", errors.New("leader down")
	}}
	f1 := &mockExecutor{id: "f1"}
	e, _ := newTestEngine(t, nil, "lead", lead, f1)

	_, err := e.Coordinate(context.Background(), coordReq(types.StrategyHierarchical, "lead", "f1"))
	require.Error(t, err)
	assert.Equal(t, types.ErrExecutionFailure, types.GetErrorCode(err))
	assert.Zero(t, f1.callCount())
}

func TestEngine_CollaborativeRunsJointSession(t *testing.T) {
	a := &mockExecutor{id: "a"}
	b := &mockExecutor{id: "b"}
	joint := &mockJointSession{}
	e, _ := newTestEngine(t, joint, "", a, b)

	res, err := e.Coordinate(context.Background(), coordReq(types.StrategyCollaborative, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "joint response", res.Response)
	assert.Empty(t, res.Results)
	require.Len(t, joint.sessions, 1)
	assert.Equal(t, []string{"a", "b"}, joint.sessions[0])
	// Individual executors are not queried in a shared session.
	assert.Zero(t, a.callCount())
	assert.Zero(t, b.callCount())
}

func TestEngine_CollaborativeWithoutBackendFails(t *testing.T) {
	a := &mockExecutor{id: "a"}
	e, _ := newTestEngine(t, nil, "", a)

	_, err := e.Coordinate(context.Background(), coordReq(types.StrategyCollaborative, "a"))
	require.Error(t, err)
	assert.Equal(t, types.ErrJointSessionUnavailable, types.GetErrorCode(err))
}

func TestRenderContext(t *testing.T) {
	assert.Equal(t, "{}", renderContext(nil))
	out := renderContext(map[string]any{"k": "v"})
	assert.Contains(t, out, `"k": "v"`)
}
