package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/coordflow/types"
)

// Engine implements the four multi-agent coordination strategies over
// the registered executors. Participants are filtered to ACTIVE agents;
// others are silently dropped. An empty eligible set fails the request
// with NO_AVAILABLE_AGENTS.
type Engine struct {
	registry  *Registry
	executors map[string]types.Executor
	joint     types.JointSessionRunner
	leaderID  string
	logger    *zap.Logger
}

// NewEngine creates a coordination engine. leaderID names the agent the
// hierarchical strategy treats as leader; joint may be nil when no
// joint-session backend is available, which disables the collaborative
// strategy.
func NewEngine(registry *Registry, executors map[string]types.Executor, joint types.JointSessionRunner, leaderID string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:  registry,
		executors: executors,
		joint:     joint,
		leaderID:  leaderID,
		logger:    logger.With(zap.String("component", "engine")),
	}
}

// Coordinate filters participants and dispatches to the requested
// strategy. Strategy failures are returned as errors; the coordinator
// wraps them into the response envelope.
func (e *Engine) Coordinate(ctx context.Context, req types.CoordinationRequest) (*types.CoordinationResult, error) {
	if !req.Strategy.Valid() {
		return nil, types.NewError(types.ErrInvalidTask, "unknown strategy: "+string(req.Strategy))
	}

	eligible := e.eligible(req.AgentIDs)
	if len(eligible) == 0 {
		return nil, types.NewError(types.ErrNoAvailableAgents, "no valid agents available for coordination")
	}

	e.logger.Info("coordinating agents",
		zap.String("strategy", string(req.Strategy)),
		zap.Strings("participants", eligible),
	)

	switch req.Strategy {
	case types.StrategyParallel:
		return e.parallel(ctx, eligible, req)
	case types.StrategySequential:
		return e.sequential(ctx, eligible, req)
	case types.StrategyHierarchical:
		return e.hierarchical(ctx, eligible, req)
	case types.StrategyCollaborative:
		return e.collaborative(ctx, eligible, req)
	}
	return nil, types.NewError(types.ErrInvalidTask, "unknown strategy: "+string(req.Strategy))
}

// eligible keeps the participants that are registered and ACTIVE,
// preserving request order.
func (e *Engine) eligible(agentIDs []string) []string {
	var out []string
	for _, id := range agentIDs {
		if _, ok := e.executors[id]; !ok {
			continue
		}
		if status, ok := e.registry.Status(id); ok && status == types.AgentActive {
			out = append(out, id)
		}
	}
	return out
}

// parallel issues the objective to every participant concurrently.
// Each failure is captured in its agent's slot as "Error: <message>"
// rather than aborting the batch.
func (e *Engine) parallel(ctx context.Context, agents []string, req types.CoordinationRequest) (*types.CoordinationResult, error) {
	results := make(map[string]string, len(agents))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, agentID := range agents {
		agentID := agentID
		g.Go(func() error {
			prompt := fmt.Sprintf(
				"Parallel Task Assignment\n\nObjective: %s\nYour Role: Provide %s perspective and expertise\nContext: %s\n\nWork independently and provide your best contribution.",
				req.Objective, agentID, renderContext(req.Context),
			)
			response, err := e.executors[agentID].Process(gctx, prompt)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Failure isolation: one agent's error must not become
				// fatal for the batch.
				results[agentID] = "Error: " + err.Error()
				e.logger.Warn("parallel participant failed",
					zap.String("agent_id", agentID), zap.Error(err))
				return nil
			}
			results[agentID] = response
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.CoordinationResult{
		Strategy:     types.StrategyParallel,
		Participants: agents,
		Results:      results,
		Timestamp:    time.Now(),
	}, nil
}

// sequential issues the objective to agents in list order, folding each
// agent's output into the context passed to the next. The first failure
// aborts the remaining sequence.
func (e *Engine) sequential(ctx context.Context, agents []string, req types.CoordinationRequest) (*types.CoordinationResult, error) {
	results := make(map[string]string, len(agents))
	accumulated := make(map[string]any, len(req.Context)+len(agents))
	for k, v := range req.Context {
		accumulated[k] = v
	}

	for i, agentID := range agents {
		prompt := fmt.Sprintf(
			"Sequential Task %d/%d\n\nObjective: %s\nPrevious Results: %s\nCurrent Context: %s\n\nBuild upon previous work and contribute your expertise.",
			i+1, len(agents), req.Objective, renderResults(results), renderContext(accumulated),
		)
		response, err := e.executors[agentID].Process(ctx, prompt)
		if err != nil {
			return nil, types.NewError(types.ErrExecutionFailure,
				fmt.Sprintf("sequential step %d failed", i+1)).
				WithAgent(agentID).WithCause(err)
		}
		results[fmt.Sprintf("step_%d_%s", i+1, agentID)] = response
		accumulated["previous_"+agentID] = response
	}

	return &types.CoordinationResult{
		Strategy:     types.StrategySequential,
		Participants: agents,
		Results:      results,
		Timestamp:    time.Now(),
	}, nil
}

// hierarchical queries the leader first with the objective and full
// roster, then every other participant with the leader's directive
// injected. A request whose participants do not include the leader
// fails explicitly instead of returning an empty result.
func (e *Engine) hierarchical(ctx context.Context, agents []string, req types.CoordinationRequest) (*types.CoordinationResult, error) {
	if e.leaderID == "" || !contains(agents, e.leaderID) {
		return nil, types.NewError(types.ErrLeaderNotParticipating,
			"hierarchical coordination requires leader "+leaderName(e.leaderID)+" among participants")
	}

	leaderPrompt := fmt.Sprintf(
		"As the lead agent, coordinate the following agents to achieve this objective:\n\nObjective: %s\nAvailable Agents: %s\nContext: %s\n\nProvide strategic direction and coordinate the team.",
		req.Objective, strings.Join(agents, ", "), renderContext(req.Context),
	)
	directive, err := e.executors[e.leaderID].Process(ctx, leaderPrompt)
	if err != nil {
		return nil, types.NewError(types.ErrExecutionFailure, "leader query failed").
			WithAgent(e.leaderID).WithCause(err)
	}

	results := map[string]string{"leader_directive": directive}
	for _, agentID := range agents {
		if agentID == e.leaderID {
			continue
		}
		prompt := fmt.Sprintf(
			"Leader Direction: %s\nYour Role: Provide %s perspective on: %s\nContext: %s",
			directive, agentID, req.Objective, renderContext(req.Context),
		)
		response, err := e.executors[agentID].Process(ctx, prompt)
		if err != nil {
			// Followers are isolated like parallel slots; the leader's
			// directive already carries the request.
			results[agentID] = "Error: " + err.Error()
			e.logger.Warn("hierarchical follower failed",
				zap.String("agent_id", agentID), zap.Error(err))
			continue
		}
		results[agentID] = response
	}

	return &types.CoordinationResult{
		Strategy:     types.StrategyHierarchical,
		Participants: agents,
		Results:      results,
		Timestamp:    time.Now(),
	}, nil
}

// collaborative merges every participant into one shared session and
// issues a single combined prompt, returning the joint response.
func (e *Engine) collaborative(ctx context.Context, agents []string, req types.CoordinationRequest) (*types.CoordinationResult, error) {
	if e.joint == nil {
		return nil, types.NewError(types.ErrJointSessionUnavailable,
			"no joint session backend configured")
	}

	prompt := fmt.Sprintf(
		"Objective: %s\n\nContext: %s\n\nPlease collaborate to address this objective. Each agent should contribute their expertise and work together to develop a comprehensive solution.",
		req.Objective, renderContext(req.Context),
	)
	response, err := e.joint.RunJointSession(ctx, agents, prompt)
	if err != nil {
		return nil, types.NewError(types.ErrExecutionFailure, "joint session failed").WithCause(err)
	}

	return &types.CoordinationResult{
		Strategy:     types.StrategyCollaborative,
		Participants: agents,
		Response:     response,
		Timestamp:    time.Now(),
	}, nil
}

// renderContext serializes a context map for prompt injection.
func renderContext(ctx map[string]any) string {
	if len(ctx) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", ctx)
	}
	return string(data)
}

// renderResults serializes accumulated step results for prompt injection.
func renderResults(results map[string]string) string {
	if len(results) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", results)
	}
	return string(data)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func leaderName(id string) string {
	if id == "" {
		return "(unset)"
	}
	return id
}
