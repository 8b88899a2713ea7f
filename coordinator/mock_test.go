package coordinator

import (
	"context"
	"sync"

	"github.com/BaSui01/coordflow/types"
)

// mockExecutor implements types.Executor with function callbacks.
type mockExecutor struct {
	id        string
	processFn func(ctx context.Context, prompt string) (string, error)
	healthFn  func(ctx context.Context) (types.HealthReport, error)

	mu      sync.Mutex
	prompts []string
}

func (m *mockExecutor) ID() string { return m.id }

func (m *mockExecutor) Process(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.processFn != nil {
		return m.processFn(ctx, prompt)
	}
	return "output from " + m.id, nil
}

func (m *mockExecutor) Health(ctx context.Context) (types.HealthReport, error) {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return types.HealthReport{Healthy: true}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockExecutor) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// mockJointSession implements types.JointSessionRunner.
type mockJointSession struct {
	runFn func(ctx context.Context, agentIDs []string, prompt string) (string, error)

	mu       sync.Mutex
	sessions [][]string
}

func (m *mockJointSession) RunJointSession(ctx context.Context, agentIDs []string, prompt string) (string, error) {
	m.mu.Lock()
	m.sessions = append(m.sessions, agentIDs)
	m.mu.Unlock()

	if m.runFn != nil {
		return m.runFn(ctx, agentIDs, prompt)
	}
	return "joint response", nil
}
