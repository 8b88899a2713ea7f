package types

import "context"

// Executor is the minimal agent execution capability: an identity and a
// prompt-in/text-out call. The coordinator never inspects the agent's
// internals; Process may fail or hang, and carries no timeout contract
// of its own — the coordinator imposes one through ctx.
type Executor interface {
	// ID returns the agent's unique identifier.
	ID() string
	// Process runs the agent against a prompt and returns its textual result.
	Process(ctx context.Context, prompt string) (string, error)
}

// HealthReporter is an optional capability for agents that expose their
// own health probe. Use a type assertion to check if an Executor also
// implements HealthReporter:
//
//	if hr, ok := exec.(types.HealthReporter); ok {
//	    report, err := hr.Health(ctx)
//	}
type HealthReporter interface {
	// Health returns the agent's structured health status.
	Health(ctx context.Context) (HealthReport, error)
}

// Describable is an optional capability for executors that carry a
// richer self-description. The coordinator uses it to seed the agent
// descriptor at registration; absent the capability, the descriptor
// holds only the agent id.
type Describable interface {
	// Describe returns the agent's name, description and capability tags.
	Describe() (name, description string, capabilities []string)
}

// JointSessionRunner runs several agents inside one shared session and
// returns a single composite response. The collaborative strategy is
// the only consumer; keeping it behind this interface keeps the
// coordinator core independent of any specific agent-execution backend.
type JointSessionRunner interface {
	RunJointSession(ctx context.Context, agentIDs []string, prompt string) (string, error)
}
