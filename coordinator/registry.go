package coordinator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/types"
)

// Registry holds per-agent descriptors and enforces the status state
// machine:
//
//	INACTIVE → ACTIVE → BUSY → {ACTIVE, ERROR}
//
// plus the administrative MAINTENANCE state reachable from
// ACTIVE/INACTIVE. Agents are registered once at system start and never
// destroyed while the process runs. All accessors are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*types.AgentInfo
	logger *zap.Logger
}

// NewRegistry creates an empty agent registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]*types.AgentInfo),
		logger: logger.With(zap.String("component", "registry")),
	}
}

// Register adds an agent descriptor in the INACTIVE state. Registering
// the same id twice replaces the descriptor; callers register each
// agent exactly once during construction.
func (r *Registry) Register(info types.AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info.Status = types.AgentInactive
	info.LastActivity = time.Now()
	if info.PerformanceMetrics == nil {
		info.PerformanceMetrics = map[string]any{}
	}
	r.agents[info.AgentID] = &info
	r.logger.Info("registered agent",
		zap.String("agent_id", info.AgentID),
		zap.Strings("capabilities", info.Capabilities),
	)
}

// Activate transitions an agent from INACTIVE or ERROR to ACTIVE and
// stamps its last activity.
func (r *Registry) Activate(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return types.NewError(types.ErrAgentUnavailable, "agent not found: "+agentID)
	}
	switch info.Status {
	case types.AgentInactive, types.AgentError, types.AgentActive:
		info.Status = types.AgentActive
		info.LastActivity = time.Now()
		r.logger.Info("agent activated", zap.String("agent_id", agentID))
		return nil
	default:
		return types.NewError(types.ErrAgentUnavailable,
			"agent "+agentID+" cannot be activated from status "+string(info.Status))
	}
}

// Deactivate transitions an agent to INACTIVE from any state.
func (r *Registry) Deactivate(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return types.NewError(types.ErrAgentUnavailable, "agent not found: "+agentID)
	}
	info.Status = types.AgentInactive
	info.CurrentTask = ""
	info.LastActivity = time.Now()
	r.logger.Info("agent deactivated", zap.String("agent_id", agentID))
	return nil
}

// SetMaintenance places an ACTIVE or INACTIVE agent into the
// administrative MAINTENANCE state. Admission against it is rejected
// until it is activated again.
func (r *Registry) SetMaintenance(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return types.NewError(types.ErrAgentUnavailable, "agent not found: "+agentID)
	}
	if !info.Status.Available() {
		return types.NewError(types.ErrAgentUnavailable,
			"agent "+agentID+" cannot enter maintenance from status "+string(info.Status))
	}
	info.Status = types.AgentMaintenance
	info.LastActivity = time.Now()
	r.logger.Info("agent placed in maintenance", zap.String("agent_id", agentID))
	return nil
}

// MarkBusy transitions an agent to BUSY on task admission and binds the
// task id. Fails if the agent is not ACTIVE or INACTIVE: admission is
// rejected with AGENT_UNAVAILABLE. The queue-size counter increments
// atomically with the transition.
func (r *Registry) MarkBusy(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return types.NewError(types.ErrAgentUnavailable, "agent not found: "+agentID)
	}
	if !info.Status.Available() {
		return types.NewError(types.ErrAgentUnavailable,
			"agent "+agentID+" is not available (status: "+string(info.Status)+")")
	}
	info.Status = types.AgentBusy
	info.CurrentTask = taskID
	info.TaskQueueSize++
	info.LastActivity = time.Now()
	return nil
}

// MarkIdle returns a BUSY agent to ACTIVE after a successful or
// timed-out task. Timed-out agents are presumed recoverable. The
// queue-size counter decrements, floored at zero.
func (r *Registry) MarkIdle(agentID string) {
	r.release(agentID, types.AgentActive)
}

// MarkError moves a BUSY agent to ERROR after a task failure. The agent
// stays in ERROR until explicitly reactivated.
func (r *Registry) MarkError(agentID string) {
	r.release(agentID, types.AgentError)
}

func (r *Registry) release(agentID string, to types.AgentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return
	}
	info.Status = to
	info.CurrentTask = ""
	if info.TaskQueueSize > 0 {
		info.TaskQueueSize--
	}
	info.LastActivity = time.Now()
}

// Get returns a snapshot of one agent's descriptor.
func (r *Registry) Get(agentID string) (types.AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.agents[agentID]
	if !ok {
		return types.AgentInfo{}, false
	}
	return info.Clone(), true
}

// Exists reports whether an agent id is registered.
func (r *Registry) Exists(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentID]
	return ok
}

// Status returns an agent's current status.
func (r *Registry) Status(agentID string) (types.AgentStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.agents[agentID]
	if !ok {
		return "", false
	}
	return info.Status, true
}

// Snapshot returns copies of every descriptor keyed by agent id.
func (r *Registry) Snapshot() map[string]types.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]types.AgentInfo, len(r.agents))
	for id, info := range r.agents {
		out[id] = info.Clone()
	}
	return out
}

// IDs returns every registered agent id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// CountByStatus returns how many agents currently hold the given status.
func (r *Registry) CountByStatus(status types.AgentStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, info := range r.agents {
		if info.Status == status {
			n++
		}
	}
	return n
}

// SetMetric records one entry in an agent's performance-metrics map.
func (r *Registry) SetMetric(agentID, key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.agents[agentID]; ok {
		info.PerformanceMetrics[key] = value
	}
}
