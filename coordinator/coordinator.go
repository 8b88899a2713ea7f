// Package coordinator implements the coordflow scheduling core: agent
// registry and status state machine, task admission with dependency
// resolution, timeout supervision, outcome bookkeeping, and the four
// multi-agent coordination strategies.
//
// A single Coordinator instance owns all state in memory. Task
// execution is fire-and-forget from the admission call's point of view:
// admission-time errors are returned synchronously, post-admission
// outcomes are stamped onto the task record and surfaced via history
// and status queries.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/internal/metrics"
	"github.com/BaSui01/coordflow/memory"
	"github.com/BaSui01/coordflow/types"
)

// snapshotAgentID is the reserved memory-store agent id for coordinator
// state snapshots.
const snapshotAgentID = "coordinator"

// Coordinator composes the registry, ledger, resolver, supervisor and
// engine into the top-level orchestrator.
type Coordinator struct {
	cfg    config.CoordinatorConfig
	logger *zap.Logger

	registry *Registry
	ledger   *Ledger
	active   *activeSet
	resolver *Resolver
	engine   *Engine

	executors   map[string]types.Executor
	store       memory.Store
	collector   *metrics.Collector
	jointRunner types.JointSessionRunner
	leaderID    string

	// sem enforces max_concurrent_tasks at admission.
	sem *semaphore.Weighted

	mu         sync.Mutex
	running    bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
	supervisor *Supervisor
	monitorWG  sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithMemoryStore wires the external memory store used for health
// reporting and the shutdown state snapshot.
func WithMemoryStore(store memory.Store) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithMetrics wires the Prometheus collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Coordinator) { c.collector = collector }
}

// WithJointSession wires the joint-session backend consumed by the
// collaborative strategy.
func WithJointSession(joint types.JointSessionRunner) Option {
	return func(c *Coordinator) { c.jointRunner = joint }
}

// WithLeader names the agent the hierarchical strategy treats as
// leader.
func WithLeader(agentID string) Option {
	return func(c *Coordinator) { c.leaderID = agentID }
}

// New creates a coordinator over the given executors. Each executor is
// registered as an agent descriptor in the INACTIVE state.
func New(cfg config.CoordinatorConfig, executors []types.Executor, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "coordinator"))

	c := &Coordinator{
		cfg:       cfg,
		logger:    logger,
		registry:  NewRegistry(logger),
		ledger:    NewLedger(logger),
		active:    newActiveSet(),
		executors: make(map[string]types.Executor, len(executors)),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentTasks)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, exec := range executors {
		c.executors[exec.ID()] = exec
		info := types.AgentInfo{AgentID: exec.ID(), Name: exec.ID()}
		if d, ok := exec.(types.Describable); ok {
			info.Name, info.Description, info.Capabilities = d.Describe()
		}
		c.registry.Register(info)
	}

	c.resolver = NewResolver(c.registry, c.ledger, c.active, cfg, logger)
	c.engine = NewEngine(c.registry, c.executors, c.jointRunner, c.leaderID, logger)
	return c
}

// Start activates every registered agent and launches the timeout
// supervisor plus the optional health and performance monitors.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("coordinator already running")
	}
	c.logger.Info("starting coordinator", zap.Int("agents", len(c.executors)))

	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())

	for id := range c.executors {
		if err := c.registry.Activate(id); err != nil {
			c.logger.Error("failed to activate agent", zap.String("agent_id", id), zap.Error(err))
		} else {
			c.collector.RecordAgentTransition(id, string(types.AgentInactive), string(types.AgentActive))
		}
	}

	c.supervisor = NewSupervisor(c.active, c.cfg.SupervisorInterval, c.cfg.TaskTimeout, c.expireTask, c.logger)
	c.supervisor.Start()

	if c.cfg.HealthInterval > 0 {
		c.monitorWG.Add(1)
		go c.healthMonitor(c.baseCtx)
	}
	if c.cfg.PerformanceInterval > 0 {
		c.monitorWG.Add(1)
		go c.performanceMonitor(c.baseCtx)
	}

	c.running = true
	c.logger.Info("coordinator started")
	return nil
}

// Stop drains the active set for up to the shutdown grace period,
// force-finalizes stragglers as cancelled, deactivates every agent and
// emits a best-effort state snapshot to the memory store.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator not running")
	}
	c.running = false
	c.mu.Unlock()

	c.logger.Info("stopping coordinator", zap.Int("active_tasks", c.active.len()))

	c.drain(ctx)

	for _, taskID := range c.active.ids() {
		c.finalize(taskID, types.TaskCancelled, "", "system shutdown")
	}

	c.supervisor.Stop()
	c.baseCancel()
	c.monitorWG.Wait()

	for id := range c.executors {
		if err := c.registry.Deactivate(id); err != nil {
			c.logger.Error("failed to deactivate agent", zap.String("agent_id", id), zap.Error(err))
		}
	}

	c.saveSnapshot(ctx)
	c.logger.Info("coordinator stopped")
	return nil
}

// drain waits for in-flight tasks to finish, bounded by the grace
// period and the caller's ctx.
func (c *Coordinator) drain(ctx context.Context) {
	if c.active.len() == 0 {
		return
	}
	c.logger.Info("draining active tasks",
		zap.Int("count", c.active.len()),
		zap.Duration("grace", c.cfg.ShutdownGrace),
	)

	deadline := time.NewTimer(c.cfg.ShutdownGrace)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for c.active.len() > 0 {
		select {
		case <-ticker.C:
		case <-deadline.C:
			c.logger.Warn("shutdown grace elapsed, cancelling remaining tasks",
				zap.Int("remaining", c.active.len()))
			return
		case <-ctx.Done():
			return
		}
	}
}

// AssignTask validates and admits a task, transitions its agent to
// BUSY, and launches the asynchronous execution flow. Admission-time
// failures are returned synchronously and the task never enters the
// active set. Returns the task id on success.
func (c *Coordinator) AssignTask(task *types.Task) (string, error) {
	c.mu.Lock()
	running := c.running
	baseCtx := c.baseCtx
	c.mu.Unlock()
	if !running {
		return "", types.NewError(types.ErrNotRunning, "coordinator is not running")
	}

	if err := c.resolver.Validate(task); err != nil {
		return "", err
	}

	// Admission-control gate for max_concurrent_tasks: reject rather
	// than block the caller.
	if !c.sem.TryAcquire(1) {
		return "", types.NewError(types.ErrCoordinatorSaturated,
			fmt.Sprintf("active task limit reached (%d)", c.cfg.MaxConcurrentTasks)).
			WithRetryable(true)
	}

	prev, _ := c.registry.Status(task.AgentID)
	if err := c.registry.MarkBusy(task.AgentID, task.ID); err != nil {
		c.sem.Release(1)
		return "", err
	}
	c.collector.RecordAgentTransition(task.AgentID, string(prev), string(types.AgentBusy))

	task.Status = types.TaskRunning
	execCtx, cancel := context.WithCancel(baseCtx)
	entry := &activeEntry{
		task:       task,
		admittedAt: time.Now(),
		cancel:     cancel,
	}
	c.active.insert(entry)
	c.collector.RecordAdmission(task.AgentID, string(task.Priority))

	c.logger.Info("task admitted",
		zap.String("task_id", task.ID),
		zap.String("agent_id", task.AgentID),
		zap.String("priority", string(task.Priority)),
		zap.Int("dependencies", len(task.Dependencies)),
	)

	go c.execute(execCtx, entry)
	return task.ID, nil
}

// execute is the asynchronous task flow: wait on dependencies, invoke
// the agent, finalize the outcome. Exactly one of this goroutine, the
// supervisor sweep, or shutdown drain wins the finalization.
func (c *Coordinator) execute(ctx context.Context, entry *activeEntry) {
	task := entry.task

	depStart := time.Now()
	if err := c.resolver.Await(ctx, task); err != nil {
		c.finalize(task.ID, types.TaskFailed, "", err.Error())
		return
	}
	if len(task.Dependencies) > 0 {
		c.collector.RecordDependencyWait(task.AgentID, time.Since(depStart))
	}

	prompt := buildTaskPrompt(task)
	response, err := c.executors[task.AgentID].Process(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			// The supervisor or shutdown already claimed this task;
			// finalize below is a no-op either way.
			c.logger.Debug("execution abandoned", zap.String("task_id", task.ID))
		}
		execErr := types.NewError(types.ErrExecutionFailure, "agent execution failed").
			WithAgent(task.AgentID).WithCause(err)
		c.finalize(task.ID, types.TaskFailed, "", execErr.Error())
		return
	}

	c.finalize(task.ID, types.TaskCompleted, response, "")
}

// expireTask is the supervisor's hook for overdue tasks.
func (c *Coordinator) expireTask(taskID string) {
	c.finalize(taskID, types.TaskTimeout, "", expireError().Error())
}

// finalize applies a terminal outcome exactly once: removes the task
// from the active set, cancels its execution context, updates the
// agent's status, appends to history, folds statistics, and releases
// the admission slot. Later callers for the same task are no-ops.
func (c *Coordinator) finalize(taskID string, status types.TaskStatus, response, errMsg string) {
	entry, ok := c.active.take(taskID)
	if !ok {
		return
	}
	entry.cancel()

	task := entry.task
	task.Status = status
	task.Error = errMsg
	if status == types.TaskCompleted {
		task.Result = &types.TaskResult{Response: response, CompletedAt: time.Now()}
	}

	switch status {
	case types.TaskCompleted, types.TaskTimeout, types.TaskCancelled:
		// Timed-out agents are presumed recoverable.
		c.registry.MarkIdle(task.AgentID)
		c.collector.RecordAgentTransition(task.AgentID, string(types.AgentBusy), string(types.AgentActive))
	case types.TaskFailed:
		c.registry.MarkError(task.AgentID)
		c.collector.RecordAgentTransition(task.AgentID, string(types.AgentBusy), string(types.AgentError))
	}

	elapsed := time.Since(entry.admittedAt)
	c.ledger.Append(task, elapsed)
	c.collector.RecordOutcome(task.AgentID, string(status), elapsed)
	c.sem.Release(1)

	if status == types.TaskCompleted {
		c.logger.Info("task completed",
			zap.String("task_id", task.ID),
			zap.String("agent_id", task.AgentID),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		c.logger.Warn("task finalized unsuccessfully",
			zap.String("task_id", task.ID),
			zap.String("agent_id", task.AgentID),
			zap.String("status", string(status)),
			zap.String("error", errMsg),
		)
	}
}

// buildTaskPrompt renders the prompt handed to the agent execution
// capability.
func buildTaskPrompt(task *types.Task) string {
	return fmt.Sprintf(
		"Task: %s\nPriority: %s\nContext: %s\n\nPlease complete this task according to your role and expertise.",
		task.Description, task.Priority, renderContext(task.Context),
	)
}

// Coordinate dispatches a coordination request to the engine and wraps
// the outcome into a uniform envelope; it never raises to the caller.
func (c *Coordinator) Coordinate(ctx context.Context, req types.CoordinationRequest) types.ResultEnvelope {
	requestID := uuid.New().String()
	start := time.Now()

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		c.collector.RecordCoordination(string(req.Strategy), "rejected", time.Since(start))
		return types.ResultEnvelope{
			Success:   false,
			RequestID: requestID,
			Error:     types.NewError(types.ErrNotRunning, "coordinator is not running").Error(),
		}
	}

	result, err := c.engine.Coordinate(ctx, req)
	if err != nil {
		c.logger.Error("coordination failed",
			zap.String("request_id", requestID),
			zap.String("strategy", string(req.Strategy)),
			zap.Error(err),
		)
		c.collector.RecordCoordination(string(req.Strategy), "failed", time.Since(start))
		return types.ResultEnvelope{Success: false, RequestID: requestID, Error: err.Error()}
	}

	c.collector.RecordCoordination(string(req.Strategy), "ok", time.Since(start))
	return types.ResultEnvelope{Success: true, RequestID: requestID, Result: result}
}

// AgentStatus returns one agent's descriptor enriched with its rolling
// utilization stats.
func (c *Coordinator) AgentStatus(agentID string) (types.AgentInfo, error) {
	info, ok := c.registry.Get(agentID)
	if !ok {
		return types.AgentInfo{}, types.NewError(types.ErrAgentUnavailable, "agent not found: "+agentID)
	}
	if stats, ok := c.ledger.Stats().AgentUtilization[agentID]; ok {
		info.PerformanceMetrics["tasks_completed"] = stats.TasksCompleted
		info.PerformanceMetrics["avg_completion_time"] = stats.AvgCompletionTime.String()
		info.PerformanceMetrics["success_rate"] = stats.SuccessRate
	}
	return info, nil
}

// StatusReport is the projection returned by AllAgentStatuses.
type StatusReport struct {
	Agents       map[string]types.AgentInfo `json:"agents"`
	TotalAgents  int                        `json:"total_agents"`
	ActiveAgents int                        `json:"active_agents"`
	BusyAgents   int                        `json:"busy_agents"`
	Stats        types.Stats                `json:"stats"`
}

// AllAgentStatuses returns every agent's descriptor plus aggregate
// statistics.
func (c *Coordinator) AllAgentStatuses() StatusReport {
	agents := c.registry.Snapshot()
	return StatusReport{
		Agents:       agents,
		TotalAgents:  len(agents),
		ActiveAgents: c.registry.CountByStatus(types.AgentActive),
		BusyAgents:   c.registry.CountByStatus(types.AgentBusy),
		Stats:        c.ledger.Stats(),
	}
}

// History returns up to limit most recent finalized tasks.
func (c *Coordinator) History(limit int) []*types.Task {
	return c.ledger.History(limit)
}

// Stats returns the aggregate statistics.
func (c *Coordinator) Stats() types.Stats {
	return c.ledger.Stats()
}

// SystemHealth probes every agent's health capability and the memory
// store, and classifies overall status: critical when more than half of
// the agents are unresponsive, degraded when any is.
func (c *Coordinator) SystemHealth(ctx context.Context) types.SystemHealth {
	health := types.SystemHealth{
		Status:      types.SystemHealthy,
		Agents:      make(map[string]types.AgentHealth, len(c.executors)),
		ActiveTasks: c.active.len(),
		TotalAgents: len(c.executors),
		Stats:       c.ledger.Stats(),
		Timestamp:   time.Now(),
	}

	unresponsive := 0
	for id, exec := range c.executors {
		status, _ := c.registry.Status(id)
		entry := types.AgentHealth{Status: status, Responsive: true}

		if hr, ok := exec.(types.HealthReporter); ok {
			report, err := hr.Health(ctx)
			if err != nil {
				entry.Responsive = false
				entry.Error = err.Error()
				unresponsive++
			} else {
				entry.Health = &report
				if !report.Healthy {
					entry.Responsive = false
					unresponsive++
				}
			}
		}
		health.Agents[id] = entry
	}

	switch {
	case len(c.executors) > 0 && unresponsive*2 > len(c.executors):
		health.Status = types.SystemCritical
	case unresponsive > 0:
		health.Status = types.SystemDegraded
	}

	if c.store == nil {
		health.MemoryStore = "not_configured"
	} else if err := c.store.Ping(ctx); err != nil {
		health.MemoryStore = "unhealthy: " + err.Error()
		if health.Status == types.SystemHealthy {
			health.Status = types.SystemDegraded
		}
	} else {
		health.MemoryStore = "healthy"
	}

	return health
}

// Registry exposes administrative agent operations (activate,
// deactivate, maintenance).
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// healthMonitor periodically evaluates system health and logs
// degradation.
func (c *Coordinator) healthMonitor(ctx context.Context) {
	defer c.monitorWG.Done()

	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			health := c.SystemHealth(ctx)
			if health.Status != types.SystemHealthy {
				c.logger.Warn("system health degraded",
					zap.String("status", string(health.Status)),
					zap.Int("active_tasks", health.ActiveTasks),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// performanceMonitor periodically logs the aggregate statistics and
// refreshes each agent's utilization metrics in its registry
// descriptor.
func (c *Coordinator) performanceMonitor(ctx context.Context) {
	defer c.monitorWG.Done()

	ticker := time.NewTicker(c.cfg.PerformanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := c.ledger.Stats()
			c.logger.Info("coordination statistics",
				zap.Int("total_tasks", stats.TotalTasks),
				zap.Int("completed_tasks", stats.CompletedTasks),
				zap.Int("failed_tasks", stats.FailedTasks),
				zap.Duration("avg_completion_time", stats.AvgCompletionTime),
			)
			for _, id := range c.registry.IDs() {
				if s, ok := stats.AgentUtilization[id]; ok {
					c.registry.SetMetric(id, "tasks_completed", s.TasksCompleted)
					c.registry.SetMetric(id, "avg_completion_time", s.AvgCompletionTime.String())
					c.registry.SetMetric(id, "success_rate", s.SuccessRate)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// saveSnapshot writes a best-effort coordinator state snapshot to the
// memory store.
func (c *Coordinator) saveSnapshot(ctx context.Context) {
	if c.store == nil {
		return
	}

	snapshot := map[string]any{
		"stats":         c.ledger.Stats(),
		"agents":        c.registry.Snapshot(),
		"history_count": c.ledger.Len(),
		"shutdown_time": time.Now().Format(time.RFC3339),
	}
	// The snapshot is best-effort; serialization problems must not
	// block shutdown.
	if _, err := json.Marshal(snapshot); err != nil {
		c.logger.Error("snapshot not serializable", zap.Error(err))
		return
	}
	if err := c.store.Save(ctx, snapshotAgentID, "state_snapshot", snapshot, 1.0); err != nil {
		c.logger.Error("failed to save coordinator state", zap.Error(err))
	}
}
