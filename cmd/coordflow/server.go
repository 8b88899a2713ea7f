package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/coordinator"
	"github.com/BaSui01/coordflow/internal/metrics"
	"github.com/BaSui01/coordflow/memory"
	"github.com/BaSui01/coordflow/types"
)

// Server wires the coordinator, memory store and metrics endpoint for
// the serve command.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	coord     *coordinator.Coordinator
	store     memory.Store
	collector *metrics.Collector
	metricsrv *http.Server
}

// NewServer creates a server from resolved configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start builds the memory store, the agent pool and the coordinator,
// then launches the metrics endpoint.
func (s *Server) Start() error {
	var err error
	s.store, err = buildStore(s.cfg.Memory)
	if err != nil {
		return fmt.Errorf("failed to build memory store: %w", err)
	}

	s.collector = metrics.NewCollector("coordflow", s.logger)

	executors, leaderID := buildAgents(s.cfg.Agents, s.logger)
	s.coord = coordinator.New(s.cfg.Coordinator, executors, s.logger,
		coordinator.WithMemoryStore(s.store),
		coordinator.WithMetrics(s.collector),
		coordinator.WithLeader(leaderID),
	)

	if err := s.coord.Start(context.Background()); err != nil {
		return err
	}

	if s.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsrv = &http.Server{
			Addr:         fmt.Sprintf(":%d", s.cfg.Metrics.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			s.logger.Info("metrics server listening", zap.Int("port", s.cfg.Metrics.Port))
			if err := s.metricsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	s.logger.Info("coordflow started",
		zap.Int("agents", len(executors)),
		zap.String("memory_backend", s.cfg.Memory.Backend),
	)
	return nil
}

// Stop shuts down the coordinator, metrics endpoint and memory store.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.coord.Stop(ctx); err != nil {
		return err
	}
	if s.metricsrv != nil {
		if err := s.metricsrv.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	return s.store.Close()
}

func buildStore(cfg config.MemoryConfig) (memory.Store, error) {
	if cfg.Backend == "redis" {
		return memory.NewRedisStore(cfg.Redis)
	}
	return memory.NewInMemoryStore(), nil
}

// buildAgents turns the configured agent roster into executors. The
// binary ships with the loopback executor; production deployments
// replace it by embedding the coordinator with their own
// types.Executor implementations.
func buildAgents(specs []config.AgentSpec, logger *zap.Logger) ([]types.Executor, string) {
	executors := make([]types.Executor, 0, len(specs))
	leaderID := ""
	for _, spec := range specs {
		executors = append(executors, newLoopbackAgent(spec, logger))
		if spec.Leader {
			leaderID = spec.ID
		}
	}
	return executors, leaderID
}

// loopbackAgent is the built-in development executor: it acknowledges
// the prompt instead of calling a real backend.
type loopbackAgent struct {
	spec   config.AgentSpec
	logger *zap.Logger
}

func newLoopbackAgent(spec config.AgentSpec, logger *zap.Logger) *loopbackAgent {
	return &loopbackAgent{
		spec:   spec,
		logger: logger.With(zap.String("component", "loopback_agent"), zap.String("agent_id", spec.ID)),
	}
}

func (a *loopbackAgent) ID() string { return a.spec.ID }

func (a *loopbackAgent) Describe() (string, string, []string) {
	name := a.spec.Name
	if name == "" {
		name = a.spec.ID
	}
	return name, a.spec.Description, a.spec.Capabilities
}

func (a *loopbackAgent) Process(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	a.logger.Debug("processing prompt", zap.Int("prompt_len", len(prompt)))
	return fmt.Sprintf("[%s] acknowledged: %d-byte prompt processed", a.spec.ID, len(prompt)), nil
}

func (a *loopbackAgent) Health(ctx context.Context) (types.HealthReport, error) {
	return types.HealthReport{Healthy: true}, nil
}
