// coordflow serve  — start the coordinator with the configured agent pool
// coordflow health — validate configuration and probe the memory store
// coordflow version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/coordflow/config"
	"github.com/BaSui01/coordflow/memory"
)

// Build metadata, injected at link time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		fmt.Printf("coordflow %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: coordflow <command> [flags]

commands:
  serve     start the coordinator
  health    validate configuration and probe the memory store
  version   print version information

flags:
  --config <path>   configuration file (YAML)`)
}

func loadConfig(args []string) *config.Config {
	fs := flag.NewFlagSet("coordflow", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runServe(args []string) {
	cfg := loadConfig(args)
	logger := buildLogger(cfg.Log)
	defer logger.Sync()

	srv := NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Coordinator.ShutdownGrace+10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}

func runHealth(args []string) {
	cfg := loadConfig(args)
	fmt.Println("configuration: ok")

	if cfg.Memory.Backend == "redis" {
		store, err := memory.NewRedisStore(cfg.Memory.Redis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "memory store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "memory store: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("memory store: ok")
}

// buildLogger constructs the zap logger described by the log config.
func buildLogger(cfg config.LogConfig) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
