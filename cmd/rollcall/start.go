package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/rollcall/internal/api"
	"github.com/mattjoyce/rollcall/internal/app"
	"github.com/mattjoyce/rollcall/internal/config"
	"github.com/mattjoyce/rollcall/internal/lock"
	"github.com/mattjoyce/rollcall/internal/log"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("rollcall starting", "version", version, "config", cfg.SourceFile)

	pidLockPath := lock.PathFor(cfg.Database.Path)
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log.Get(), app.Options{})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()
	logger.Info("roster loaded", "hosts", a.Roster().Len(), "source", a.Roster().Source())

	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	server := api.New(api.Config{
		Listen: cfg.Server.Listen(),
		APIKey: cfg.Server.Auth.APIKey,
	}, a, a.Hub(), log.WithComponent("api"))
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("rollcall running (press Ctrl+C to stop)", "listen", cfg.Server.Listen())

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("rollcall stopped")
	return 0
}

// loadConfig resolves the config path and loads it. With no explicit path
// and no discoverable file, the legacy environment variables alone configure
// the service.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.Discover(explicit)
	if err != nil {
		cfg, envErr := config.FromEnv(os.LookupEnv)
		if envErr != nil {
			return nil, fmt.Errorf("%v; environment fallback: %w", err, envErr)
		}
		fmt.Fprintln(os.Stderr, "No config file found, using environment and defaults")
		return cfg, nil
	}
	return config.Load(path)
}
