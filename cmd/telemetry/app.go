package main

import (
	"fmt"
	"log/slog"

	"github.com/vjranagit/telemetry/internal/catalog"
	"github.com/vjranagit/telemetry/internal/config"
	"github.com/vjranagit/telemetry/pkg/definition"
	"github.com/vjranagit/telemetry/pkg/function"
	"github.com/vjranagit/telemetry/pkg/logging"
	"github.com/vjranagit/telemetry/pkg/reducer"
	"github.com/vjranagit/telemetry/pkg/storage"
)

// app is everything a command needs, built from one configuration
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Storage
	functions *function.Registry
	reducers  *reducer.Registry
	resolver  *definition.MemoryResolver
}

// newApp loads configuration and wires the registries. Commands that only
// read registry metadata pass scratch to run on an empty in-memory store.
func newApp(scratch bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if scratch {
		cfg.Storage.Backend = storage.BackendBadger
		cfg.Storage.InMemory = true
	}

	a := &app{
		cfg: cfg,
		logger: logging.New(logging.Config{
			Level:   cfg.LogLevel(),
			JSON:    cfg.Logging.JSON,
			Service: "telemetry",
		}),
		resolver: definition.NewMemoryResolver(),
	}

	if a.store, err = storage.NewStorage(cfg.ToStorageConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if a.functions, err = function.Builtin(); err != nil {
		a.Close()
		return nil, err
	}
	if a.reducers, err = reducer.Builtin(reducer.Deps{Store: a.store}); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Catalog {
		defs, err := catalog.Builtin()
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := catalog.Register(a.resolver, defs); err != nil {
			a.Close()
			return nil, err
		}
		a.logger.Debug("catalog registered", "definitions", len(defs))
	}
	return a, nil
}

// Close releases storage
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close failed", "error", err)
	}
}
