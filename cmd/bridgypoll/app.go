package main

import (
	"context"
	"fmt"
	"time"

	"bridgypoll/pkg/alarms"
	"bridgypoll/pkg/auth"
	"bridgypoll/pkg/bridgy"
	"bridgypoll/pkg/config"
	"bridgypoll/pkg/logger"
	"bridgypoll/pkg/metrics"
	"bridgypoll/pkg/scheduler"
	"bridgypoll/pkg/silo"
	"bridgypoll/pkg/store"
)

// app wires the components every command shares
type app struct {
	cfg       *config.Config
	log       logger.Logger
	stores    *store.Stores
	bridgy    *bridgy.Client
	catalog   *silo.Catalog
	registry  *alarms.Manager
	metrics   *metrics.Recorder
	scheduler *scheduler.Scheduler
	started   time.Time
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	stores, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := bridgy.NewClient(cfg, log)
	catalog, err := silo.NewCatalog(cfg, silo.Sources(stores, client, log))
	if err != nil {
		stores.Close()
		return nil, err
	}

	registry := alarms.NewManager(stores.Local, log)
	rec := metrics.New()

	return &app{
		cfg:       cfg,
		log:       log,
		stores:    stores,
		bridgy:    client,
		catalog:   catalog,
		registry:  registry,
		metrics:   rec,
		scheduler: scheduler.New(registry, catalog, cfg.Poll, log, scheduler.WithObserver(rec)),
		started:   time.Now(),
	}, nil
}

// credentials builds the token manager; it touches the system keyring so
// only commands that need the token create it
func (a *app) credentials() (*auth.Manager, error) {
	return auth.NewManager(a.stores.Sync, a.log)
}

func (a *app) Close() error {
	return a.stores.Close()
}
