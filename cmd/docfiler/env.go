package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/docfiler/docfiler/internal/cache"
	"github.com/docfiler/docfiler/internal/config"
	"github.com/docfiler/docfiler/internal/database"
	"github.com/docfiler/docfiler/internal/filesystem"
	"github.com/docfiler/docfiler/internal/graph"
	"github.com/docfiler/docfiler/internal/kvstore"
	"github.com/docfiler/docfiler/internal/metrics"
	"github.com/docfiler/docfiler/internal/services"
)

// env holds everything a command needs to serve lookups.
type env struct {
	settings config.Settings
	metrics  *metrics.Metrics
	manager  *cache.Manager
	lookups  *services.LookupService
	dbCtx    *database.Context
}

func openEnv() (*env, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	e := &env{settings: settings, metrics: metrics.New()}

	store, err := e.openStore()
	if err != nil {
		return nil, err
	}
	store = kvstore.WithQuota(store, settings.Cache.MaxValueBytes)

	var tokens oauth2.TokenSource
	if settings.Token != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: settings.Token, TokenType: "Bearer"})
	} else {
		logger.Warn("DOCFILER_TOKEN is not set, requests to SharePoint will be anonymous")
	}
	client := graph.New(settings.Site.Host, settings.Site.Path, tokens,
		graph.WithLogger(logger),
		graph.WithMetrics(e.metrics),
		graph.WithTimeout(settings.Cache.FetchTimeout),
	)

	remote := services.NewRemoteLists(client, settings.Lists)
	e.manager = cache.New(remote, store,
		cache.WithLogger(logger),
		cache.WithMetrics(e.metrics),
		cache.WithStaleThreshold(settings.Cache.StaleThreshold),
		cache.WithExpansion(settings.Cache.ExpansionDelay, settings.Cache.ExpansionBatch, settings.Cache.ExpansionPause),
	)
	e.lookups = services.NewLookupService(e.manager, remote,
		services.WithServiceLogger(logger),
		services.WithSessionTTL(settings.Cache.StaleThreshold),
	)
	return e, nil
}

func (e *env) openStore() (kvstore.Store, error) {
	switch e.settings.Store {
	case config.StoreMemory:
		return kvstore.NewMemory(), nil
	case config.StoreFile:
		return filesystem.NewStore(""), nil
	case config.StoreSQLite:
		dbCtx, err := database.CreateDatabase("")
		if err != nil {
			return nil, err
		}
		e.dbCtx = dbCtx
		return database.NewStore(dbCtx), nil
	default:
		return nil, fmt.Errorf("invalid store: %s (valid values: sqlite, file, memory)", e.settings.Store)
	}
}

// storedValues counts the rows of the sqlite store, or returns nil for the
// other backends.
func (e *env) storedValues(ctx context.Context) (*int64, error) {
	if e.dbCtx == nil {
		return nil, nil
	}
	n, err := database.NewKVRepository(e.dbCtx).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored values: %w", err)
	}
	return &n, nil
}

func (e *env) Close() {
	e.manager.Close()
	if e.dbCtx != nil {
		_ = database.CloseDatabase(e.dbCtx)
	}
}
