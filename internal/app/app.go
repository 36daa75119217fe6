package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"golang.org/x/sync/errgroup"

	"rr-sync/internal/cache"
	"rr-sync/internal/catalog"
	"rr-sync/internal/config"
	"rr-sync/internal/database"
	"rr-sync/internal/network"
	"rr-sync/internal/server"
	"rr-sync/internal/sw"
)

// SyncApp is the application layer between the CLI and the sync worker.
// It constructs all dependencies from config, exposes the commands the CLI
// runs, and releases the store and cache on Close.
type SyncApp struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	storage cache.Storage
	worker  *sw.Worker
	server  *server.Server
	op      *Operation
	logger  *slog.Logger
	logFile *os.File
}

// NewSyncApp creates a fully wired SyncApp from the given config.
// command identifies the CLI command being run (e.g. "serve", "replay").
// The caller must call Close when done.
func NewSyncApp(cfg *config.Config, command string) (*SyncApp, error) {
	return newSyncApp(cfg, command, http.DefaultTransport)
}

// newSyncApp wires the app with transport as the real network.
func newSyncApp(cfg *config.Config, command string, transport http.RoundTripper) (*SyncApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	appOrigin, err := parseOrigin("app_origin", cfg.AppOrigin)
	if err != nil {
		return nil, err
	}
	apiOrigin, err := parseOrigin("api_origin", cfg.APIOrigin)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	op := NewOperation(command, sw.RealClock{}.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	swLogger := &slogAdapter{l: logger}

	store, err := database.NewStoreFromConfig(cfg.Database, sw.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	storage, err := cache.NewStorageFromConfig(cfg.Cache)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating cache storage: %w", err)
	}

	client, err := network.NewClient(apiOrigin.String(), &http.Client{Transport: transport})
	if err != nil {
		storage.Close()
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	engine := sw.NewSyncEngine(store, client, swLogger, sw.RealClock{})
	assets := sw.NewAssetHandler(storage, transport, sw.AssetConfig{
		CacheName: cfg.Cache.Name(),
		Prefix:    cfg.Cache.Prefix,
		Manifest:  cfg.Cache.Manifest,
		Origin:    appOrigin,
	}, swLogger, sw.RealClock{})
	router := sw.NewRouter(sw.RouterConfig{
		AppOrigin: appOrigin,
		APIOrigin: apiOrigin,
		Bypass:    cfg.Bypass,
	}, sw.NewDataHandler(engine, swLogger), assets, transport, swLogger, sw.UUIDGenerator{})
	replayer := sw.NewReplayer(engine, cfg.Replay.Interval, cfg.Replay.Concurrency, swLogger)
	worker := sw.NewWorker(store, storage, engine, assets, replayer, router, swLogger)

	srv, err := server.New(server.Config{
		AppOrigin:   appOrigin,
		APIOrigin:   apiOrigin,
		CORSOrigins: cfg.CORSOrigins,
	}, worker, swLogger)
	if err != nil {
		storage.Close()
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating http front: %w", err)
	}

	logger.Debug("app wired", "command", command, "cache", cfg.Cache.Name())

	return &SyncApp{
		cfg:     cfg,
		store:   store,
		storage: storage,
		worker:  worker,
		server:  srv,
		op:      op,
		logger:  logger,
		logFile: logFile,
	}, nil
}

func parseOrigin(field, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s must be absolute, got %q", field, raw)
	}
	return u, nil
}

// Config returns the config the app was built from.
func (a *SyncApp) Config() *config.Config { return a.cfg }

// Operation returns the command invocation this app serves.
func (a *SyncApp) Operation() *Operation { return a.op }

// Worker returns the wired sync worker.
func (a *SyncApp) Worker() *sw.Worker { return a.worker }

// Handler returns the HTTP front.
func (a *SyncApp) Handler() http.Handler { return a.server.Handler() }

// Restaurants lists restaurants through the sync engine, filtered for display.
// Empty cuisine or neighborhood selects all.
func (a *SyncApp) Restaurants(ctx context.Context, cuisine, neighborhood string, favoritesOnly bool) (catalog.View, error) {
	restaurants, err := a.worker.Engine().FetchRestaurants(ctx)
	if err != nil {
		return catalog.View{}, err
	}
	v := catalog.Select(catalog.NewView(restaurants), cuisine, neighborhood)
	return catalog.OnlyFavorites(v, favoritesOnly), nil
}

// Serve installs and activates the worker, then runs the replayer and the
// HTTP front until ctx is canceled. A failed install keeps the previous cache
// generations and serving continues.
func (a *SyncApp) Serve(ctx context.Context) error {
	if err := a.worker.Start(ctx); err != nil {
		a.logger.Warn("worker not activated, serving with previous caches", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.worker.Replayer().Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return a.server.Run(ctx, a.cfg.Listen)
	})
	return g.Wait()
}

// Close releases the cache storage, the store and the log file.
func (a *SyncApp) Close() error {
	var firstErr error

	if err := a.storage.Close(); err != nil {
		firstErr = fmt.Errorf("closing cache storage: %w", err)
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
