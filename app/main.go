package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/fractional-comb/app/api"
	"github.com/lysyi3m/fractional-comb/app/cache"
	"github.com/lysyi3m/fractional-comb/app/cfg"
	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/export"
	"github.com/lysyi3m/fractional-comb/app/lifecycle"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
	"github.com/lysyi3m/fractional-comb/app/source"
	"github.com/lysyi3m/fractional-comb/app/tasks"
)

// application holds the components shared by every command.
type application struct {
	cfg          *cfg.Cfg
	db           *database.DB
	store        cache.CacheInterface
	configCache  *source.ConfigCache
	listingRepo  *database.ListingRepository
	snapshotRepo *database.SnapshotRepository
	runRepo      *database.RunRepository
	canonCache   *cache.CanonicalCache
	pipeline     *tasks.Pipeline
}

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	slog.Info("Starting Fractional Comb", "version", appCfg.Version, "command", appCfg.Command)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.close()

	switch appCfg.Command {
	case cfg.CommandRun:
		err = app.runSources(ctx)
	case cfg.CommandSnapshot:
		err = app.runSnapshot(ctx)
	case cfg.CommandExport:
		err = app.runExport(ctx)
	default:
		err = app.serve(ctx)
	}

	if err != nil {
		slog.Error("Command failed", "command", appCfg.Command, "error", err)
		app.close()
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newApplication(ctx context.Context, appCfg *cfg.Cfg) (*application, error) {
	if err := os.MkdirAll(appCfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	slog.Info("Connecting to database", "driver", appCfg.DBDriver)
	db, err := database.Open(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Database ready", "driver", db.Driver(), "schema_version", version, "dirty", dirty)

	patterns, err := loadPatterns(appCfg.PatternsFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	canonicalizer, err := listing.NewCanonicalizer(patterns)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build canonicalizer: %w", err)
	}

	var store cache.CacheInterface
	if appCfg.RedisURL != "" {
		redisCache, err := cache.NewCache(ctx, appCfg.RedisURL)
		if err != nil {
			slog.Warn("Redis unavailable, canonical cache disabled", "error", err)
		} else {
			store = redisCache
		}
	}

	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	listingRepo := database.NewListingRepository(db)
	snapshotRepo := database.NewSnapshotRepository(db)
	runRepo := database.NewRunRepository(db)

	canonCache := cache.NewCanonicalCache(store, canonicalizer, patterns.Fingerprint(), cache.DefaultCanonicalTTL)

	pipeline := &tasks.Pipeline{
		ConfigCache: configCache,
		SourceDeps: source.Deps{
			Client:    &http.Client{Timeout: 60 * time.Second},
			UserAgent: appCfg.UserAgent,
		},
		Canonicalizer: canonCache,
		Engine:        lifecycle.NewEngine(listingRepo, appCfg.GraceThreshold),
		ListingRepo:   listingRepo,
		SnapshotRepo:  snapshotRepo,
		RunRepo:       runRepo,
		Aggregator:    snapshot.NewAggregator(appCfg.MinSampleSize),
		LockDir:       appCfg.LockDir(),
	}

	return &application{
		cfg:          appCfg,
		db:           db,
		store:        store,
		configCache:  configCache,
		listingRepo:  listingRepo,
		snapshotRepo: snapshotRepo,
		runRepo:      runRepo,
		canonCache:   canonCache,
		pipeline:     pipeline,
	}, nil
}

func loadPatterns(path string) (listing.Patterns, error) {
	if path == "" {
		return listing.DefaultPatterns()
	}
	slog.Info("Loading classification patterns", "file", path)
	return listing.LoadPatterns(path)
}

func (a *application) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
		a.store = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
		a.db = nil
	}
}

func (a *application) runSources(ctx context.Context) error {
	runner := tasks.NewRunner(a.pipeline, a.cfg.WorkerCount)

	results, err := runner.RunSources(ctx, a.cfg.Sources)
	for _, r := range results {
		slog.Info("Source run summary",
			"source", r.Source,
			"found", r.Found,
			"duplicates", r.Duplicates,
			"new", r.New,
			"updated", r.Updated,
			"unchanged", r.Unchanged,
			"reactivated", r.Reactivated,
			"absent", r.Absent,
			"deactivated", r.Deactivated,
			"stale", r.Stale)
	}

	if a.store != nil {
		hits, misses := a.canonCache.Stats()
		slog.Info("Canonical cache usage", "hits", hits, "misses", misses)
	}
	return err
}

func (a *application) runSnapshot(ctx context.Context) error {
	date := time.Now()
	if a.cfg.SnapshotDate != "" {
		parsed, err := time.Parse("2006-01-02", a.cfg.SnapshotDate)
		if err != nil {
			return fmt.Errorf("invalid snapshot date: %w", err)
		}
		date = parsed
	}

	inserted, err := tasks.NewRunner(a.pipeline, 1).Snapshot(ctx, date)
	if err != nil {
		return err
	}
	slog.Info("Snapshot written", "date", snapshot.Day(date).Format("2006-01-02"), "cohorts_inserted", inserted)
	return nil
}

func (a *application) runExport(ctx context.Context) error {
	var date time.Time
	if a.cfg.ExportDate != "" {
		parsed, err := time.Parse("2006-01-02", a.cfg.ExportDate)
		if err != nil {
			return fmt.Errorf("invalid export date: %w", err)
		}
		date = parsed
	}

	paths, err := export.NewExporter(a.listingRepo, a.snapshotRepo, a.cfg.ExportDir).Run(ctx, date)
	if err != nil {
		return err
	}
	for _, p := range paths {
		slog.Info("Export written", "file", p)
	}
	return nil
}

func (a *application) serve(ctx context.Context) error {
	scheduler, err := tasks.NewScheduler(a.pipeline, a.cfg.Schedule, a.cfg.WorkerCount)
	if err != nil {
		return err
	}

	slog.Info("Starting background scheduler", "workers", a.cfg.WorkerCount, "schedule", a.cfg.Schedule)
	scheduler.Start()
	defer func() {
		scheduler.Stop()
		slog.Info("Background scheduler stopped")
	}()

	handler := api.NewHandler(a.configCache, a.listingRepo, a.snapshotRepo, a.runRepo, scheduler, a.store)
	server := api.NewServer(handler, a.cfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
		slog.Error("Server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
