// Package app wires the storage core together from configuration and
// manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"driftfs/internal/config"
	"driftfs/internal/contentstore"
	"driftfs/internal/database"
	"driftfs/internal/database/migrations"
	"driftfs/internal/drift"
	"driftfs/internal/extract"
	"driftfs/internal/metrics"
	"driftfs/internal/thumbnail"
)

// sessionPurgeInterval is how often expired sessions are swept.
const sessionPurgeInterval = 10 * time.Minute

// App owns every component of the storage core. Construct with New, bring
// the runtime parts up with Start, and always call Close.
type App struct {
	cfg      *config.Config
	logger   drift.Logger
	logFile  *os.File
	meta     drift.MetadataStore
	content  *contentstore.Store
	metrics  *metrics.Collector
	fs       *drift.Filesystem
	indexer  *drift.Indexer
	sessions *drift.SessionManager

	purgeCancel context.CancelFunc
}

// New constructs all components and migrates the database schema. The
// content store is not initialized until Start.
func New(cfg *config.Config) (*App, error) {
	slogger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	meta, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating metadata store: %w", err)
	}

	sqlStore, ok := meta.(*database.SQLiteStore)
	if !ok {
		meta.Close()
		logFile.Close()
		return nil, fmt.Errorf("metadata store does not expose a sql.DB for migrations")
	}
	if err := migrations.MigrateUp(sqlStore.DB()); err != nil {
		if errors.Is(err, migrations.ErrVersionAhead) {
			// A newer binary wrote this schema. Reads stay compatible;
			// warn and continue rather than block the older binary.
			logger.Warn("database schema is ahead of binary, continuing without migrating", "error", err)
		} else {
			meta.Close()
			logFile.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	collector := metrics.NewCollector()
	content := contentstore.New(cfg.Content, logger, collector)

	extractor := extract.New()
	thumbs := thumbnail.New(cfg.Thumbnails, extractor, logger)

	fs := drift.NewFilesystem(meta, content, thumbs, logger, drift.RealClock{})
	indexer := drift.NewIndexer(meta, fs, extractor, logger, collector,
		time.Duration(cfg.Indexer.IntervalSeconds)*time.Second, cfg.Indexer.BatchSize)
	sessions := drift.NewSessionManager(meta, logger, drift.RealClock{}, drift.UUIDGenerator{})

	return &App{
		cfg:      cfg,
		logger:   logger,
		logFile:  logFile,
		meta:     meta,
		content:  content,
		metrics:  collector,
		fs:       fs,
		indexer:  indexer,
		sessions: sessions,
	}, nil
}

// Start initializes the content store and launches the background workers.
func (a *App) Start(ctx context.Context) error {
	if err := a.content.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing content store: %w", err)
	}

	a.indexer.Start(ctx)

	purgeCtx, cancel := context.WithCancel(context.Background())
	a.purgeCancel = cancel
	go a.sessions.PurgeLoop(purgeCtx, sessionPurgeInterval)

	if a.cfg.Metrics.Enabled {
		a.metrics.Serve(a.cfg.Metrics.Addr)
	}

	a.recordNodeSettings()

	a.logger.Info("driftfs started", "mode", a.cfg.Content.Mode)
	return nil
}

// recordNodeSettings snapshots the node's identity into the settings table
// so tooling can read it without the p2p stack. Best-effort.
func (a *App) recordNodeSettings() {
	info := a.content.NodeInfo()
	settings := map[string]string{
		"node.mode": string(info.Mode),
		"node.repo": info.RepoPath,
	}
	if info.ID != "" {
		settings["node.id"] = info.ID
	}
	for k, v := range settings {
		if err := a.meta.SetSetting(k, v); err != nil {
			a.logger.Warn("recording node setting failed", "key", k, "error", err)
			return
		}
	}
}

// Filesystem returns the path-semantics service.
func (a *App) Filesystem() *drift.Filesystem { return a.fs }

// Content returns the content-addressed store.
func (a *App) Content() *contentstore.Store { return a.content }

// Metadata returns the metadata store.
func (a *App) Metadata() drift.MetadataStore { return a.meta }

// Sessions returns the session manager.
func (a *App) Sessions() *drift.SessionManager { return a.sessions }

// Indexer returns the background indexing worker.
func (a *App) Indexer() *drift.Indexer { return a.indexer }

// Close stops workers and releases all resources. Safe to call after a
// failed Start.
func (a *App) Close() error {
	var firstErr error

	if a.purgeCancel != nil {
		a.purgeCancel()
	}
	a.indexer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.metrics.Stop(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stopping metrics server: %w", err)
	}
	if err := a.content.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutting down content store: %w", err)
	}
	if err := a.meta.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing metadata store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
