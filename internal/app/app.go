package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"contextdb/internal/retention"
	"contextdb/pkg/config"
	"contextdb/pkg/logger"
	"contextdb/pkg/state"
	"contextdb/pkg/store"
	"contextdb/pkg/store/filestore"
	"contextdb/pkg/store/pebblestore"
	"contextdb/pkg/store/pgstore"
	"contextdb/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	st   store.Store
	pool *pgxpool.Pool
	srv  *http.Server
}

// New initializes resources that do not require a running server: config
// validation, record validation rules, data dirs and the selected store
// backend. Call Run to start the HTTP server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	cfg := eff.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validation.SetRules(validation.Rules{
		RequireSender: cfg.Validation.RequireSender,
		MaxTextLen:    cfg.Validation.MaxTextLen,
		MaxSenderLen:  cfg.Validation.MaxSenderLen,
		SenderEnum:    append([]string{}, cfg.Validation.Senders...),
	})

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) openStore() error {
	cfg := a.eff.Config
	switch cfg.Storage.Backend {
	case "file":
		if err := state.EnsureDataDirs(cfg.Storage.DataRoot); err != nil {
			return fmt.Errorf("data root unusable: %w", err)
		}
		st, err := filestore.New(cfg.Storage.DataRoot)
		if err != nil {
			return err
		}
		a.st = st
	case "pebble":
		st, err := pebblestore.Open(cfg.Storage.PebblePath)
		if err != nil {
			return err
		}
		a.st = st
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Storage.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		st, err := pgstore.New(pool)
		if err != nil {
			pool.Close()
			return err
		}
		if err := st.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			return err
		}
		a.pool = pool
		a.st = st
	default:
		return fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
	return nil
}

// Store exposes the opened store; used by admin triggers and tests.
func (a *App) Store() store.Store { return a.st }

// Run starts the retention scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopRetention, err := retention.Start(ctx, a.st, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
	}
	if a.st != nil {
		if err := a.st.Close(); err != nil {
			logger.Warn("store_close_failed", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	logger.Info("shutdown_complete")
}
