// Package server wires the ScribeKeeper services together and runs the HTTP
// API until its context is cancelled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server/config"
	"github.com/dmitrijs2005/scribekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/scribekeeper/internal/server/keys"
	"github.com/dmitrijs2005/scribekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/scribekeeper/internal/server/services"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Minute
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	keyring *keys.Keyring
	server  *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	db, err := repomanager.OpenDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLiteRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	keyring, err := keys.NewKeyring(cfg.KeyAlgorithm, cfg.KeyValidityDuration, cfg.KeyGracePeriod)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keyring: %w", err)
	}

	h := httpapi.NewHandler(
		services.NewKeyService(keyring, logger),
		services.NewTranscriptService(db, rm, keyring, logger),
		services.NewRecordingService(cfg, logger),
		logger,
	)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		keyring: keyring,
		server: &http.Server{
			Addr:              cfg.EndpointAddr,
			Handler:           httpapi.NewRouter(h, []byte(cfg.SecretKey), logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (app *App) Handler() http.Handler {
	return app.server.Handler
}

func (app *App) pruneKeys(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.keyring.Prune(); n > 0 {
				app.logger.Debug(ctx, "expired keys pruned", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts the
// server down and closes the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.pruneKeys(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	app.logger.Info(context.Background(), "app stopped")
	return err
}
