package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/scribekeeper/internal/client/client"
	"github.com/dmitrijs2005/scribekeeper/internal/client/config"
	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/client/repositories/backups"
	"github.com/dmitrijs2005/scribekeeper/internal/client/services"
	"github.com/dmitrijs2005/scribekeeper/internal/client/storage"
	"github.com/dmitrijs2005/scribekeeper/internal/filex"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// App holds the collaborators shared by every command: the backup store,
// the API client and the services built on top of them.
type App struct {
	config *config.Config
	logger logging.Logger
	repo   backups.Repository
	api    *client.HTTPClient

	closers []func() error
}

// NewApp opens the configured backup store and prepares the API client.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	app := &App{
		config: cfg,
		logger: logger,
		api:    client.NewHTTPClient(cfg.ServerEndpointAddr, cfg.RequestTimeout),
	}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		app.repo = backups.NewInMemoryRepository()

	case config.StoreBadger:
		if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		repo, err := backups.OpenBadgerRepository(cfg.BadgerDir())
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		app.repo = repo
		app.closers = append(app.closers, repo.Close)

	default:
		if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
			return nil, err
		}
		db, err := client.InitDatabase(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		app.repo = backups.NewSQLiteRepository(db)
		app.closers = append(app.closers, db.Close)
	}

	return app, nil
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Uploader builds the configured upload target. The presigned uploader
// needs a bearer token, so token is only called for it.
func (a *App) Uploader(ctx context.Context, token func() (string, error)) (services.Uploader, error) {
	if a.config.Uploader == config.UploaderS3 {
		return storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:       a.config.S3Bucket,
			Region:       a.config.S3Region,
			BaseEndpoint: a.config.S3BaseEndpoint,
			AccessKey:    a.config.S3AccessKey,
			SecretKey:    a.config.S3SecretKey,
		})
	}
	t, err := token()
	if err != nil {
		return nil, err
	}
	return storage.NewPresignedUploader(a.api, t, nil), nil
}

// Recovery returns a recovery service using uploader for handoffs. A nil
// uploader is allowed for commands that never upload.
func (a *App) Recovery(uploader services.Uploader) *services.RecoveryService {
	return services.NewRecoveryService(a.repo, uploader, a.config.DataDir, a.logger)
}

// Transcripts returns the transcript service encrypting the configured fields.
func (a *App) Transcripts() (*services.TranscriptService, error) {
	fields, err := models.ParseFieldSpecs(a.config.EncryptedFields)
	if err != nil {
		return nil, fmt.Errorf("encrypted fields: %w", err)
	}
	gateway := services.NewEncryptionGateway(a.api, a.logger)
	return services.NewTranscriptService(a.api, gateway, fields, a.logger), nil
}
