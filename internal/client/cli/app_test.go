package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/scribekeeper/internal/client/config"
	"github.com/dmitrijs2005/scribekeeper/internal/client/repositories/backups"
	"github.com/dmitrijs2005/scribekeeper/internal/client/storage"
)

func testConfig(t *testing.T, store string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.StoreBackend = store
	return cfg
}

func TestNewApp_OpensEachStore(t *testing.T) {
	tests := []struct {
		store string
		want  any
	}{
		{config.StoreMemory, &backups.InMemoryRepository{}},
		{config.StoreBadger, &backups.BadgerRepository{}},
		{config.StoreSQLite, &backups.SQLiteRepository{}},
	}
	for _, tc := range tests {
		t.Run(tc.store, func(t *testing.T) {
			app, err := NewApp(context.Background(), testConfig(t, tc.store), nil)
			require.NoError(t, err)
			assert.IsType(t, tc.want, app.repo)
			require.NoError(t, app.Close())
			require.NoError(t, app.Close())
		})
	}
}

func TestApp_Uploader(t *testing.T) {
	ctx := context.Background()

	t.Run("presigned asks for a token", func(t *testing.T) {
		app, err := NewApp(ctx, testConfig(t, config.StoreMemory), nil)
		require.NoError(t, err)

		called := false
		up, err := app.Uploader(ctx, func() (string, error) { called = true; return "tok", nil })
		require.NoError(t, err)
		assert.True(t, called)
		assert.IsType(t, &storage.PresignedUploader{}, up)

		_, err = app.Uploader(ctx, func() (string, error) { return "", errors.New("no tty") })
		require.Error(t, err)
	})

	t.Run("s3 uses static credentials", func(t *testing.T) {
		cfg := testConfig(t, config.StoreMemory)
		cfg.Uploader = config.UploaderS3
		cfg.S3Bucket = "media"
		cfg.S3BaseEndpoint = "http://127.0.0.1:9000"
		cfg.S3AccessKey = "minio"
		cfg.S3SecretKey = "minio123"
		app, err := NewApp(ctx, cfg, nil)
		require.NoError(t, err)

		up, err := app.Uploader(ctx, func() (string, error) {
			t.Fatal("token must not be requested")
			return "", nil
		})
		require.NoError(t, err)
		assert.IsType(t, &storage.S3Uploader{}, up)
	})
}

func TestApp_TranscriptsRejectsBadFieldSpec(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.EncryptedFields = []string{"notes:rot13"}
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = app.Transcripts()
	require.Error(t, err)
}
