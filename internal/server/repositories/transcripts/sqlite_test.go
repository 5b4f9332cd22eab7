package transcripts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/dbx"
	"github.com/dmitrijs2005/scribekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"

	_ "modernc.org/sqlite"
)

func newSQLiteRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return NewSQLiteRepository(db), db
}

func newRepoWithMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db), mock
}

func TestSQLiteRepository_CreateGetList(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepo(t)
	base := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.Transcript{
		ID: "t2", UserID: "alice", Document: map[string]any{"transcript": "second"}, CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, repo.Create(ctx, &models.Transcript{
		ID: "t1", UserID: "alice", Document: map[string]any{"transcript": "first", "n": 3}, Encrypted: true, CreatedAt: base,
	}))
	require.NoError(t, repo.Create(ctx, &models.Transcript{
		ID: "t3", UserID: "bob", Document: map[string]any{}, CreatedAt: base,
	}))

	got, err := repo.Get(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Document["transcript"])
	assert.Equal(t, json.Number("3"), got.Document["n"])
	assert.True(t, got.Encrypted)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "bob", "t1")
	require.ErrorIs(t, err, common.ErrorNotFound, "other users' transcripts are invisible")

	list, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t1", list[0].ID)
	assert.Equal(t, "t2", list[1].ID)

	list, err = repo.ListByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepo(t)

	tr := &models.Transcript{ID: "t1", UserID: "alice", Document: map[string]any{}, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, tr))
	require.Error(t, repo.Create(ctx, tr))
}

func TestSQLiteRepository_CreateInsideTransaction(t *testing.T) {
	ctx := context.Background()
	_, db := newSQLiteRepo(t)

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewSQLiteRepository(tx)
		require.NoError(t, repo.Create(ctx, &models.Transcript{ID: "t1", UserID: "u", CreatedAt: time.Now()}))
		return errors.New("rollback")
	})
	require.Error(t, err)

	_, err = NewSQLiteRepository(db).Get(ctx, "u", "t1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteRepository_DBErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transcripts`)).
			WillReturnError(errors.New("disk full"))

		err := repo.Create(ctx, &models.Transcript{ID: "t1", UserID: "u", CreatedAt: time.Now()})
		require.ErrorContains(t, err, "disk full")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(`SELECT id, user_id, document, encrypted, created_at FROM transcripts`).
			WithArgs("t1", "u").
			WillReturnError(errors.New("locked"))

		_, err := repo.Get(ctx, "u", "t1")
		require.ErrorContains(t, err, "locked")
		require.NotErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("corrupt document", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows([]string{"id", "user_id", "document", "encrypted", "created_at"}).
			AddRow("t1", "u", []byte("{not json"), false, int64(0))
		mock.ExpectQuery(`SELECT .* FROM transcripts`).WithArgs("u").WillReturnRows(rows)

		_, err := repo.ListByUser(ctx, "u")
		require.Error(t, err)
	})

	t.Run("list rows error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		rows := sqlmock.NewRows([]string{"id", "user_id", "document", "encrypted", "created_at"}).
			AddRow("t1", "u", []byte("{}"), false, int64(0)).
			RowError(0, errors.New("io"))
		mock.ExpectQuery(`SELECT .* FROM transcripts`).WithArgs("u").WillReturnRows(rows)

		_, err := repo.ListByUser(ctx, "u")
		require.Error(t, err)
	})
}
