// Package repomanager provides a concrete RepositoryManager for SQLite,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/scribekeeper/internal/dbx"
	"github.com/dmitrijs2005/scribekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/scribekeeper/internal/server/repositories/transcripts"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// InMemoryDSN keeps the whole database in process memory.
const InMemoryDSN = ":memory:"

type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Transcripts(db dbx.DBTX) transcripts.Repository {
	return transcripts.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenDatabase opens the SQLite database at dsn. An in-memory database is
// pinned to a single connection so every query sees the same data.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = InMemoryDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if dsn == InMemoryDSN {
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
