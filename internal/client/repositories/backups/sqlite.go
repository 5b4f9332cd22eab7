package backups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, key string, record []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backups (session_id, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at
	`, key, record, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put backup[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var record []byte
	err := r.db.QueryRowContext(ctx, `SELECT record FROM backups WHERE session_id = ?`, key).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup[%s]: %w", key, err)
	}
	return record, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backups WHERE session_id = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete backup[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT session_id, record FROM backups`)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var record []byte
		if err := rows.Scan(&key, &record); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		result[key] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backup rows: %w", err)
	}

	return result, nil
}

// DeleteMany removes all keys in a single transaction.
func (r *SQLiteRepository) DeleteMany(ctx context.Context, keys []string) error {
	return dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM backups WHERE session_id = ?`, key); err != nil {
				return fmt.Errorf("failed to delete backup[%s]: %w", key, err)
			}
		}
		return nil
	})
}
