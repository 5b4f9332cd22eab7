// Package transcripts stores saved transcript documents.
package transcripts

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/dbx"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, t *models.Transcript) error {
	doc, err := json.Marshal(t.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	query :=
		`INSERT INTO transcripts (id, user_id, document, encrypted, created_at)
		 VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, doc, t.Encrypted, t.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(s scanner) (*models.Transcript, error) {
	var (
		t       models.Transcript
		doc     []byte
		created int64
	)
	if err := s.Scan(&t.ID, &t.UserID, &doc, &t.Encrypted, &created); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&t.Document); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", t.ID, err)
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	return &t, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (*models.Transcript, error) {
	query :=
		`SELECT id, user_id, document, encrypted, created_at FROM transcripts
		 WHERE id = ? AND user_id = ?`

	t, err := scanTranscript(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]*models.Transcript, error) {
	query :=
		`SELECT id, user_id, document, encrypted, created_at FROM transcripts
		 WHERE user_id = ?
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
