package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/scribekeeper/internal/dbx"
	"github.com/dmitrijs2005/scribekeeper/internal/server/repositories/transcripts"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Transcripts(db dbx.DBTX) transcripts.Repository
}
