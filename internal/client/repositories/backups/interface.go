package backups

import "context"

// Repository is a keyed store of opaque backup records.
type Repository interface {
	// Put stores record under key, replacing any previous record.
	Put(ctx context.Context, key string, record []byte) error

	// Get returns the record stored under key, or common.ErrorNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the record under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetAll returns every stored record keyed by its key.
	GetAll(ctx context.Context) (map[string][]byte, error)
}

// BatchDeleter is implemented by repositories that can remove several
// records in one atomic operation.
type BatchDeleter interface {
	DeleteMany(ctx context.Context, keys []string) error
}
