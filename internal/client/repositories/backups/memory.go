package backups

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
)

// InMemoryRepository keeps records in a map. Records do not survive the
// process, so it only stands in for a durable store in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string][]byte)}
}

func (r *InMemoryRepository) Put(_ context.Context, key string, record []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = bytes.Clone(record)
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return bytes.Clone(record), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

func (r *InMemoryRepository) GetAll(_ context.Context) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.records))
	for k, v := range r.records {
		out[k] = bytes.Clone(v)
	}
	return out, nil
}

func (r *InMemoryRepository) DeleteMany(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.records, key)
	}
	return nil
}
