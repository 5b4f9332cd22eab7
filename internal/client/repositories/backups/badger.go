package backups

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
)

const (
	badgerKeyPrefix  = "backup/"
	badgerPartPrefix = "part/"

	// BadgerPartSize is the largest value written for one record part.
	// Records are split so a long recording never hits Badger's value size
	// limit (ValueLogFileSize).
	BadgerPartSize = 4 << 20
)

// badgerHeader is stored under backup/<key>. It names the generation whose
// parts hold the current record. Parts live under part/<generation>/<n> and
// become visible only once the header pointing at them is committed.
type badgerHeader struct {
	Generation string `json:"generation"`
	Parts      int    `json:"parts"`
	Size       int    `json:"size"`
}

// BadgerRepository stores records in an embedded Badger database.
type BadgerRepository struct {
	db *badger.DB
}

// OpenBadgerRepository opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database. Parts left behind by an
// interrupted Put are removed on open.
func OpenBadgerRepository(dir string) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	// Backup records are rewritten wholesale every few seconds; small value
	// log files keep garbage collection cheap.
	opts.ValueLogFileSize = 64 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	r := &BadgerRepository{db: db}
	if err := r.sweepOrphanParts(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return r, nil
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}

func partKey(generation string, n int) []byte {
	return fmt.Appendf(nil, "%s%s/%08d", badgerPartPrefix, generation, n)
}

func readHeader(txn *badger.Txn, key string) (*badgerHeader, error) {
	item, err := txn.Get(badgerKey(key))
	if err != nil {
		return nil, err
	}
	return decodeHeader(item)
}

func decodeHeader(item *badger.Item) (*badgerHeader, error) {
	var h badgerHeader
	err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &h)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: header %s: %v", common.ErrCorruptedRecord, item.Key(), err)
	}
	return &h, nil
}

func readParts(txn *badger.Txn, h *badgerHeader) ([]byte, error) {
	record := make([]byte, 0, h.Size)
	for n := 0; n < h.Parts; n++ {
		item, err := txn.Get(partKey(h.Generation, n))
		if err != nil {
			return nil, fmt.Errorf("%w: part %d of %s: %v", common.ErrCorruptedRecord, n, h.Generation, err)
		}
		err = item.Value(func(v []byte) error {
			record = append(record, v...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(record) != h.Size {
		return nil, fmt.Errorf("%w: %s has %d bytes, header says %d", common.ErrCorruptedRecord, h.Generation, len(record), h.Size)
	}
	return record, nil
}

// deleteParts removes every part of the given generations.
func (r *BadgerRepository) deleteParts(headers ...*badgerHeader) error {
	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, h := range headers {
		if h == nil {
			continue
		}
		for n := 0; n < h.Parts; n++ {
			if err := wb.Delete(partKey(h.Generation, n)); err != nil {
				return err
			}
		}
	}
	return wb.Flush()
}

func (r *BadgerRepository) Put(ctx context.Context, key string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h := &badgerHeader{Generation: uuid.NewString(), Size: len(record)}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for off := 0; off < len(record); off += BadgerPartSize {
		end := min(off+BadgerPartSize, len(record))
		if err := wb.Set(partKey(h.Generation, h.Parts), record[off:end]); err != nil {
			return fmt.Errorf("failed to put backup[%s]: %w", key, err)
		}
		h.Parts++
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to put backup[%s]: %d bytes in %d parts: %w", key, len(record), h.Parts, err)
	}

	header, err := json.Marshal(h)
	if err != nil {
		return err
	}

	var old *badgerHeader
	err = r.db.Update(func(txn *badger.Txn) error {
		prev, err := readHeader(txn, key)
		switch {
		case err == nil:
			old = prev
		case !errors.Is(err, badger.ErrKeyNotFound) && !errors.Is(err, common.ErrCorruptedRecord):
			return err
		}
		return txn.Set(badgerKey(key), header)
	})
	if err != nil {
		_ = r.deleteParts(h)
		return fmt.Errorf("failed to put backup[%s]: %w", key, err)
	}

	// A failure here only leaves unreferenced parts, swept on next open.
	_ = r.deleteParts(old)
	return nil
}

func (r *BadgerRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record []byte
	err := r.db.View(func(txn *badger.Txn) error {
		h, err := readHeader(txn, key)
		if err != nil {
			return err
		}
		record, err = readParts(txn, h)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup[%s]: %w", key, err)
	}
	return record, nil
}

func (r *BadgerRepository) Delete(ctx context.Context, key string) error {
	return r.DeleteMany(ctx, []string{key})
}

func (r *BadgerRepository) GetAll(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(map[string][]byte)
	prefix := []byte(badgerKeyPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			h, err := decodeHeader(item)
			if err != nil {
				return err
			}
			record, err := readParts(txn, h)
			if err != nil {
				return err
			}
			result[string(item.Key()[len(prefix):])] = record
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return result, nil
}

// DeleteMany removes the headers of keys in one transaction, then their
// parts.
func (r *BadgerRepository) DeleteMany(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var removed []*badgerHeader
	err := r.db.Update(func(txn *badger.Txn) error {
		removed = removed[:0]
		for _, key := range keys {
			h, err := readHeader(txn, key)
			switch {
			case err == nil:
				removed = append(removed, h)
			case errors.Is(err, badger.ErrKeyNotFound):
				continue
			case !errors.Is(err, common.ErrCorruptedRecord):
				return err
			}
			if err := txn.Delete(badgerKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d backups: %w", len(keys), err)
	}
	_ = r.deleteParts(removed...)
	return nil
}

// sweepOrphanParts deletes parts no header refers to.
func (r *BadgerRepository) sweepOrphanParts() error {
	live := make(map[string]struct{})
	var orphans [][]byte

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		headers := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(badgerKeyPrefix)
		for headers.Seek(prefix); headers.ValidForPrefix(prefix); headers.Next() {
			if h, err := decodeHeader(headers.Item()); err == nil {
				live[h.Generation] = struct{}{}
			}
		}
		headers.Close()

		parts := txn.NewIterator(opts)
		defer parts.Close()
		prefix = []byte(badgerPartPrefix)
		for parts.Seek(prefix); parts.ValidForPrefix(prefix); parts.Next() {
			k := parts.Item().KeyCopy(nil)
			gen, _, _ := bytes.Cut(k[len(prefix):], []byte("/"))
			if _, ok := live[string(gen)]; !ok {
				orphans = append(orphans, k)
			}
		}
		return nil
	})
	if err != nil || len(orphans) == 0 {
		return err
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range orphans {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Close flushes and closes the underlying database.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}
