package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/client/repositories/backups"
	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// DefaultAutoPersistInterval is used when StartAutoPersist gets a
// non-positive interval.
const DefaultAutoPersistInterval = 10 * time.Second

// BackupManager keeps the captured fragments of one recording session in
// memory and writes them to a backups.Repository so the recording can be
// rebuilt after the process dies.
//
// Backup is best-effort: storage failures are logged and remembered
// (see LastError) but never returned, and a nil repository disables
// persistence entirely.
type BackupManager struct {
	repo   backups.Repository
	logger logging.Logger
	now    func() time.Time

	mu              sync.Mutex
	sessionID       string
	fragments       [][]byte
	totalBytes      int64
	mimeType        string
	lastPersistedAt time.Time
	lastErr         error

	// persistMu serializes writes so the last persist started is the last
	// one to land in the store.
	persistMu sync.Mutex

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// NewBackupManager creates a manager for sessionID. An empty sessionID gets
// a fresh UUID.
func NewBackupManager(sessionID string, repo backups.Repository, logger logging.Logger) *BackupManager {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &BackupManager{
		repo:      repo,
		logger:    logger.With("module", "backup", "session", sessionID),
		now:       time.Now,
		sessionID: sessionID,
		mimeType:  common.DefaultMimeType,
	}
}

func (m *BackupManager) SessionID() string {
	return m.sessionID
}

// AddFragment appends a copy of chunk. A non-empty mimeType replaces the
// current one. Empty chunks are ignored.
func (m *BackupManager) AddFragment(chunk []byte, mimeType string) {
	if len(chunk) == 0 {
		return
	}
	c := slices.Clone(chunk)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fragments = append(m.fragments, c)
	m.totalBytes += int64(len(c))
	if mimeType != "" {
		m.mimeType = mimeType
	}
}

func (m *BackupManager) TotalBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes
}

func (m *BackupManager) FragmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fragments)
}

func (m *BackupManager) MimeType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mimeType
}

// Snapshot returns the in-memory recording captured so far, independent of
// what reached the store.
func (m *BackupManager) Snapshot() *models.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.Recording{
		SessionID:   m.sessionID,
		MimeType:    m.mimeType,
		Data:        bytes.Join(m.fragments, nil),
		PersistedAt: m.lastPersistedAt,
	}
}

// LastPersistedAt returns the time of the last successful write, or the
// zero time.
func (m *BackupManager) LastPersistedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPersistedAt
}

// LastError returns the error of the most recent failed persist, cleared by
// the next successful one.
func (m *BackupManager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *BackupManager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// backupWriteError reports a failed Put without the storage error's text,
// which may quote the record itself. The cause stays reachable via errors.Is.
type backupWriteError struct {
	size  int
	cause error
}

func (e *backupWriteError) Error() string {
	return fmt.Sprintf("%v: %d bytes", common.ErrBackupWrite, e.size)
}

func (e *backupWriteError) Unwrap() []error {
	return []error{common.ErrBackupWrite, e.cause}
}

// Persist writes the full current state under the session id, replacing any
// previous record. It is a no-op when there is nothing captured yet.
func (m *BackupManager) Persist(ctx context.Context) {
	if m.repo == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if len(m.fragments) == 0 {
		m.mu.Unlock()
		return
	}
	// Fragments are never mutated after append, so a shallow copy is a
	// consistent snapshot.
	snapshot := slices.Clone(m.fragments)
	mimeType := m.mimeType
	m.mu.Unlock()

	at := m.now()
	data, err := models.NewBackupRecord(m.sessionID, mimeType, snapshot, at).Encode()
	if err != nil {
		m.logger.Error(ctx, "failed to encode backup", "error", err)
		m.setErr(err)
		return
	}

	if err := m.repo.Put(ctx, m.sessionID, data); err != nil {
		werr := &backupWriteError{size: len(data), cause: err}
		m.logger.Warn(ctx, "backup persist failed, backup disabled for this write", "error", werr, "bytes", len(data))
		m.setErr(werr)
		return
	}

	m.mu.Lock()
	m.lastPersistedAt = at
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Debug(ctx, "backup persisted", "fragments", len(snapshot), "bytes", len(data))
}

// StartAutoPersist calls Persist every interval until ctx is done or
// StopAutoPersist is called. Starting while already running is a no-op.
func (m *BackupManager) StartAutoPersist(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoPersistInterval
	}

	m.autoMu.Lock()
	defer m.autoMu.Unlock()

	if m.autoDone != nil {
		select {
		case <-m.autoDone:
			// previous loop ended with its context
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.autoCancel = cancel
	m.autoDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Persist(ctx)
			}
		}
	}()

	m.logger.Debug(ctx, "auto-persist started", "interval", interval)
}

// StopAutoPersist stops the auto-persist loop and waits for it to exit, so
// no write happens after it returns.
func (m *BackupManager) StopAutoPersist() {
	m.autoMu.Lock()
	cancel, done := m.autoCancel, m.autoDone
	m.autoCancel, m.autoDone = nil, nil
	m.autoMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// AutoPersisting reports whether the auto-persist loop is running.
func (m *BackupManager) AutoPersisting() bool {
	m.autoMu.Lock()
	defer m.autoMu.Unlock()
	if m.autoDone == nil {
		return false
	}
	select {
	case <-m.autoDone:
		return false
	default:
		return true
	}
}

// Recover rebuilds the recording stored for sessionID (the manager's own
// session when empty). The boolean is false when there is no usable backup.
func (m *BackupManager) Recover(ctx context.Context, sessionID string) (*models.Recording, bool) {
	if sessionID == "" {
		sessionID = m.sessionID
	}
	return RecoverBackup(ctx, m.repo, m.logger, sessionID)
}

// Clear deletes the durable record for sessionID. For the manager's own
// session (or an empty id) it also stops auto-persist and resets the
// in-memory state.
func (m *BackupManager) Clear(ctx context.Context, sessionID string) {
	own := sessionID == "" || sessionID == m.sessionID
	if own {
		sessionID = m.sessionID
		m.StopAutoPersist()
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if m.repo != nil {
		if err := m.repo.Delete(ctx, sessionID); err != nil {
			m.logger.Warn(ctx, "failed to delete backup", "target", sessionID, "error", err)
			m.setErr(err)
		}
	}

	if own {
		m.mu.Lock()
		m.fragments = nil
		m.totalBytes = 0
		m.mimeType = common.DefaultMimeType
		m.lastPersistedAt = time.Time{}
		m.mu.Unlock()
	}
}

// RecoverBackup reads and verifies the backup of sessionID from repo.
// Missing, unreadable and corrupted records all yield (nil, false).
func RecoverBackup(ctx context.Context, repo backups.Repository, logger logging.Logger, sessionID string) (*models.Recording, bool) {
	if repo == nil {
		return nil, false
	}
	if logger == nil {
		logger = logging.Discard()
	}

	data, err := repo.Get(ctx, sessionID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, false
	}
	if err != nil {
		logger.Warn(ctx, "failed to read backup", "target", sessionID, "error", err)
		return nil, false
	}

	rec, err := models.DecodeBackupRecord(data)
	if err != nil {
		logger.Warn(ctx, "ignoring unusable backup", "target", sessionID, "error", err)
		return nil, false
	}
	if rec.SessionID != sessionID {
		logger.Warn(ctx, "ignoring backup stored under foreign key", "target", sessionID, "record", rec.SessionID)
		return nil, false
	}

	return rec.Recording(), true
}

// ListPendingBackups returns one summary per stored session, oldest first.
// Unreadable records are skipped; a failing store yields an empty list.
func ListPendingBackups(ctx context.Context, repo backups.Repository, logger logging.Logger) []models.BackupSummary {
	if repo == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Discard()
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to list backups", "error", err)
		return nil
	}

	result := make([]models.BackupSummary, 0, len(all))
	for key, data := range all {
		rec, err := models.DecodeBackupRecord(data)
		if err != nil {
			logger.Warn(ctx, "skipping unusable backup", "target", key, "error", err)
			continue
		}
		if rec.SessionID != key {
			logger.Warn(ctx, "skipping backup stored under foreign key", "target", key, "record", rec.SessionID)
			continue
		}
		result = append(result, rec.Summary())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PersistedAt.Equal(result[j].PersistedAt) {
			return result[i].PersistedAt.Before(result[j].PersistedAt)
		}
		return result[i].SessionID < result[j].SessionID
	})
	return result
}

// PruneStaleBackups deletes records persisted more than maxAge ago along with
// records that cannot be decoded. A non-positive maxAge only removes the
// unreadable ones. It returns the number of deleted records.
func PruneStaleBackups(ctx context.Context, repo backups.Repository, logger logging.Logger, maxAge time.Duration) (int, error) {
	if repo == nil {
		return 0, nil
	}
	if logger == nil {
		logger = logging.Discard()
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for key, data := range all {
		rec, err := models.DecodeBackupRecord(data)
		switch {
		case err != nil:
			logger.Info(ctx, "pruning unusable backup", "target", key, "error", err)
			stale = append(stale, key)
		case maxAge > 0 && rec.PersistedAt.Before(cutoff):
			logger.Info(ctx, "pruning stale backup", "target", key, "persisted_at", rec.PersistedAt)
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	sort.Strings(stale)

	if bd, ok := repo.(backups.BatchDeleter); ok {
		if err := bd.DeleteMany(ctx, stale); err != nil {
			return 0, err
		}
		return len(stale), nil
	}

	for i, key := range stale {
		if err := repo.Delete(ctx, key); err != nil {
			return i, err
		}
	}
	return len(stale), nil
}
