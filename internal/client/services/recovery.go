package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glycerine/blake3"
	"github.com/gofrs/flock"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/client/repositories/backups"
	"github.com/dmitrijs2005/scribekeeper/internal/filex"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

var (
	ErrNoBackup          = errors.New("no backup found")
	ErrHandoffInProgress = errors.New("handoff already in progress")
	ErrNoUploader        = errors.New("no uploader configured")
)

// Uploader ships a recovered recording downstream and returns its location.
type Uploader interface {
	Upload(ctx context.Context, rec *models.Recording) (string, error)
}

// RecoveryService offers stored backups for resumption and hands them off
// once the user decides what to do with them.
type RecoveryService struct {
	repo     backups.Repository
	uploader Uploader
	lockDir  string
	logger   logging.Logger
}

// NewRecoveryService creates the service. Handoff lock files live in
// lockDir, which should be the client data directory.
func NewRecoveryService(repo backups.Repository, uploader Uploader, lockDir string, logger logging.Logger) *RecoveryService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RecoveryService{
		repo:     repo,
		uploader: uploader,
		lockDir:  lockDir,
		logger:   logger.With("module", "recovery"),
	}
}

func (s *RecoveryService) Pending(ctx context.Context) []models.BackupSummary {
	return ListPendingBackups(ctx, s.repo, s.logger)
}

// Export writes the recovered recording to path. When path is empty or an
// existing directory the file is named after the session. It returns the
// path written.
func (s *RecoveryService) Export(ctx context.Context, sessionID, path string) (string, error) {
	rec, ok := RecoverBackup(ctx, s.repo, s.logger, sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBackup, sessionID)
	}

	name := rec.SessionID + rec.Extension()
	if path == "" {
		path = name
	} else if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, name)
	}

	if err := filex.WriteFileAtomic(path, rec.Data, 0o600); err != nil {
		return "", fmt.Errorf("export %s: %w", sessionID, err)
	}
	s.logger.Info(ctx, "backup exported", "target", sessionID, "path", path, "bytes", len(rec.Data))
	return path, nil
}

// Handoff uploads the recovered recording and deletes the backup once the
// upload succeeded. Only one process can hand off a given session at a time.
func (s *RecoveryService) Handoff(ctx context.Context, sessionID string) (string, error) {
	if s.uploader == nil {
		return "", ErrNoUploader
	}

	unlock, err := s.lock(sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	rec, ok := RecoverBackup(ctx, s.repo, s.logger, sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBackup, sessionID)
	}

	started := time.Now()
	location, err := s.uploader.Upload(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", sessionID, err)
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		s.logger.Warn(ctx, "uploaded backup could not be deleted", "target", sessionID, "error", err)
	}

	s.logger.Info(ctx, "backup handed off", "target", sessionID, "location", location,
		"bytes", len(rec.Data), "took", time.Since(started))
	return location, nil
}

// Discard drops the backup of sessionID without uploading it.
func (s *RecoveryService) Discard(ctx context.Context, sessionID string) error {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("discard %s: %w", sessionID, err)
	}
	s.logger.Info(ctx, "backup discarded", "target", sessionID)
	return nil
}

// Prune removes backups older than maxAge and unreadable ones.
func (s *RecoveryService) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	return PruneStaleBackups(ctx, s.repo, s.logger, maxAge)
}

// lockFileName maps every distinct session id, including ids with path
// separators, to its own file name.
func lockFileName(sessionID string) string {
	h := blake3.New(16, nil)
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil)) + ".lock"
}

// lock takes the cross-process handoff lock of sessionID.
func (s *RecoveryService) lock(sessionID string) (func(), error) {
	if s.lockDir == "" {
		return func() {}, nil
	}

	dir, err := filex.EnsureDir(filepath.Join(s.lockDir, "locks"))
	if err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockFileName(sessionID)))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandoffInProgress, sessionID)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn(context.Background(), "failed to release handoff lock", "target", sessionID, "error", err)
		}
	}, nil
}
