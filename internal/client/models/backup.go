// Package models defines client-side data models: the persisted form of an
// in-progress recording backup and the wire types of field encryption.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/common"

	cristalbase64 "github.com/cristalhq/base64"
	"github.com/glycerine/blake3"
)

// BackupRecordVersion is the schema version written by NewBackupRecord.
const BackupRecordVersion = 1

// BackupRecord is the durable snapshot of one recording session.
// Fragments are kept in capture order; concatenating them yields the media.
type BackupRecord struct {
	Version     int       `json:"version"`
	SessionID   string    `json:"sessionId"`
	MimeType    string    `json:"mimeType"`
	TotalBytes  int64     `json:"totalBytes"`
	Fragments   [][]byte  `json:"fragments"`
	PersistedAt time.Time `json:"persistedAt"`
	// Checksum is BLAKE3-256 over the fragment concatenation, base64.
	Checksum string `json:"checksum"`
}

// BackupSummary describes a stored backup without its media bytes.
type BackupSummary struct {
	SessionID   string
	MimeType    string
	TotalBytes  int64
	Fragments   int
	PersistedAt time.Time
}

// Recording is a media blob reconstructed from a backup.
type Recording struct {
	SessionID   string
	MimeType    string
	Data        []byte
	PersistedAt time.Time
}

func fragmentsChecksum(fragments [][]byte) string {
	h := blake3.New(32, nil)
	for _, f := range fragments {
		h.Write(f)
	}
	return cristalbase64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewBackupRecord builds a record from a fragment snapshot. The fragment
// slices are referenced, not copied.
func NewBackupRecord(sessionID, mimeType string, fragments [][]byte, persistedAt time.Time) *BackupRecord {
	var total int64
	for _, f := range fragments {
		total += int64(len(f))
	}
	return &BackupRecord{
		Version:     BackupRecordVersion,
		SessionID:   sessionID,
		MimeType:    mimeType,
		TotalBytes:  total,
		Fragments:   fragments,
		PersistedAt: persistedAt.UTC(),
		Checksum:    fragmentsChecksum(fragments),
	}
}

func (r *BackupRecord) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeBackupRecord parses and verifies a stored record. Any inconsistency
// is reported as common.ErrCorruptedRecord.
func DecodeBackupRecord(b []byte) (*BackupRecord, error) {
	var r BackupRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptedRecord, err)
	}
	if r.Version != BackupRecordVersion {
		return nil, fmt.Errorf("%w: unknown version %d", common.ErrCorruptedRecord, r.Version)
	}
	if r.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", common.ErrCorruptedRecord)
	}

	var total int64
	for _, f := range r.Fragments {
		total += int64(len(f))
	}
	if total != r.TotalBytes {
		return nil, fmt.Errorf("%w: byte count %d, fragments hold %d", common.ErrCorruptedRecord, r.TotalBytes, total)
	}
	if fragmentsChecksum(r.Fragments) != r.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", common.ErrCorruptedRecord)
	}
	if r.MimeType == "" {
		r.MimeType = common.DefaultMimeType
	}

	return &r, nil
}

func (r *BackupRecord) Summary() BackupSummary {
	return BackupSummary{
		SessionID:   r.SessionID,
		MimeType:    r.MimeType,
		TotalBytes:  r.TotalBytes,
		Fragments:   len(r.Fragments),
		PersistedAt: r.PersistedAt,
	}
}

// Recording concatenates the fragments in capture order.
func (r *BackupRecord) Recording() *Recording {
	data := bytes.Join(r.Fragments, nil)
	if data == nil {
		data = []byte{}
	}
	return &Recording{
		SessionID:   r.SessionID,
		MimeType:    r.MimeType,
		Data:        data,
		PersistedAt: r.PersistedAt,
	}
}

// Extension returns a file extension for the recording's MIME type.
func (r *Recording) Extension() string {
	return common.ExtensionForMimeType(r.MimeType)
}
