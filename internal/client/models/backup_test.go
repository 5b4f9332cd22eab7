package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRecord_EncodeDecode(t *testing.T) {
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	rec := NewBackupRecord("s1", "audio/webm", [][]byte{[]byte("ab"), []byte("cde")}, at)
	require.Equal(t, int64(5), rec.TotalBytes)
	require.NotEmpty(t, rec.Checksum)

	b, err := rec.Encode()
	require.NoError(t, err)

	got, err := DecodeBackupRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	assert.Equal(t, BackupSummary{SessionID: "s1", MimeType: "audio/webm", TotalBytes: 5, Fragments: 2, PersistedAt: at}, got.Summary())

	r := got.Recording()
	assert.Equal(t, []byte("abcde"), r.Data)
	assert.Equal(t, "audio/webm", r.MimeType)
}

func TestDecodeBackupRecord_Corruption(t *testing.T) {
	rec := NewBackupRecord("s1", "audio/webm", [][]byte{[]byte("hello")}, time.Now())

	tamper := func(mut func(m map[string]any)) []byte {
		b, err := rec.Encode()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		mut(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}

	cases := map[string][]byte{
		"not json":       []byte("{oops"),
		"wrong version":  tamper(func(m map[string]any) { m["version"] = 99 }),
		"no session":     tamper(func(m map[string]any) { m["sessionId"] = "" }),
		"byte count":     tamper(func(m map[string]any) { m["totalBytes"] = 4 }),
		"checksum":       tamper(func(m map[string]any) { m["checksum"] = "AAAA" }),
		"fragment bytes": tamper(func(m map[string]any) { m["fragments"] = []any{"d29ybGQ="} }),
	}

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBackupRecord(b)
			require.ErrorIs(t, err, common.ErrCorruptedRecord)
		})
	}
}

func TestDecodeBackupRecord_DefaultsMime(t *testing.T) {
	b, err := NewBackupRecord("s1", "", [][]byte{[]byte("x")}, time.Now()).Encode()
	require.NoError(t, err)

	got, err := DecodeBackupRecord(b)
	require.NoError(t, err)
	assert.Equal(t, common.DefaultMimeType, got.MimeType)
}

func TestRecording_EmptyAndExtension(t *testing.T) {
	r := NewBackupRecord("s1", "audio/webm;codecs=opus", nil, time.Now()).Recording()
	assert.NotNil(t, r.Data)
	assert.Empty(t, r.Data)
	assert.Equal(t, ".webm", r.Extension())

	assert.Equal(t, ".m4a", (&Recording{MimeType: "audio/mp4"}).Extension())
	assert.Equal(t, ".bin", (&Recording{MimeType: "application/x-unknown"}).Extension())
}
