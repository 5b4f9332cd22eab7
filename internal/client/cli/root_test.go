package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// fakeBackend serves the client-facing API with an in-memory bucket.
type fakeBackend struct {
	srv *httptest.Server

	mu          sync.Mutex
	objects     map[string][]byte
	transcripts [][]byte
	keyStatus   int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{objects: map[string][]byte{}, keyStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	})
	mux.HandleFunc("GET /api/v1/encryption/key", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.keyStatus
		b.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(models.KeyBundleDTO{
			Algorithm:     "aes-256-gcm",
			Key:           base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)),
			KeyID:         "k1",
			IVLength:      12,
			AuthTagLength: 16,
			ExpiresAt:     time.Now().Add(time.Hour),
		})
	})
	mux.HandleFunc("POST /api/v1/transcripts", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.transcripts = append(b.transcripts, body)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "t-1"})
	})
	mux.HandleFunc("POST /api/v1/recordings/upload-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			SessionID string `json:"sessionId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		key := "recordings/" + req.SessionID
		_ = json.NewEncoder(w).Encode(map[string]string{"url": b.srv.URL + "/bucket/" + key, "key": key})
	})
	mux.HandleFunc("PUT /bucket/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.objects[strings.TrimPrefix(r.URL.Path, "/bucket/")] = body
		b.mu.Unlock()
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.objects[key]
	return v, ok
}

func baseArgs(t *testing.T, store, server string) []string {
	t.Helper()
	t.Setenv("SCRIBE_TOKEN", "")
	return []string{"--store", store, "--data-dir", t.TempDir(), "--server", server}
}

func writeMedia(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.webm")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestRecord_KeepThenRecoverFlow(t *testing.T) {
	base := baseArgs(t, "sqlite", "127.0.0.1:1")
	media := writeMedia(t, "0123456789abcdefghijklmnopqrstuvwxy")

	stdout, _, err := runCLI(t, "", append(base, "record", "-i", media, "-m", "audio/webm", "-s", "s1", "--chunk", "10", "--keep")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "recorded s1: 35 bytes in 4 fragments, backup kept")

	stdout, _, err = runCLI(t, "", append(base, "backups", "list")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "SESSION\tMIME\tBYTES\tFRAGMENTS\tPERSISTED", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "s1\taudio/webm\t35\t4\t"), lines[1])

	outDir := t.TempDir()
	stdout, _, err = runCLI(t, "", append(base, "backups", "export", "s1", "-o", outDir)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "exported s1")
	got, err := os.ReadFile(filepath.Join(outDir, "s1.webm"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefghijklmnopqrstuvwxy", string(got))

	stdout, _, err = runCLI(t, "n\n", append(base, "backups", "discard", "s1")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "kept")

	stdout, _, err = runCLI(t, "", append(base, "backups", "discard", "s1", "--yes")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "discarded s1")

	stdout, _, err = runCLI(t, "", append(base, "backups", "list")...)
	require.NoError(t, err)
	assert.Equal(t, "no backups\n", stdout)
}

func TestRecord_UploadsThroughPresignedURL(t *testing.T) {
	backend := newFakeBackend(t)
	base := baseArgs(t, "badger", backend.srv.URL)

	stdout, _, err := runCLI(t, "live media bytes", append(base, "--token", "tok", "record", "-s", "s2", "-m", "audio/ogg", "--chunk", "4")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "uploaded s2 (16 bytes) to recordings/s2")

	obj, ok := backend.object("recordings/s2")
	require.True(t, ok)
	assert.Equal(t, "live media bytes", string(obj))

	stdout, _, err = runCLI(t, "", append(base, "backups", "list")...)
	require.NoError(t, err)
	assert.Equal(t, "no backups\n", stdout)
}

func TestRecord_UploadFailureKeepsBackup(t *testing.T) {
	backend := newFakeBackend(t)
	base := baseArgs(t, "sqlite", backend.srv.URL)

	_, stderr, err := runCLI(t, "media", append(base, "--token", "wrong", "record", "-s", "s3")...)
	require.Error(t, err)
	assert.Contains(t, stderr, "upload failed, backup s3 kept")

	stdout, _, err := runCLI(t, "", append(base, "backups", "list")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "s3\t")

	stdout, _, err = runCLI(t, "", append(base, "--token", "tok", "backups", "upload", "s3")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "uploaded s3 to recordings/s3")
	obj, ok := backend.object("recordings/s3")
	require.True(t, ok)
	assert.Equal(t, "media", string(obj))

	_, _, err = runCLI(t, "", append(base, "--token", "tok", "backups", "upload", "s3")...)
	require.Error(t, err)
}

type cancelAfterFirstRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelAfterFirstRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestRecord_InterruptKeepsBackup(t *testing.T) {
	base := baseArgs(t, "sqlite", "127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(&cancelAfterFirstRead{r: strings.NewReader("abcdefgh"), cancel: cancel})
	cmd.SetArgs(append(base, "record", "-s", "s4", "--chunk", "4"))
	err := cmd.ExecuteContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, stderr.String(), "recording interrupted, backup s4 kept (4 bytes)")

	out, _, err := runCLI(t, "", append(base, "backups", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "s4\taudio/webm\t4\t1\t")
}

func TestBackupsPrune(t *testing.T) {
	base := baseArgs(t, "sqlite", "127.0.0.1:1")
	_, _, err := runCLI(t, "data", append(base, "record", "-s", "old", "--keep")...)
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "", append(base, "backups", "prune")...)
	require.NoError(t, err)
	assert.Equal(t, "pruned 0 backup(s)\n", stdout)

	time.Sleep(5 * time.Millisecond)
	stdout, _, err = runCLI(t, "", append(base, "backups", "prune", "--max-age", "1ms")...)
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 backup(s)\n", stdout)
}

func TestSave_EncryptsConfiguredFields(t *testing.T) {
	backend := newFakeBackend(t)
	base := baseArgs(t, "memory", backend.srv.URL)

	doc := `{"title":"standup","transcript":"secret words","meta":{"n":1}}`
	stdout, _, err := runCLI(t, doc, append(base, "--token", "tok", "save")...)
	require.NoError(t, err)
	assert.Equal(t, "saved transcript t-1 (encrypted)\n", stdout)

	require.Len(t, backend.transcripts, 1)
	sent := string(backend.transcripts[0])
	assert.NotContains(t, sent, "secret words")
	assert.Contains(t, sent, `"$encrypted"`)
	assert.Contains(t, sent, `"standup"`)
}

func TestSave_FallsBackToPlaintext(t *testing.T) {
	backend := newFakeBackend(t)
	backend.keyStatus = http.StatusServiceUnavailable
	base := baseArgs(t, "memory", backend.srv.URL)

	doc := `{"transcript":"words"}`
	stdout, _, err := runCLI(t, doc, append(base, "--token", "tok", "save")...)
	require.NoError(t, err)
	assert.Equal(t, "saved transcript t-1 (plaintext)\n", stdout)
	require.Len(t, backend.transcripts, 1)
	assert.JSONEq(t, doc, string(backend.transcripts[0]))
}

func TestSave_TokenFromEnvironment(t *testing.T) {
	backend := newFakeBackend(t)
	base := baseArgs(t, "memory", backend.srv.URL)
	t.Setenv(TokenEnv, "tok")

	stdout, _, err := runCLI(t, `{"notes":"n"}`, append(base, "save", "--encrypt", "notes")...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(encrypted)")
}

func TestPing(t *testing.T) {
	backend := newFakeBackend(t)

	stdout, _, err := runCLI(t, "", append(baseArgs(t, "memory", backend.srv.URL), "ping")...)
	require.NoError(t, err)
	assert.Equal(t, backend.srv.URL+": online\n", stdout)

	addr := backend.srv.URL
	backend.srv.Close()
	stdout, _, err = runCLI(t, "", append(baseArgs(t, "memory", addr), "ping")...)
	require.Error(t, err)
	assert.Contains(t, stdout, "offline")
}

func TestRootCommand_RejectsBadConfig(t *testing.T) {
	_, _, err := runCLI(t, "", "--store", "tape", "backups", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "tape"`)

	path := filepath.Join(t.TempDir(), "scribe.toml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend = \"memory\"\nuploader = \"carrier-pigeon\"\n"), 0o600))
	_, _, err = runCLI(t, "", "-c", path, "backups", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
