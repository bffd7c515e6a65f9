package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"zipdrop/internal/storage"
)

const gate = "?admin=true"

func newTestHandler(t *testing.T, root storage.Root, mutate ...func(*Config)) http.Handler {
	t.Helper()
	cfg := Config{
		Root:   root,
		Build:  BuildInfo{Version: "test", Commit: "abc123"},
		Logger: NewLogger(io.Discard, LogLevelDebug, false),
	}
	for _, f := range mutate {
		f(&cfg)
	}
	return New(cfg).Handler()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func body(rr *httptest.ResponseRecorder) string {
	return strings.TrimSpace(rr.Body.String())
}

// uploadRequest builds a multipart POST /upload with a single "file" part.
func uploadRequest(t *testing.T, query, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload"+query, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func deleteRequest(query, payload string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/delete-file"+query, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func putFile(t *testing.T, root storage.Root, name, content string) {
	t.Helper()
	w, err := root.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readFile(t *testing.T, root storage.Root, name string) string {
	t.Helper()
	obj, err := root.Open(context.Background(), name)
	require.NoError(t, err)
	defer obj.Close()
	b, err := io.ReadAll(obj)
	require.NoError(t, err)
	return string(b)
}

func exists(root storage.Root, name string) bool {
	_, err := root.Stat(context.Background(), name)
	return err == nil
}

var errBroken = errors.New("backend unavailable")

// brokenRoot fails the operations listed in fail and delegates the rest.
type brokenRoot struct {
	storage.Root
	fail map[string]bool
}

func (b brokenRoot) List(ctx context.Context) ([]storage.EntryInfo, error) {
	if b.fail["list"] {
		return nil, errBroken
	}
	return b.Root.List(ctx)
}

func (b brokenRoot) Stat(ctx context.Context, name string) (storage.EntryInfo, error) {
	if b.fail["stat"] {
		return storage.EntryInfo{}, errBroken
	}
	return b.Root.Stat(ctx, name)
}

func (b brokenRoot) Remove(ctx context.Context, name string) error {
	if b.fail["remove"] {
		return errBroken
	}
	return b.Root.Remove(ctx, name)
}

func (b brokenRoot) RemoveAll(ctx context.Context, name string) error {
	if b.fail["removeall"] {
		return errBroken
	}
	return b.Root.RemoveAll(ctx, name)
}

// memAudit is an in-memory AuditStore.
type memAudit struct {
	mu      sync.Mutex
	entries []AuditLog
	err     error
	pruned  time.Time
}

func (m *memAudit) Record(ctx context.Context, entry AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) Recent(ctx context.Context, f AuditFilters) ([]AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]AuditLog, 0)
	for i := len(m.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := m.entries[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
			continue
		}
		if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memAudit) Prune(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.pruned = before
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if e.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func (m *memAudit) actions() []AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}
