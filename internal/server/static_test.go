package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipdrop/internal/storage"
)

func TestServeFile(t *testing.T) {
	root, err := storage.NewDisk(t.TempDir())
	require.NoError(t, err)
	putFile(t, root, "a.txt", "alpha")
	putFile(t, root, "bundle/sub/b.txt", "bravo")
	h := newTestHandler(t, root)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/files/a.txt", http.StatusOK, "alpha"},
		{"/files/bundle/sub/b.txt", http.StatusOK, "bravo"},
		{"/files/bundle", http.StatusNotFound, ""},
		{"/files/bundle/", http.StatusNotFound, ""},
		{"/files/missing.txt", http.StatusNotFound, ""},
		{"/files/", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestServeFile_ContentTypeAndRange(t *testing.T) {
	root := storage.NewMemory()
	putFile(t, root, "page.html", "<p>hello world</p>")
	h := newTestHandler(t, root)

	rr := do(h, httptest.NewRequest(http.MethodGet, "/files/page.html", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/files/page.html", nil)
	req.Header.Set("Range", "bytes=3-7")
	rr = do(h, req)
	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())
}

func TestServeFile_Head(t *testing.T) {
	root := storage.NewMemory()
	putFile(t, root, "a.txt", "alpha")
	h := newTestHandler(t, root)

	rr := do(h, httptest.NewRequest(http.MethodHead, "/files/a.txt", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Content-Length"))
	assert.Empty(t, rr.Body.String())
}

func TestServeFile_NotWritable(t *testing.T) {
	h := newTestHandler(t, storage.NewMemory())

	rr := do(h, httptest.NewRequest(http.MethodPost, "/files/a.txt", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
