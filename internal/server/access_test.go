package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"zipdrop/internal/storage"
)

func TestQueryFlagPolicy(t *testing.T) {
	p := DefaultAccessPolicy()
	tests := []struct {
		query string
		want  bool
	}{
		{"?admin=true", true},
		{"?admin=true&x=1", true},
		{"?admin=TRUE", false},
		{"?admin=1", false},
		{"?admin=", false},
		{"", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/admin"+tt.query, nil)
		assert.Equal(t, tt.want, p.Allow(r), tt.query)
	}
}

func TestRequireAccess_DeniesGatedRoutes(t *testing.T) {
	root := storage.NewMemory()
	putFile(t, root, "keep.txt", "x")
	h := newTestHandler(t, root)

	reqs := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/admin", nil),
		httptest.NewRequest(http.MethodGet, "/list-files", nil),
		httptest.NewRequest(http.MethodGet, "/list-files?admin=false", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
		httptest.NewRequest(http.MethodGet, "/admin/audit", nil),
		deleteRequest("", `{"name":"keep.txt"}`),
		uploadRequest(t, "", "new.txt", []byte("data")),
	}
	for _, req := range reqs {
		rr := do(h, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, req.URL.String())
		assert.Equal(t, "Forbidden", body(rr), req.URL.String())
	}

	// Denied requests have no side effects.
	assert.True(t, exists(root, "keep.txt"))
	assert.False(t, exists(root, "new.txt"))
}

func TestRequireAccess_UngatedRoutes(t *testing.T) {
	root := storage.NewMemory()
	putFile(t, root, "a.txt", "alpha")
	h := newTestHandler(t, root)

	for _, path := range []string{"/files/a.txt", "/health", "/ready", "/live"} {
		rr := do(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRequireAccess_CustomPolicy(t *testing.T) {
	root := storage.NewMemory()
	h := newTestHandler(t, root, func(c *Config) {
		c.Access = AccessFunc(func(r *http.Request) bool {
			return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
		})
	})

	rr := do(h, httptest.NewRequest(http.MethodGet, "/list-files?admin=true", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/list-files", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr = do(h, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAccess_RecordsDenial(t *testing.T) {
	audit := &memAudit{}
	before := GetMetrics().Snapshot().AccessDeniedTotal
	h := newTestHandler(t, storage.NewMemory(), func(c *Config) { c.Audit = audit })

	do(h, httptest.NewRequest(http.MethodGet, "/list-files", nil))

	assert.Equal(t, []AuditAction{AuditActionAccessDenied}, audit.actions())
	assert.Equal(t, before+1, GetMetrics().Snapshot().AccessDeniedTotal)
}
