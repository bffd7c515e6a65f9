package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipdrop/internal/storage"
)

func TestRequestID(t *testing.T) {
	h := newTestHandler(t, storage.NewMemory())

	rr := do(h, httptest.NewRequest(http.MethodGet, "/live", nil))
	_, err := uuid.Parse(rr.Header().Get("X-Request-Id"))
	assert.NoError(t, err, "generated ids are uuids")

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-Id", "client-123")
	rr = do(h, req)
	assert.Equal(t, "client-123", rr.Header().Get("X-Request-Id"))
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(r.Context()))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"ipv6 remote", nil, "[::1]:5555", "::1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.1:1", "5.6.7.8"},
		{"no port", nil, "10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestHandler(t, storage.NewMemory())

	rr := do(h, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rr.Header().Get("Referrer-Policy"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelInfo, true)

	l.Debug("hidden", nil)
	l.Error("extract failed", map[string]any{"archive": "a.zip"}, errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, LogLevelError, entry.Level)
	assert.Equal(t, "extract failed", entry.Message)
	assert.Equal(t, "a.zip", entry.Fields["archive"])
	assert.Equal(t, "boom", entry.Error)
	assert.Contains(t, entry.Caller, "logging_test.go")
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelDebug, false)

	l.Info("archive extracted", map[string]any{"target": "bundle", "entries": 2})

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[info] "))
	assert.Contains(t, line, "archive extracted entries=2 target=bundle")
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogLevelWarn, false)

	l.Info("nope", nil)
	l.Warn("yes", nil)

	assert.NotContains(t, buf.String(), "nope")
	assert.Contains(t, buf.String(), "yes")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
}
