package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"  minio:9000 ", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if ep != tt.wantEndpoint || secure != tt.wantSecure {
			t.Fatalf("normaliseEndpoint(%q) = (%q,%v), want (%q,%v)", tt.in, ep, secure, tt.wantEndpoint, tt.wantSecure)
		}
	}
}

func TestNormalisePrefix(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"/":        "",
		"public":   "public/",
		"/public/": "public/",
		"a/b":      "a/b/",
	}
	for in, want := range tests {
		if got := normalisePrefix(in); got != want {
			t.Errorf("normalisePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewMinIO_Incomplete(t *testing.T) {
	if _, err := NewMinIO(context.Background(), MinIOConfig{Endpoint: "minio:9000"}); err == nil {
		t.Fatal("expected error for incomplete configuration")
	}
}

func collect(out <-chan minio.ObjectInfo) []string {
	var keys []string
	for obj := range out {
		keys = append(keys, obj.Key)
	}
	return keys
}

func TestFeedRemovals(t *testing.T) {
	listed := make(chan minio.ObjectInfo, 2)
	listed <- minio.ObjectInfo{Key: "p/bundle/a.txt"}
	listed <- minio.ObjectInfo{Key: "p/bundle/sub/b.txt"}
	close(listed)

	out := make(chan minio.ObjectInfo)
	errCh := make(chan error, 1)
	go func() { errCh <- feedRemovals(context.Background(), "p/bundle", listed, out) }()

	assert.Equal(t, []string{"p/bundle", "p/bundle/a.txt", "p/bundle/sub/b.txt"}, collect(out))
	assert.NoError(t, <-errCh)
}

func TestFeedRemovals_ListError(t *testing.T) {
	listFailed := errors.New("connection reset")
	listed := make(chan minio.ObjectInfo, 3)
	listed <- minio.ObjectInfo{Key: "bundle/a.txt"}
	listed <- minio.ObjectInfo{Err: listFailed}
	listed <- minio.ObjectInfo{Key: "bundle/b.txt"}
	close(listed)

	out := make(chan minio.ObjectInfo)
	errCh := make(chan error, 1)
	go func() { errCh <- feedRemovals(context.Background(), "bundle", listed, out) }()

	assert.Equal(t, []string{"bundle", "bundle/a.txt"}, collect(out))
	assert.ErrorIs(t, <-errCh, listFailed)
}

func TestFeedRemovals_CanceledWithoutReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listed := make(chan minio.ObjectInfo)
	close(listed)
	out := make(chan minio.ObjectInfo)

	// Nobody reads out; the first send must not block forever.
	err := feedRemovals(ctx, "bundle", listed, out)
	require.ErrorIs(t, err, context.Canceled)
	_, open := <-out
	assert.False(t, open, "out is closed")
}
