package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap returns a getenv func backed by m.
func envMap(m map[string]string) func(key, def string) string {
	return func(key, def string) string {
		if v, ok := m[key]; ok && v != "" {
			return v
		}
		return def
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":4000", s.Addr)
	assert.Equal(t, BackendDisk, s.StorageBackend)
	assert.Equal(t, "public", s.StorageDir)
	assert.Equal(t, QueryFlagPolicy{Param: "admin", Value: "true"}, s.AccessPolicy())
	assert.EqualValues(t, 4, s.MaxExtractions)
	assert.Zero(t, s.MaxUploadBytes)
	assert.Equal(t, 720*time.Hour, s.AuditRetention)
	assert.Equal(t, "/admin?admin=true", s.AdminPath())
	assert.Equal(t, 4000, s.ListenPort())
}

func TestLoadSettings_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zipdrop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
storage_backend: memory
admin_param: key
admin_value: s3cret
max_upload_bytes: 1048576
audit_retention: 48h
log_format: json
`), 0o600))

	s, err := LoadSettings(path, envMap(map[string]string{
		"ZD_ADDR":            ":9100",
		"ZD_MAX_EXTRACTIONS": "8",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9100", s.Addr, "env wins over file")
	assert.Equal(t, BackendMemory, s.StorageBackend)
	assert.Equal(t, "/admin?key=s3cret", s.AdminPath())
	assert.EqualValues(t, 1048576, s.MaxUploadBytes)
	assert.EqualValues(t, 8, s.MaxExtractions)
	assert.Equal(t, 48*time.Hour, s.AuditRetention)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestLoadSettings_CollectsAllErrors(t *testing.T) {
	_, err := LoadSettings("", envMap(map[string]string{
		"ZD_ADDR":             "nope",
		"ZD_STORAGE_BACKEND":  "floppy",
		"ZD_MAX_UPLOAD_BYTES": "lots",
		"ZD_MAX_EXTRACTIONS":  "0",
		"ZD_AUDIT_RETENTION":  "forever",
		"DATABASE_URL":        "mysql://x",
		"ZD_LOG_LEVEL":        "loud",
	}))
	require.Error(t, err)

	msg := err.Error()
	for _, field := range []string{
		"ZD_ADDR", "ZD_STORAGE_BACKEND", "ZD_MAX_UPLOAD_BYTES", "ZD_MAX_EXTRACTIONS",
		"ZD_AUDIT_RETENTION", "DATABASE_URL", "ZD_LOG_LEVEL",
	} {
		assert.Contains(t, msg, field)
	}
}

func TestLoadSettings_MinIORequiresCredentials(t *testing.T) {
	_, err := LoadSettings("", envMap(map[string]string{
		"ZD_STORAGE_BACKEND": "minio",
		"ZD_S3_ENDPOINT":     "ftp://minio:9000",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZD_S3_ACCESS_KEY")
	assert.Contains(t, err.Error(), "ZD_BUCKET")
	assert.Contains(t, err.Error(), "http or https")
}

func TestConfigValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{":4000", true},
		{"127.0.0.1:8080", true},
		{"4000", false},
		{":0", false},
		{":70000", false},
		{":http", false},
	}
	for _, tt := range tests {
		v := NewConfigValidator()
		v.ValidateListenAddr("ZD_ADDR", tt.value)
		assert.Equal(t, !tt.ok, v.HasErrors(), tt.value)
	}
}

func TestConfigValidator_ErrorString(t *testing.T) {
	v := NewConfigValidator()
	assert.NoError(t, v.Err())

	v.AddError("A", "bad")
	v.AddError("B", "worse")
	assert.Len(t, v.Errors(), 2)
	assert.Contains(t, v.ErrorString(), "2 error(s)")
	assert.Contains(t, v.ErrorString(), "1. config validation failed for A: bad")
	assert.Error(t, v.Err())
}
