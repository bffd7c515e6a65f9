package server

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable with ZD_STORAGE_BACKEND.
const (
	BackendDisk   = "disk"
	BackendMemory = "memory"
	BackendMinIO  = "minio"
)

// Settings is the process configuration. Values come from an optional YAML
// file, overridden by environment variables.
type Settings struct {
	Addr string `yaml:"addr"`

	StorageBackend string `yaml:"storage_backend"`
	StorageDir     string `yaml:"storage_dir"`

	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	Bucket      string `yaml:"bucket"`
	S3Prefix    string `yaml:"s3_prefix"`

	AdminParam string `yaml:"admin_param"`
	AdminValue string `yaml:"admin_value"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	MaxExtractions int64 `yaml:"max_extractions"`

	DatabaseURL    string        `yaml:"database_url"`
	AuditRetention time.Duration `yaml:"audit_retention"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Version string `yaml:"version"`
	Commit  string `yaml:"commit"`
}

// DefaultSettings mirrors the stock deployment: disk storage in ./public on
// port 4000, gated by ?admin=true.
func DefaultSettings() Settings {
	return Settings{
		Addr:           ":4000",
		StorageBackend: BackendDisk,
		StorageDir:     "public",
		AdminParam:     "admin",
		AdminValue:     "true",
		MaxExtractions: defaultMaxExtractions,
		AuditRetention: 720 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "text",
		Version:        "dev",
		Commit:         "unknown",
	}
}

// LoadSettings builds Settings from defaults, the YAML file at path (skipped
// when path is empty) and then the environment. getenv returns def when the
// variable is unset. The result is validated.
func LoadSettings(path string, getenv func(key, def string) string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return s, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	v := NewConfigValidator()

	s.Addr = getenv("ZD_ADDR", s.Addr)
	s.StorageBackend = getenv("ZD_STORAGE_BACKEND", s.StorageBackend)
	s.StorageDir = getenv("ZD_STORAGE_DIR", s.StorageDir)
	s.S3Endpoint = getenv("ZD_S3_ENDPOINT", s.S3Endpoint)
	s.S3AccessKey = getenv("ZD_S3_ACCESS_KEY", s.S3AccessKey)
	s.S3SecretKey = getenv("ZD_S3_SECRET_KEY", s.S3SecretKey)
	s.Bucket = getenv("ZD_BUCKET", s.Bucket)
	s.S3Prefix = getenv("ZD_S3_PREFIX", s.S3Prefix)
	s.AdminParam = getenv("ZD_ADMIN_PARAM", s.AdminParam)
	s.AdminValue = getenv("ZD_ADMIN_VALUE", s.AdminValue)
	s.MaxUploadBytes = v.ParseInt64("ZD_MAX_UPLOAD_BYTES", getenv("ZD_MAX_UPLOAD_BYTES", ""), s.MaxUploadBytes, 0)
	s.MaxExtractions = v.ParseInt64("ZD_MAX_EXTRACTIONS", getenv("ZD_MAX_EXTRACTIONS", ""), s.MaxExtractions, 1)
	s.DatabaseURL = getenv("DATABASE_URL", s.DatabaseURL)
	s.AuditRetention = v.ParseDuration("ZD_AUDIT_RETENTION", getenv("ZD_AUDIT_RETENTION", ""), s.AuditRetention)
	s.LogLevel = getenv("ZD_LOG_LEVEL", s.LogLevel)
	s.LogFormat = getenv("ZD_LOG_FORMAT", s.LogFormat)
	s.Version = getenv("ZD_VERSION", s.Version)
	s.Commit = getenv("ZD_COMMIT", s.Commit)

	s.validate(v)
	return s, v.Err()
}

func (s Settings) validate(v *ConfigValidator) {
	v.ValidateRequired("ZD_ADDR", s.Addr)
	v.ValidateListenAddr("ZD_ADDR", s.Addr)

	v.ValidateEnum("ZD_STORAGE_BACKEND", s.StorageBackend, []string{BackendDisk, BackendMemory, BackendMinIO})
	switch s.StorageBackend {
	case BackendDisk:
		v.ValidateRequired("ZD_STORAGE_DIR", s.StorageDir)
	case BackendMinIO:
		v.ValidateRequired("ZD_S3_ENDPOINT", s.S3Endpoint)
		v.ValidateRequired("ZD_S3_ACCESS_KEY", s.S3AccessKey)
		v.ValidateRequired("ZD_S3_SECRET_KEY", s.S3SecretKey)
		v.ValidateRequired("ZD_BUCKET", s.Bucket)
		// Can be host:port or URL
		if strings.Contains(s.S3Endpoint, "://") {
			v.ValidateURL("ZD_S3_ENDPOINT", s.S3Endpoint)
		}
	}

	v.ValidateRequired("ZD_ADMIN_PARAM", s.AdminParam)
	v.ValidateRequired("ZD_ADMIN_VALUE", s.AdminValue)

	if s.MaxUploadBytes < 0 {
		v.AddError("ZD_MAX_UPLOAD_BYTES", "must not be negative")
	}
	if s.MaxExtractions < 1 {
		v.AddError("ZD_MAX_EXTRACTIONS", "must be at least 1")
	}
	if s.AuditRetention <= 0 {
		v.AddError("ZD_AUDIT_RETENTION", "must be a positive duration")
	}

	if s.DatabaseURL != "" &&
		!strings.HasPrefix(s.DatabaseURL, "postgres://") && !strings.HasPrefix(s.DatabaseURL, "postgresql://") {
		v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
	}

	v.ValidateEnum("ZD_LOG_FORMAT", s.LogFormat, []string{"json", "text"})
	v.ValidateEnum("ZD_LOG_LEVEL", s.LogLevel, []string{"debug", "info", "warn", "error"})
}

// AccessPolicy returns the query-flag gate described by the settings.
func (s Settings) AccessPolicy() QueryFlagPolicy {
	return QueryFlagPolicy{Param: s.AdminParam, Value: s.AdminValue}
}

// AdminPath is the admin page path including the access flag, for the
// startup banner.
func (s Settings) AdminPath() string {
	return "/admin?" + url.Values{s.AdminParam: {s.AdminValue}}.Encode()
}

// ListenPort returns the port part of Addr.
func (s Settings) ListenPort() int {
	i := strings.LastIndexByte(s.Addr, ':')
	if i < 0 {
		return 0
	}
	p, _ := strconv.Atoi(s.Addr[i+1:])
	return p
}
