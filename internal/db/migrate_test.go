package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Positive(t, up)
	assert.Equal(t, up, down, "every up migration needs a down migration")
}

func TestAuditLogsMigration(t *testing.T) {
	b, err := fs.ReadFile(migrationsFS, "migrations/0001_audit_logs.up.sql")
	require.NoError(t, err)

	sql := string(b)
	for _, col := range []string{"id", "timestamp", "action", "request_id", "ip_address", "details", "success", "error_message"} {
		assert.Contains(t, sql, col)
	}
}
