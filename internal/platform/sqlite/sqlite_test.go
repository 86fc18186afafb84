package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "mse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('entities', 'records')`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestWithConnPragmas(t *testing.T) {
	assert.Equal(t, ":memory:", withConnPragmas(":memory:"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withConnPragmas("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withConnPragmas("file:a.db?mode=rwc"))
}
