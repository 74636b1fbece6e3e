package mcp

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trace2pass/trace2pass/internal/collectorstore"
)

// testStore opens a temporary sqlite-backed collector store with
// migrations applied.
func testStore(t *testing.T) *collectorstore.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	sqliteStore, err := collectorstore.NewSqliteStore(&collectorstore.SqliteConfig{
		DatabaseFileName: dbPath,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return sqliteStore.Store
}

// TestNewServer verifies that the MCP server can be created without
// panicking. A panic here means one of the five tool schemas is
// invalid.
func TestNewServer(t *testing.T) {
	store := testStore(t)

	server := NewServer(store)
	require.NotNil(t, server)
}
