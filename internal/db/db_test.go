package db

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPragmasApplied verifies that essential PRAGMAs are set on every connection
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous) // NORMAL
	assert.Equal(t, 2, tempStore)   // MEMORY
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	migrations, err := MigrationsFS()
	require.NoError(t, err)

	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	db := newTestDB(t)
	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	// reopening an up-to-date database is a no-op
	require.NoError(t, db.MigrateUp(migrations))

	require.NoError(t, db.MigrateDown(migrations))
	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'interval_runs'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateTo(migrations, 2))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'interval_runs'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations, err := MigrationsFS()
	require.NoError(t, err)
	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.InsertObservations(context.Background(), "a", unitObs(1, 2, 3)))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	rows := map[string]int64{}
	for _, ts := range stats.Tables {
		rows[ts.Name] = ts.Rows
	}
	assert.Equal(t, int64(3), rows["observations"])
	assert.Contains(t, rows, "interval_runs")
	assert.Contains(t, rows, "fine_bins")
}

// TestAttachAdminRoutes checks every debug route is registered. The routes
// may answer 403 to a non-local caller, but never 404.
func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, endpoint := range []string{"/debug/db-stats", "/debug/backup", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, endpoint, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.NotEqual(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestServeBackup(t *testing.T) {
	db := newTestDB(t)

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=test-backup-"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	header := make([]byte, 16)
	_, err = io.ReadFull(zr, header)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(header))
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	var out strings.Builder

	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"to", "2"}, path, &out))
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2 (latest 2, dirty: false)")

	assert.Error(t, RunMigrateCommand(nil, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"sideways"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"to"}, path, &out))
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path, &out))
}
