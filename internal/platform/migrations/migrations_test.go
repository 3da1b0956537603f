package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/phrazzld/autobuild/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestRun_SQLiteUpAndDown(t *testing.T) {
	db := openSQLite(t)
	_, log := logger.NewTestLogger(t)
	ctx := context.Background()

	require.NoError(t, Up(ctx, db, DialectSQLite, log))
	assert.True(t, tableExists(t, db, "task_slots"))
	assert.True(t, tableExists(t, db, "applied_artifacts"))
	assert.True(t, tableExists(t, db, TableName))

	// applying twice is a no-op
	require.NoError(t, Up(ctx, db, DialectSQLite, log))

	require.NoError(t, Run(ctx, db, DialectSQLite, CommandStatus, log))
	require.NoError(t, Run(ctx, db, DialectSQLite, CommandDown, log))
	assert.False(t, tableExists(t, db, "task_slots"))
}

func TestRun_Errors(t *testing.T) {
	db := openSQLite(t)
	_, log := logger.NewTestLogger(t)

	err := Run(context.Background(), db, DialectSQLite, "sideways", log)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	err = Run(context.Background(), db, "mysql", CommandUp, log)
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	t.Parallel()

	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		n, err := Count(dialect)
		require.NoError(t, err)
		assert.Equal(t, 1, n, dialect)
	}

	_, err := Count("oracle")
	assert.Error(t, err)
}
