package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx,
		"postgres:15-alpine",
		postgrescontainer.WithDatabase("silverload"),
		postgrescontainer.WithUsername("silverload"),
		postgrescontainer.WithPassword("silverload"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second)),
	)
	require.NoError(t, err, "start postgres container")

	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestRunnerUpDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	connStr := setupPostgres(ctx, t)

	r, err := NewRunner(ctx, connStr, "")
	require.NoError(t, err)
	defer r.Close()

	v, dirty, err := r.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, r.Up())
	require.NoError(t, r.Up(), "second Up must be a no-op")

	v, _, err = r.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT INTO data_processing_metadata (file_name, sheet_name, row_count, last_processed_time)
		 VALUES ('bronze', 'sales_data', 3, NOW())`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO data_processing_metadata (file_name, sheet_name, row_count, last_processed_time)
		 VALUES ('bronze', 'sales_data', -1, NOW())`)
	assert.Error(t, err, "negative row_count must violate the check constraint")

	require.NoError(t, r.Down())

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'data_processing_metadata')`).Scan(&exists)
	require.NoError(t, err)
	assert.False(t, exists)
}
