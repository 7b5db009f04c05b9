package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"warp-markets/internal/storage/migrations"
	pgstore "warp-markets/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container, applies the embedded
// migrations and returns a pool. Returns a cleanup function that must
// be called after tests complete.
func setupTestDB(t *testing.T) (*pgstore.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgstore.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func insertPool(t *testing.T, pool *pgstore.Pool, poolID int64, base, quote string, baseAmt, quoteAmt float64) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO liquidity_pool VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (pool_id) DO UPDATE SET
			base_liquidity_amount = excluded.base_liquidity_amount,
			quote_liquidity_amount = excluded.quote_liquidity_amount`,
		poolID, base, quote, base, baseAmt, quote, quoteAmt)
	require.NoError(t, err)
}

func insertSwap(t *testing.T, pool *pgstore.Pool, poolID, height int64, msgIndex int, success bool,
	offerDenom string, offerAmt float64, demandDenom string, demandAmt, price float64, at time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO swap VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		poolID, height, msgIndex, success, offerDenom, offerAmt, demandDenom, demandAmt, price, at)
	require.NoError(t, err)
}

func insertTrace(t *testing.T, pool *pgstore.Pool, hash, base string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO denom_trace VALUES ($1, $2) ON CONFLICT DO NOTHING`, hash, base)
	require.NoError(t, err)
}

func insertBlock(t *testing.T, pool *pgstore.Pool, height int64, at time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO block VALUES ($1, $2) ON CONFLICT DO NOTHING`, height, at)
	require.NoError(t, err)
}
