package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	chstore "warp-markets/internal/storage/clickhouse"
	"warp-markets/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse container, applies the embedded
// migrations and returns a connection to the test database. Returns a
// cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://default:@%s:%s/test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

func insertPool(t *testing.T, conn *chstore.Conn, poolID uint64, base, quote string, baseAmt, quoteAmt float64) {
	t.Helper()
	err := conn.Exec(context.Background(),
		`INSERT INTO liquidity_pool VALUES (?, ?, ?, ?, ?, ?, ?)`,
		poolID, base, quote, base, baseAmt, quote, quoteAmt)
	require.NoError(t, err)
}

func insertSwap(t *testing.T, conn *chstore.Conn, poolID, height uint64, msgIndex uint32, success uint8,
	offerDenom string, offerAmt float64, demandDenom string, demandAmt, price float64, at time.Time) {
	t.Helper()
	err := conn.Exec(context.Background(),
		`INSERT INTO swap VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		poolID, height, msgIndex, success, offerDenom, offerAmt, demandDenom, demandAmt, price, at)
	require.NoError(t, err)
}

func insertTrace(t *testing.T, conn *chstore.Conn, hash, base string) {
	t.Helper()
	err := conn.Exec(context.Background(),
		`INSERT INTO denom_trace VALUES (?, ?)`, hash, base)
	require.NoError(t, err)
}

func insertBlock(t *testing.T, conn *chstore.Conn, height uint64, at time.Time) {
	t.Helper()
	err := conn.Exec(context.Background(),
		`INSERT INTO block VALUES (?, ?)`, height, at)
	require.NoError(t, err)
}
