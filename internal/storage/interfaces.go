package storage

import (
	"context"
	"time"

	"warp-markets/internal/domain"
)

// PoolStore provides access to liquidity pool rows.
type PoolStore interface {
	// GetPools retrieves the current snapshot of all pools.
	GetPools(ctx context.Context) ([]*domain.LiquidityPool, error)
}

// TraceStore provides access to IBC denom trace rows.
type TraceStore interface {
	// GetTraces retrieves all denom traces.
	GetTraces(ctx context.Context) ([]domain.DenomTrace, error)
}

// SwapStore provides access to swap event rows and their aggregates.
// All queries consider successful swaps only.
type SwapStore interface {
	// LatestPrices retrieves the raw price of the most recent swap per
	// pool (greatest height, ties broken by msg index).
	LatestPrices(ctx context.Context) (map[int64]float64, error)

	// VolumesSince retrieves the per-(pool, denom) sums of offer and
	// demand amounts for swaps at height > after.
	VolumesSince(ctx context.Context, after int64) ([]*domain.SwapVolume, error)

	// Since retrieves swaps at height > after, ordered by height ASC,
	// msg index ASC.
	Since(ctx context.Context, after int64) ([]*domain.SwapEvent, error)

	// CutoffHeight returns the smallest block height whose timestamp is
	// after since. Returns ErrNotFound when no such block exists.
	CutoffHeight(ctx context.Context, since time.Time) (int64, error)

	// HistoricalTrades retrieves trades for a ticker id, newest first,
	// paginated by limit and offset.
	HistoricalTrades(ctx context.Context, tickerID string, limit, offset int) ([]*domain.Trade, error)
}
