package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warp-markets/internal/domain"
	"warp-markets/internal/storage"
)

// MarketStore implements the market store interfaces on ClickHouse.
// Rows come pre-joined and pre-filtered from the indexer schema:
// liquidity_pool (ReplacingMergeTree, read FINAL), swap, denom_trace
// and block.
type MarketStore struct {
	conn *Conn
}

// NewMarketStore creates a MarketStore on the given connection.
func NewMarketStore(conn *Conn) *MarketStore {
	return &MarketStore{conn: conn}
}

// Compile-time interface checks.
var (
	_ storage.PoolStore  = (*MarketStore)(nil)
	_ storage.TraceStore = (*MarketStore)(nil)
	_ storage.SwapStore  = (*MarketStore)(nil)
)

// GetPools retrieves the current snapshot of all pools.
func (s *MarketStore) GetPools(ctx context.Context) ([]*domain.LiquidityPool, error) {
	query := `
		SELECT pool_id, base_denom, quote_denom,
		       base_liquidity_denom, base_liquidity_amount,
		       quote_liquidity_denom, quote_liquidity_amount
		FROM liquidity_pool FINAL
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var pools []*domain.LiquidityPool
	for rows.Next() {
		var (
			p      domain.LiquidityPool
			poolID uint64
		)
		err := rows.Scan(
			&poolID, &p.BaseDenom, &p.QuoteDenom,
			&p.BaseLiquidity.Denom, &p.BaseLiquidity.Amount,
			&p.QuoteLiquidity.Denom, &p.QuoteLiquidity.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}
		p.PoolID = int64(poolID)
		pools = append(pools, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}
	return pools, nil
}

// GetTraces retrieves all denom traces.
func (s *MarketStore) GetTraces(ctx context.Context) ([]domain.DenomTrace, error) {
	rows, err := s.conn.Query(ctx, `SELECT denom_hash, base_denom FROM denom_trace FINAL`)
	if err != nil {
		return nil, fmt.Errorf("query denom traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.DenomTrace
	for rows.Next() {
		var t domain.DenomTrace
		if err := rows.Scan(&t.DenomHash, &t.BaseDenom); err != nil {
			return nil, fmt.Errorf("scan denom trace row: %w", err)
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate denom trace rows: %w", err)
	}
	return traces, nil
}

// LatestPrices retrieves the raw price of the most recent successful
// swap per pool, ordered by (height, msg_index) within the pool.
func (s *MarketStore) LatestPrices(ctx context.Context) (map[int64]float64, error) {
	query := `
		SELECT pool_id, argMax(price, (height, msg_index)) AS last_price
		FROM swap
		WHERE success = 1
		GROUP BY pool_id
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[int64]float64)
	for rows.Next() {
		var (
			poolID uint64
			price  float64
		)
		if err := rows.Scan(&poolID, &price); err != nil {
			return nil, fmt.Errorf("scan latest price row: %w", err)
		}
		prices[int64(poolID)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest price rows: %w", err)
	}
	return prices, nil
}

// VolumesSince retrieves per-(pool, denom) offer and demand sums for
// successful swaps at height > after. A denom may contribute on either
// side of a swap, so both legs are unioned before summing.
func (s *MarketStore) VolumesSince(ctx context.Context, after int64) ([]*domain.SwapVolume, error) {
	query := `
		SELECT pool_id, denom, sum(offer_amount) AS offer_sum, sum(demand_amount) AS demand_sum
		FROM (
			SELECT pool_id, offer_denom AS denom, offer_amount, toFloat64(0) AS demand_amount
			FROM swap
			WHERE success = 1 AND height > ?
			UNION ALL
			SELECT pool_id, demand_denom AS denom, toFloat64(0) AS offer_amount, demand_amount
			FROM swap
			WHERE success = 1 AND height > ?
		)
		GROUP BY pool_id, denom
	`

	rows, err := s.conn.Query(ctx, query, uint64(after), uint64(after))
	if err != nil {
		return nil, fmt.Errorf("query volumes: %w", err)
	}
	defer rows.Close()

	var volumes []*domain.SwapVolume
	for rows.Next() {
		var (
			v      domain.SwapVolume
			poolID uint64
		)
		if err := rows.Scan(&poolID, &v.Denom, &v.OfferAmount, &v.DemandAmount); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		v.PoolID = int64(poolID)
		volumes = append(volumes, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return volumes, nil
}

// Since retrieves successful swaps at height > after, ordered by height
// ASC, msg_index ASC.
func (s *MarketStore) Since(ctx context.Context, after int64) ([]*domain.SwapEvent, error) {
	query := `
		SELECT pool_id, height, msg_index, offer_denom, offer_amount,
		       demand_denom, demand_amount, price
		FROM swap
		WHERE success = 1 AND height > ?
		ORDER BY height ASC, msg_index ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(after))
	if err != nil {
		return nil, fmt.Errorf("query swaps: %w", err)
	}
	defer rows.Close()

	var events []*domain.SwapEvent
	for rows.Next() {
		var (
			e        domain.SwapEvent
			poolID   uint64
			height   uint64
			msgIndex uint32
		)
		err := rows.Scan(
			&poolID, &height, &msgIndex, &e.OfferDenom, &e.OfferAmount,
			&e.DemandDenom, &e.DemandAmount, &e.SwapPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		e.PoolID = int64(poolID)
		e.BlockHeight = int64(height)
		e.MsgIndex = int(msgIndex)
		e.Success = true
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return events, nil
}

// CutoffHeight returns the smallest block height whose timestamp is
// after since. Returns storage.ErrNotFound when no block qualifies.
func (s *MarketStore) CutoffHeight(ctx context.Context, since time.Time) (int64, error) {
	query := `
		SELECT height FROM block
		WHERE timestamp > ?
		ORDER BY height ASC
		LIMIT 1
	`

	var height uint64
	err := s.conn.QueryRow(ctx, query, since).Scan(&height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("query cutoff height: %w", err)
	}
	return int64(height), nil
}

// HistoricalTrades retrieves trades for a ticker id, newest first.
// The swap direction relative to the pool's base denom classifies the
// trade type.
func (s *MarketStore) HistoricalTrades(ctx context.Context, tickerID string, limit, offset int) ([]*domain.Trade, error) {
	if limit < 0 || offset < 0 {
		return nil, storage.ErrInvalidInput
	}
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT s.height, s.msg_index, s.price,
		       s.offer_denom, s.offer_amount, s.demand_amount,
		       toInt64(toUnixTimestamp(s.timestamp)), p.base_denom
		FROM swap AS s
		INNER JOIN (
			SELECT pool_id, base_denom
			FROM liquidity_pool FINAL
			WHERE concat(base_denom, '_', quote_denom) = ?
		) AS p ON s.pool_id = p.pool_id
		WHERE s.success = 1
		ORDER BY s.height DESC, s.msg_index DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.conn.Query(ctx, query, tickerID, uint64(limit), uint64(offset))
	if err != nil {
		return nil, fmt.Errorf("query historical trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var (
			height     uint64
			msgIndex   uint32
			price      float64
			offerDenom string
			offerAmt   float64
			demandAmt  float64
			tradeTime  int64
			baseDenom  string
		)
		err := rows.Scan(&height, &msgIndex, &price, &offerDenom, &offerAmt, &demandAmt, &tradeTime, &baseDenom)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		t := &domain.Trade{
			TradeID:   int64(height)<<16 | int64(msgIndex),
			Price:     price,
			TradeTime: tradeTime,
			Type:      domain.TradeSideBuy,
		}
		if offerDenom == baseDenom {
			t.Type = domain.TradeSideSell
			t.BaseVolume, t.TargetVolume = offerAmt, demandAmt
		} else {
			t.BaseVolume, t.TargetVolume = demandAmt, offerAmt
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
