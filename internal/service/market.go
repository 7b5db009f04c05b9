// Package service orchestrates the per-request aggregation flow: row
// snapshot in, normalized market data out. The service is stateless;
// concurrent requests share nothing but the injected handles.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"warp-markets/internal/convert"
	"warp-markets/internal/domain"
	"warp-markets/internal/observability"
	"warp-markets/internal/pricefeed"
	"warp-markets/internal/stats"
	"warp-markets/internal/storage"
	"warp-markets/internal/ticker"
)

// ErrUpstream is returned when the row-set provider or the external
// rate feed fails. Fatal for the request: callers must surface a
// service error, never a partial numeric result.
var ErrUpstream = errors.New("upstream unavailable")

// DefaultWindow is the statistics lookback.
const DefaultWindow = 24 * time.Hour

// Market serves normalized market data from explicitly passed
// collaborator handles.
type Market struct {
	pools   storage.PoolStore
	traces  storage.TraceStore
	swaps   storage.SwapStore
	feed    pricefeed.Source
	chain   *convert.Chain
	engine  *stats.Engine
	logger  *log.Logger
	metrics *observability.Metrics
	window  time.Duration

	// now is the clock; overridable in tests.
	now func() time.Time
}

// Config wires a Market.
type Config struct {
	Pools   storage.PoolStore
	Traces  storage.TraceStore
	Swaps   storage.SwapStore
	Feed    pricefeed.Source
	Chain   *convert.Chain // nil means the default warp chain
	Logger  *log.Logger
	Metrics *observability.Metrics
	Window  time.Duration // zero means DefaultWindow
}

// NewMarket creates the market service.
func NewMarket(cfg Config) *Market {
	chain := cfg.Chain
	if chain == nil {
		chain = convert.NewChain()
	}
	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	return &Market{
		pools:   cfg.Pools,
		traces:  cfg.Traces,
		swaps:   cfg.Swaps,
		feed:    cfg.Feed,
		chain:   chain,
		engine:  stats.NewEngine(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		window:  window,
		now:     time.Now,
	}
}

// Pairs lists all trading pairs.
func (m *Market) Pairs(ctx context.Context) ([]domain.PairInfo, error) {
	pools, err := m.pools.GetPools(ctx)
	if err != nil {
		return nil, m.storeErr("get pools", err)
	}

	pairs := make([]domain.PairInfo, 0, len(pools))
	for _, p := range pools {
		pairs = append(pairs, p.Pair())
	}
	return pairs, nil
}

// Tickers builds the normalized ticker set. An empty filter returns all
// pools.
func (m *Market) Tickers(ctx context.Context, poolFilter []int64) ([]domain.Ticker, error) {
	pools, err := m.pools.GetPools(ctx)
	if err != nil {
		return nil, m.storeErr("get pools", err)
	}
	traces, err := m.traces.GetTraces(ctx)
	if err != nil {
		return nil, m.storeErr("get traces", err)
	}
	latest, err := m.swaps.LatestPrices(ctx)
	if err != nil {
		return nil, m.storeErr("latest prices", err)
	}

	rates, prices, err := m.deriveRates(ctx, pools, latest, traces)
	if err != nil {
		return nil, err
	}

	volumes, err := m.windowVolumes(ctx)
	if err != nil {
		return nil, err
	}

	agg := ticker.NewAggregator(m.chain)
	tickers := agg.Build(ticker.Input{
		Pools:        pools,
		LatestPrices: latest,
		Traces:       traces,
		Volumes:      volumes,
		Rates:        rates,
		PriceIndex:   prices,
		PoolFilter:   poolFilter,
	})

	for poolID, err := range agg.Unroutable {
		m.logf("ticker for pool %d dropped: %v", poolID, err)
	}
	if m.metrics != nil {
		m.metrics.TickersBuilt.Add(float64(len(tickers)))
		m.metrics.UnroutableTickers.Add(float64(len(agg.Unroutable)))
	}
	return tickers, nil
}

// Summary builds the 24h windowed summary records.
func (m *Market) Summary(ctx context.Context, poolFilter []int64) ([]domain.SummaryRecord, error) {
	pools, err := m.pools.GetPools(ctx)
	if err != nil {
		return nil, m.storeErr("get pools", err)
	}

	var swaps []*domain.SwapEvent
	cutoff, err := m.swaps.CutoffHeight(ctx, m.now().Add(-m.window))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// Empty chain segment: the window holds no swaps and every
		// statistic stays null.
	case err != nil:
		return nil, m.storeErr("cutoff height", err)
	default:
		if swaps, err = m.swaps.Since(ctx, cutoff); err != nil {
			return nil, m.storeErr("swaps since cutoff", err)
		}
	}

	records := m.engine.BuildSummary(stats.Input{
		Pools:      pools,
		Swaps:      swaps,
		PoolFilter: poolFilter,
	})
	if m.metrics != nil {
		m.metrics.SummariesBuilt.Add(float64(len(records)))
	}
	return records, nil
}

// HistoricalTrades lists recent trades for a ticker id.
func (m *Market) HistoricalTrades(ctx context.Context, tickerID string, limit, offset int) ([]*domain.Trade, error) {
	trades, err := m.swaps.HistoricalTrades(ctx, tickerID, limit, offset)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			return nil, err
		}
		return nil, m.storeErr("historical trades", err)
	}
	return trades, nil
}

// deriveRates fetches the external rate set and derives the request
// conversion rates. Both failures are request-wide.
func (m *Market) deriveRates(ctx context.Context, pools []*domain.LiquidityPool, latest map[int64]float64, traces []domain.DenomTrace) (convert.Rates, *convert.PriceIndex, error) {
	external, err := m.feed.ExchangeRates(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.UpstreamErrors.WithLabelValues("feed").Inc()
		}
		return convert.Rates{}, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	prices := ticker.BuildPriceIndex(pools, latest, traces)
	rates, err := m.chain.DeriveRates(prices, external)
	if err != nil {
		return convert.Rates{}, nil, fmt.Errorf("derive rates: %w", err)
	}
	return rates, prices, nil
}

// windowVolumes fetches the two-sided volume sums for the lookback
// window; an empty chain segment yields no volumes.
func (m *Market) windowVolumes(ctx context.Context) ([]*domain.SwapVolume, error) {
	cutoff, err := m.swaps.CutoffHeight(ctx, m.now().Add(-m.window))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, m.storeErr("cutoff height", err)
	}

	volumes, err := m.swaps.VolumesSince(ctx, cutoff)
	if err != nil {
		return nil, m.storeErr("volumes since cutoff", err)
	}
	return volumes, nil
}

func (m *Market) storeErr(op string, err error) error {
	if m.metrics != nil {
		m.metrics.UpstreamErrors.WithLabelValues("store").Inc()
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

func (m *Market) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
