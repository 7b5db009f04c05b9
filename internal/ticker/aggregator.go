// Package ticker builds normalized ticker records from pool metadata,
// latest swap prices and swap-derived volumes.
package ticker

import (
	"math"

	"warp-markets/internal/convert"
	"warp-markets/internal/denom"
	"warp-markets/internal/domain"
)

// Aggregator joins pool rows with swap-derived data into tickers.
type Aggregator struct {
	chain *convert.Chain

	// Unroutable tracks pools whose ticker was dropped because a leg
	// could not be resolved or routed. Keyed by pool id; reset on each
	// Build call. Per-entity failures degrade the single ticker, not
	// the whole response.
	Unroutable map[int64]error
}

// NewAggregator creates an aggregator for the given conversion chain.
func NewAggregator(chain *convert.Chain) *Aggregator {
	return &Aggregator{
		chain:      chain,
		Unroutable: make(map[int64]error),
	}
}

// Input is the per-request row snapshot the aggregator folds.
type Input struct {
	Pools        []*domain.LiquidityPool
	LatestPrices map[int64]float64 // raw last swap price per pool
	Traces       []domain.DenomTrace
	Volumes      []*domain.SwapVolume // two-sided 24h sums per (pool, denom)
	Rates        convert.Rates
	PriceIndex   *convert.PriceIndex
	PoolFilter   []int64 // empty or nil returns all pools
}

// Build produces one ticker per pool. A pool without a latest swap
// yields a zero price and volumes, never an error; a pool whose legs
// cannot be resolved or routed is skipped and recorded in Unroutable.
// Output order is unspecified; callers needing determinism sort.
func (a *Aggregator) Build(in Input) []domain.Ticker {
	a.Unroutable = make(map[int64]error)

	allowed := allowSet(in.PoolFilter)
	volumes := volumeIndex(in.Volumes)

	tickers := make([]domain.Ticker, 0, len(in.Pools))
	for _, pool := range in.Pools {
		if allowed != nil {
			if _, ok := allowed[pool.PoolID]; !ok {
				continue
			}
		}

		t, err := a.buildOne(pool, in, volumes[pool.PoolID])
		if err != nil {
			a.Unroutable[pool.PoolID] = err
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers
}

func (a *Aggregator) buildOne(pool *domain.LiquidityPool, in Input, vols map[string]*domain.SwapVolume) (domain.Ticker, error) {
	baseExp, err := denom.Resolve(pool.BaseDenom, in.Traces)
	if err != nil {
		return domain.Ticker{}, err
	}
	quoteExp, err := denom.Resolve(pool.QuoteDenom, in.Traces)
	if err != nil {
		return domain.Ticker{}, err
	}

	t := domain.Ticker{
		PoolID:     pool.PoolID,
		BaseDenom:  pool.BaseDenom,
		QuoteDenom: pool.QuoteDenom,
		TickerID:   pool.TickerID(),
	}

	if raw, ok := in.LatestPrices[pool.PoolID]; ok {
		t.LastPrice = raw * math.Pow(10, float64(baseExp)) / math.Pow(10, float64(quoteExp))
	}

	baseNum, err := a.chain.AmountToNumeraire(
		pool.BaseLiquidity.Denom, pool.BaseLiquidity.Amount, baseExp, in.PriceIndex, in.Rates)
	if err != nil {
		return domain.Ticker{}, err
	}
	quoteNum, err := a.chain.AmountToNumeraire(
		pool.QuoteLiquidity.Denom, pool.QuoteLiquidity.Amount, quoteExp, in.PriceIndex, in.Rates)
	if err != nil {
		return domain.Ticker{}, err
	}
	t.LiquidityUSD = a.chain.NumeraireToUSD(baseNum+quoteNum, in.Rates)

	if v, ok := vols[pool.BaseDenom]; ok {
		t.BaseVolume24h = v.Total()
	}
	if v, ok := vols[pool.QuoteDenom]; ok {
		t.QuoteVolume24h = v.Total()
	}

	return t, nil
}

// allowSet converts the pool filter to a lookup set; nil means no filter.
func allowSet(filter []int64) map[int64]struct{} {
	if len(filter) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(filter))
	for _, id := range filter {
		set[id] = struct{}{}
	}
	return set
}

// volumeIndex groups volume rows by pool and denom.
func volumeIndex(rows []*domain.SwapVolume) map[int64]map[string]*domain.SwapVolume {
	idx := make(map[int64]map[string]*domain.SwapVolume)
	for _, row := range rows {
		byDenom, ok := idx[row.PoolID]
		if !ok {
			byDenom = make(map[string]*domain.SwapVolume)
			idx[row.PoolID] = byDenom
		}
		byDenom[row.Denom] = row
	}
	return idx
}
