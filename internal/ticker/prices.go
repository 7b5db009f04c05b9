package ticker

import (
	"warp-markets/internal/convert"
	"warp-markets/internal/denom"
	"warp-markets/internal/domain"
)

// BuildPriceIndex indexes the raw last swap price of every pool by its
// pair, annotated with both legs' exponents. Pools without a latest
// swap or with unresolvable legs are left out; routing through them
// later surfaces as ErrUnroutablePrice per affected ticker.
func BuildPriceIndex(pools []*domain.LiquidityPool, latestPrices map[int64]float64, traces []domain.DenomTrace) *convert.PriceIndex {
	idx := convert.NewPriceIndex()
	for _, pool := range pools {
		raw, ok := latestPrices[pool.PoolID]
		if !ok || raw == 0 {
			continue
		}
		baseExp, err := denom.Resolve(pool.BaseDenom, traces)
		if err != nil {
			continue
		}
		quoteExp, err := denom.Resolve(pool.QuoteDenom, traces)
		if err != nil {
			continue
		}
		idx.Put(convert.PairPrice{
			Base:     pool.BaseDenom,
			Quote:    pool.QuoteDenom,
			Raw:      raw,
			BaseExp:  baseExp,
			QuoteExp: quoteExp,
		})
	}
	return idx
}
