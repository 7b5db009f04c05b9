package domain

// Coin is a token amount together with its denomination.
type Coin struct {
	Denom  string  `json:"denom"`
	Amount float64 `json:"amount"`
}

// LiquidityPool represents one on-chain liquidity pool row.
// Corresponds to the liquidity_pool table in ClickHouse (FINAL rows).
type LiquidityPool struct {
	PoolID         int64  // unique, stable pool identifier
	BaseDenom      string // denom of the base leg
	QuoteDenom     string // denom of the quote leg
	BaseLiquidity  Coin   // current base-side reserve
	QuoteLiquidity Coin   // current quote-side reserve
}

// TickerID returns the pair identity in base_quote form.
// Unique per PoolID; the reverse is not guaranteed in degenerate data.
func (p *LiquidityPool) TickerID() string {
	return p.BaseDenom + "_" + p.QuoteDenom
}

// PairInfo is the listing view of a pool, as served by /pairs/.
type PairInfo struct {
	Base     string `json:"base"`
	Target   string `json:"target"`
	PoolID   int64  `json:"pool_id"`
	TickerID string `json:"ticker_id"`
}

// Pair returns the listing view of the pool.
func (p *LiquidityPool) Pair() PairInfo {
	return PairInfo{
		Base:     p.BaseDenom,
		Target:   p.QuoteDenom,
		PoolID:   p.PoolID,
		TickerID: p.TickerID(),
	}
}
