package domain

// Ticker is one trading pair's normalized market statistics, built fresh
// per request. LastPrice is exponent-corrected; LiquidityUSD is valued
// through the numeraire conversion chain.
type Ticker struct {
	PoolID         int64   `json:"pool_id"`
	BaseDenom      string  `json:"base_currency"`
	QuoteDenom     string  `json:"target_currency"`
	TickerID       string  `json:"ticker_id"`
	LastPrice      float64 `json:"last_price"`
	LiquidityUSD   float64 `json:"liquidity_in_usd"`
	BaseVolume24h  float64 `json:"base_volume"`
	QuoteVolume24h float64 `json:"target_volume"`
}

// SummaryRecord extends the ticker view with 24h windowed statistics.
// Price fields are nil when no swap fell inside the window.
type SummaryRecord struct {
	PoolID          int64    `json:"pool_id"`
	TickerID        string   `json:"trading_pairs"`
	BaseDenom       string   `json:"base_currency"`
	QuoteDenom      string   `json:"quote_currency"`
	FirstPrice      *float64 `json:"first_price"`
	LastPrice       *float64 `json:"last_price"`
	HighestPrice24h *float64 `json:"highest_price_24h"`
	LowestPrice24h  *float64 `json:"lowest_price_24h"`
	HighestBid      *float64 `json:"highest_bid"`
	LowestAsk       *float64 `json:"lowest_ask"`
	BaseVolume24h   float64  `json:"base_volume"`
	QuoteVolume24h  float64  `json:"quote_volume"`
	PercentChange   float64  `json:"price_change_percent_24h"`
}

// Trade is one historical swap as served by /historical_trades/.
type Trade struct {
	TradeID      int64   `json:"trade_id"`
	Price        float64 `json:"price"`
	BaseVolume   float64 `json:"base_volume"`
	TargetVolume float64 `json:"target_volume"`
	TradeTime    int64   `json:"trade_timestamp"` // unix seconds
	Type         string  `json:"type"`            // buy | sell
}
