package domain

// SwapEvent represents one raw swap message emitted by a pool.
// Corresponds to the swap table in ClickHouse. BlockHeight is the logical
// ordering key; MsgIndex orders events within a block.
type SwapEvent struct {
	PoolID       int64   // pool the swap executed against
	BlockHeight  int64   // monotonically increasing logical timestamp
	MsgIndex     int     // per-block ordering
	Success      bool    // only successful swaps participate in pricing/volume
	OfferDenom   string  // denom offered by the trader
	OfferAmount  float64 // raw offered amount
	DemandDenom  string  // denom demanded by the trader
	DemandAmount float64 // raw demanded amount
	SwapPrice    float64 // quote-per-base ratio at execution
}

// Trade side constants. A swap is a sell of the pool's base asset when
// the offer denom equals the pool's base denom, otherwise a buy.
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Side classifies the swap direction relative to the pool's base denom.
func (s *SwapEvent) Side(baseDenom string) string {
	if s.OfferDenom == baseDenom {
		return TradeSideSell
	}
	return TradeSideBuy
}

// SwapVolume is a pre-aggregated volume row: the sums of offer-side and
// demand-side amounts for one (pool, denom) since a block height. A denom
// may appear on either side across events, so both sums matter.
type SwapVolume struct {
	PoolID       int64
	Denom        string
	OfferAmount  float64 // sum of offer amounts where offer_denom == Denom
	DemandAmount float64 // sum of demand amounts where demand_denom == Denom
}

// Total returns the merged two-sided volume for the denom.
func (v *SwapVolume) Total() float64 {
	return v.OfferAmount + v.DemandAmount
}
