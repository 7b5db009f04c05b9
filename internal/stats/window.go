// Package stats folds successful swap events inside a 24-hour block
// window into per-pool summary records.
package stats

import (
	"math"
	"sort"

	"warp-markets/internal/domain"
)

// Engine computes windowed summary statistics.
type Engine struct{}

// NewEngine creates a stats engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Input is the per-request snapshot the engine folds. Swaps are the
// successful events strictly after the window cutoff height; an empty
// slice means an empty window and yields all-nil price statistics.
type Input struct {
	Pools      []*domain.LiquidityPool
	Swaps      []*domain.SwapEvent
	PoolFilter []int64 // empty or nil returns all pools
}

// BuildSummary produces one summary record per pool. Within a pool the
// events are ordered by block height, ties broken by msg index, so the
// first and last prices are deterministic.
func (e *Engine) BuildSummary(in Input) []domain.SummaryRecord {
	allowed := allowSet(in.PoolFilter)
	byPool := groupByPool(in.Swaps)

	records := make([]domain.SummaryRecord, 0, len(in.Pools))
	for _, pool := range in.Pools {
		if allowed != nil {
			if _, ok := allowed[pool.PoolID]; !ok {
				continue
			}
		}
		records = append(records, summarize(pool, byPool[pool.PoolID]))
	}
	return records
}

// summarize folds one pool's windowed swaps into a summary record.
func summarize(pool *domain.LiquidityPool, swaps []*domain.SwapEvent) domain.SummaryRecord {
	rec := domain.SummaryRecord{
		PoolID:     pool.PoolID,
		TickerID:   pool.TickerID(),
		BaseDenom:  pool.BaseDenom,
		QuoteDenom: pool.QuoteDenom,
	}

	for _, s := range swaps {
		if !s.Success {
			continue
		}

		price := s.SwapPrice
		if rec.FirstPrice == nil {
			rec.FirstPrice = ptr(price)
		}
		rec.LastPrice = ptr(price)

		if rec.HighestPrice24h == nil || price > *rec.HighestPrice24h {
			rec.HighestPrice24h = ptr(price)
		}
		if rec.LowestPrice24h == nil || price < *rec.LowestPrice24h {
			rec.LowestPrice24h = ptr(price)
		}

		switch s.Side(pool.BaseDenom) {
		case domain.TradeSideSell:
			// Base asset is being offered.
			rec.BaseVolume24h += s.OfferAmount
			rec.QuoteVolume24h += s.DemandAmount
			if rec.HighestBid == nil || price > *rec.HighestBid {
				rec.HighestBid = ptr(price)
			}
		case domain.TradeSideBuy:
			rec.BaseVolume24h += s.DemandAmount
			rec.QuoteVolume24h += s.OfferAmount
			if rec.LowestAsk == nil || price < *rec.LowestAsk {
				rec.LowestAsk = ptr(price)
			}
		}
	}

	rec.PercentChange = percentChange(rec.FirstPrice, rec.LastPrice)
	return rec
}

// percentChange reports the unsigned percent move between first and
// last price, 0 when either is absent or zero.
func percentChange(first, last *float64) float64 {
	if first == nil || last == nil || *first == 0 || *last == 0 {
		return 0
	}
	return math.Abs(*last / *first - 1) * 100
}

// groupByPool buckets swaps per pool ordered by (height, msg index).
func groupByPool(swaps []*domain.SwapEvent) map[int64][]*domain.SwapEvent {
	byPool := make(map[int64][]*domain.SwapEvent)
	for _, s := range swaps {
		byPool[s.PoolID] = append(byPool[s.PoolID], s)
	}
	for _, events := range byPool {
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].BlockHeight != events[j].BlockHeight {
				return events[i].BlockHeight < events[j].BlockHeight
			}
			return events[i].MsgIndex < events[j].MsgIndex
		})
	}
	return byPool
}

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

func ptr(v float64) *float64 { return &v }
