// Package memory provides an in-memory market store for unit tests and
// the --use-memory server mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"warp-markets/internal/domain"
	"warp-markets/internal/storage"
)

// MarketStore is an in-memory implementation of storage.PoolStore,
// storage.TraceStore and storage.SwapStore.
type MarketStore struct {
	mu      sync.RWMutex
	pools   map[int64]*domain.LiquidityPool
	traces  []domain.DenomTrace
	swaps   []swapRow
	heights map[int64]time.Time // block height -> block time
}

type swapRow struct {
	event domain.SwapEvent
	at    time.Time
}

// NewMarketStore creates an empty in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		pools:   make(map[int64]*domain.LiquidityPool),
		heights: make(map[int64]time.Time),
	}
}

// Interface checks.
var (
	_ storage.PoolStore  = (*MarketStore)(nil)
	_ storage.TraceStore = (*MarketStore)(nil)
	_ storage.SwapStore  = (*MarketStore)(nil)
)

// AddPool stores or replaces a pool row.
func (s *MarketStore) AddPool(p *domain.LiquidityPool) error {
	if p == nil || p.BaseDenom == p.QuoteDenom {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.pools[p.PoolID] = &cp
	return nil
}

// AddTrace stores a denom trace row.
func (s *MarketStore) AddTrace(t domain.DenomTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, t)
}

// AddSwap stores a swap event with its block time.
func (s *MarketStore) AddSwap(e domain.SwapEvent, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swaps = append(s.swaps, swapRow{event: e, at: at})
	if cur, ok := s.heights[e.BlockHeight]; !ok || at.Before(cur) {
		s.heights[e.BlockHeight] = at
	}
}

// GetPools retrieves the current snapshot of all pools.
func (s *MarketStore) GetPools(_ context.Context) ([]*domain.LiquidityPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]*domain.LiquidityPool, 0, len(s.pools))
	for _, p := range s.pools {
		cp := *p
		pools = append(pools, &cp)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].PoolID < pools[j].PoolID })
	return pools, nil
}

// GetTraces retrieves all denom traces.
func (s *MarketStore) GetTraces(_ context.Context) ([]domain.DenomTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	traces := make([]domain.DenomTrace, len(s.traces))
	copy(traces, s.traces)
	return traces, nil
}

// LatestPrices retrieves the raw price of the most recent successful
// swap per pool.
func (s *MarketStore) LatestPrices(_ context.Context) (map[int64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pos struct {
		height   int64
		msgIndex int
	}
	latest := make(map[int64]pos)
	prices := make(map[int64]float64)

	for _, row := range s.swaps {
		e := row.event
		if !e.Success {
			continue
		}
		cur, seen := latest[e.PoolID]
		if !seen || e.BlockHeight > cur.height ||
			(e.BlockHeight == cur.height && e.MsgIndex > cur.msgIndex) {
			latest[e.PoolID] = pos{e.BlockHeight, e.MsgIndex}
			prices[e.PoolID] = e.SwapPrice
		}
	}
	return prices, nil
}

// VolumesSince retrieves per-(pool, denom) offer and demand sums for
// successful swaps at height > after.
func (s *MarketStore) VolumesSince(_ context.Context, after int64) ([]*domain.SwapVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		poolID int64
		denom  string
	}
	sums := make(map[key]*domain.SwapVolume)
	add := func(poolID int64, denom string) *domain.SwapVolume {
		k := key{poolID, denom}
		v, ok := sums[k]
		if !ok {
			v = &domain.SwapVolume{PoolID: poolID, Denom: denom}
			sums[k] = v
		}
		return v
	}

	for _, row := range s.swaps {
		e := row.event
		if !e.Success || e.BlockHeight <= after {
			continue
		}
		add(e.PoolID, e.OfferDenom).OfferAmount += e.OfferAmount
		add(e.PoolID, e.DemandDenom).DemandAmount += e.DemandAmount
	}

	volumes := make([]*domain.SwapVolume, 0, len(sums))
	for _, v := range sums {
		volumes = append(volumes, v)
	}
	sort.Slice(volumes, func(i, j int) bool {
		if volumes[i].PoolID != volumes[j].PoolID {
			return volumes[i].PoolID < volumes[j].PoolID
		}
		return volumes[i].Denom < volumes[j].Denom
	})
	return volumes, nil
}

// Since retrieves successful swaps at height > after ordered by height
// and msg index.
func (s *MarketStore) Since(_ context.Context, after int64) ([]*domain.SwapEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*domain.SwapEvent
	for _, row := range s.swaps {
		e := row.event
		if !e.Success || e.BlockHeight <= after {
			continue
		}
		cp := e
		events = append(events, &cp)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockHeight != events[j].BlockHeight {
			return events[i].BlockHeight < events[j].BlockHeight
		}
		return events[i].MsgIndex < events[j].MsgIndex
	})
	return events, nil
}

// CutoffHeight returns the smallest height whose block time is after
// since, or ErrNotFound when the chain segment is empty.
func (s *MarketStore) CutoffHeight(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  int64
		found bool
	)
	for height, at := range s.heights {
		if !at.After(since) {
			continue
		}
		if !found || height < best {
			best, found = height, true
		}
	}
	if !found {
		return 0, storage.ErrNotFound
	}
	return best, nil
}

// HistoricalTrades retrieves trades for a ticker id, newest first.
func (s *MarketStore) HistoricalTrades(_ context.Context, tickerID string, limit, offset int) ([]*domain.Trade, error) {
	if limit < 0 || offset < 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	poolIDs := make(map[int64]string) // pool id -> base denom
	for _, p := range s.pools {
		if p.TickerID() == tickerID {
			poolIDs[p.PoolID] = p.BaseDenom
		}
	}

	var trades []*domain.Trade
	for i, row := range s.swaps {
		e := row.event
		base, ok := poolIDs[e.PoolID]
		if !ok || !e.Success {
			continue
		}
		t := &domain.Trade{
			TradeID:   int64(i) + 1,
			Price:     e.SwapPrice,
			TradeTime: row.at.Unix(),
			Type:      e.Side(base),
		}
		if t.Type == domain.TradeSideSell {
			t.BaseVolume, t.TargetVolume = e.OfferAmount, e.DemandAmount
		} else {
			t.BaseVolume, t.TargetVolume = e.DemandAmount, e.OfferAmount
		}
		trades = append(trades, t)
	}

	// Newest first
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].TradeTime > trades[j].TradeTime })

	if offset >= len(trades) {
		return nil, nil
	}
	trades = trades[offset:]
	if limit > 0 && limit < len(trades) {
		trades = trades[:limit]
	}
	return trades, nil
}
