package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"warp-markets/internal/domain"
	"warp-markets/internal/storage"
)

func seedStore(t *testing.T) *MarketStore {
	t.Helper()
	store := NewMarketStore()

	err := store.AddPool(&domain.LiquidityPool{
		PoolID: 1, BaseDenom: "hydrogen", QuoteDenom: "boot",
	})
	if err != nil {
		t.Fatalf("AddPool failed: %v", err)
	}
	err = store.AddPool(&domain.LiquidityPool{
		PoolID: 2, BaseDenom: "uatom", QuoteDenom: "boot",
	})
	if err != nil {
		t.Fatalf("AddPool failed: %v", err)
	}
	return store
}

func TestMarketStore_AddPool_Invalid(t *testing.T) {
	store := NewMarketStore()

	err := store.AddPool(&domain.LiquidityPool{PoolID: 1, BaseDenom: "boot", QuoteDenom: "boot"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for equal legs, got %v", err)
	}
	if err := store.AddPool(nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil pool, got %v", err)
	}
}

func TestMarketStore_GetPools(t *testing.T) {
	store := seedStore(t)

	pools, err := store.GetPools(context.Background())
	if err != nil {
		t.Fatalf("GetPools failed: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("Expected 2 pools, got %d", len(pools))
	}
	if pools[0].PoolID != 1 || pools[1].PoolID != 2 {
		t.Error("Expected pools ordered by id")
	}
}

func TestMarketStore_GetTraces(t *testing.T) {
	store := NewMarketStore()
	store.AddTrace(domain.DenomTrace{DenomHash: "ABCD", BaseDenom: "uatom"})

	traces, err := store.GetTraces(context.Background())
	if err != nil {
		t.Fatalf("GetTraces failed: %v", err)
	}
	if len(traces) != 1 || traces[0].BaseDenom != "uatom" {
		t.Errorf("Unexpected traces: %+v", traces)
	}
}

func TestMarketStore_LatestPrices(t *testing.T) {
	store := seedStore(t)
	now := time.Now()

	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 100, MsgIndex: 0, Success: true, SwapPrice: 1.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 100, MsgIndex: 1, Success: true, SwapPrice: 2.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 99, MsgIndex: 5, Success: true, SwapPrice: 3.0}, now)
	// Failed swaps never price.
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 200, MsgIndex: 0, Success: false, SwapPrice: 9.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 2, BlockHeight: 50, MsgIndex: 0, Success: false, SwapPrice: 5.0}, now)

	prices, err := store.LatestPrices(context.Background())
	if err != nil {
		t.Fatalf("LatestPrices failed: %v", err)
	}
	if prices[1] != 2.0 {
		t.Errorf("Expected latest price 2.0 for pool 1, got %g", prices[1])
	}
	if _, ok := prices[2]; ok {
		t.Error("Pool 2 has no successful swap, expected no price")
	}
}

func TestMarketStore_VolumesSince(t *testing.T) {
	store := seedStore(t)
	now := time.Now()

	store.AddSwap(domain.SwapEvent{
		PoolID: 1, BlockHeight: 100, Success: true,
		OfferDenom: "hydrogen", OfferAmount: 10,
		DemandDenom: "boot", DemandAmount: 5,
	}, now)
	store.AddSwap(domain.SwapEvent{
		PoolID: 1, BlockHeight: 110, Success: true,
		OfferDenom: "boot", OfferAmount: 4,
		DemandDenom: "hydrogen", DemandAmount: 8,
	}, now)
	// Below the cutoff.
	store.AddSwap(domain.SwapEvent{
		PoolID: 1, BlockHeight: 50, Success: true,
		OfferDenom: "hydrogen", OfferAmount: 100,
		DemandDenom: "boot", DemandAmount: 100,
	}, now)

	volumes, err := store.VolumesSince(context.Background(), 50)
	if err != nil {
		t.Fatalf("VolumesSince failed: %v", err)
	}
	if len(volumes) != 2 {
		t.Fatalf("Expected 2 volume rows, got %d", len(volumes))
	}

	// Sorted by (pool, denom): boot first.
	boot, hydrogen := volumes[0], volumes[1]
	if boot.Denom != "boot" || boot.OfferAmount != 4 || boot.DemandAmount != 5 {
		t.Errorf("Unexpected boot volume row: %+v", boot)
	}
	if hydrogen.Total() != 18 {
		t.Errorf("Expected hydrogen total 18, got %g", hydrogen.Total())
	}
}

func TestMarketStore_Since(t *testing.T) {
	store := seedStore(t)
	now := time.Now()

	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 120, MsgIndex: 0, Success: true, SwapPrice: 2.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 100, MsgIndex: 1, Success: true, SwapPrice: 1.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 100, MsgIndex: 0, Success: true, SwapPrice: 3.0}, now)
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 90, MsgIndex: 0, Success: true, SwapPrice: 5.0}, now)

	events, err := store.Since(context.Background(), 90)
	if err != nil {
		t.Fatalf("Since failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].SwapPrice != 3.0 || events[1].SwapPrice != 1.0 || events[2].SwapPrice != 2.0 {
		t.Error("Expected events ordered by (height, msg index)")
	}
}

func TestMarketStore_CutoffHeight(t *testing.T) {
	store := seedStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 100, Success: true}, base.Add(-48*time.Hour))
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 200, Success: true}, base.Add(-12*time.Hour))
	store.AddSwap(domain.SwapEvent{PoolID: 1, BlockHeight: 300, Success: true}, base.Add(-1*time.Hour))

	cutoff, err := store.CutoffHeight(context.Background(), base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CutoffHeight failed: %v", err)
	}
	if cutoff != 200 {
		t.Errorf("Expected cutoff 200, got %d", cutoff)
	}

	_, err = store.CutoffHeight(context.Background(), base)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMarketStore_HistoricalTrades(t *testing.T) {
	store := seedStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Sell of the base asset, then a buy one block later.
	store.AddSwap(domain.SwapEvent{
		PoolID: 1, BlockHeight: 100, Success: true,
		OfferDenom: "hydrogen", OfferAmount: 10,
		DemandDenom: "boot", DemandAmount: 5,
		SwapPrice: 0.5,
	}, base)
	store.AddSwap(domain.SwapEvent{
		PoolID: 1, BlockHeight: 101, Success: true,
		OfferDenom: "boot", OfferAmount: 3,
		DemandDenom: "hydrogen", DemandAmount: 6,
		SwapPrice: 0.5,
	}, base.Add(time.Minute))
	// Other pool, never returned for this ticker.
	store.AddSwap(domain.SwapEvent{
		PoolID: 2, BlockHeight: 102, Success: true,
		OfferDenom: "uatom", OfferAmount: 1,
		DemandDenom: "boot", DemandAmount: 1,
		SwapPrice: 1.0,
	}, base.Add(2*time.Minute))

	trades, err := store.HistoricalTrades(context.Background(), "hydrogen_boot", 10, 0)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(trades))
	}

	// Newest first.
	if trades[0].Type != domain.TradeSideBuy {
		t.Errorf("Expected newest trade to be a buy, got %s", trades[0].Type)
	}
	if trades[0].BaseVolume != 6 || trades[0].TargetVolume != 3 {
		t.Errorf("Unexpected buy volumes: %+v", trades[0])
	}
	if trades[1].Type != domain.TradeSideSell {
		t.Errorf("Expected oldest trade to be a sell, got %s", trades[1].Type)
	}
	if trades[1].BaseVolume != 10 || trades[1].TargetVolume != 5 {
		t.Errorf("Unexpected sell volumes: %+v", trades[1])
	}

	// Pagination.
	trades, err = store.HistoricalTrades(context.Background(), "hydrogen_boot", 1, 1)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if len(trades) != 1 || trades[0].Type != domain.TradeSideSell {
		t.Errorf("Expected the older sell at offset 1, got %+v", trades)
	}

	trades, err = store.HistoricalTrades(context.Background(), "hydrogen_boot", 10, 5)
	if err != nil {
		t.Fatalf("HistoricalTrades failed: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("Expected no trades past the end, got %d", len(trades))
	}
}

func TestMarketStore_HistoricalTrades_InvalidInput(t *testing.T) {
	store := seedStore(t)

	if _, err := store.HistoricalTrades(context.Background(), "hydrogen_boot", -1, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative limit, got %v", err)
	}
	if _, err := store.HistoricalTrades(context.Background(), "hydrogen_boot", 0, -1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative offset, got %v", err)
	}
}
