package ticker

import (
	"errors"
	"math"
	"testing"

	"warp-markets/internal/convert"
	"warp-markets/internal/denom"
	"warp-markets/internal/domain"
)

// fixtureInput builds a three-pool market snapshot with a routable
// price index and derived rates.
func fixtureInput() Input {
	prices := convert.NewPriceIndex()
	prices.Put(convert.PairPrice{Base: "hydrogen", Quote: "boot", Raw: 0.5})
	prices.Put(convert.PairPrice{Base: "hydrogen", Quote: "uatom", Raw: 200000, QuoteExp: -6})
	prices.Put(convert.PairPrice{Base: "hydrogen", Quote: "tocyb", Raw: 4})

	return Input{
		Pools: []*domain.LiquidityPool{
			{
				PoolID: 1, BaseDenom: "hydrogen", QuoteDenom: "boot",
				BaseLiquidity:  domain.Coin{Denom: "hydrogen", Amount: 10},
				QuoteLiquidity: domain.Coin{Denom: "boot", Amount: 5},
			},
			{
				PoolID: 2, BaseDenom: "tocyb", QuoteDenom: "boot",
				BaseLiquidity:  domain.Coin{Denom: "tocyb", Amount: 8},
				QuoteLiquidity: domain.Coin{Denom: "boot", Amount: 1},
			},
			{
				PoolID: 3, BaseDenom: "uatom", QuoteDenom: "boot",
				BaseLiquidity:  domain.Coin{Denom: "uatom", Amount: 2e17},
				QuoteLiquidity: domain.Coin{Denom: "boot", Amount: 3.5},
			},
		},
		LatestPrices: map[int64]float64{1: 0.5, 2: 0.25, 3: 4e6},
		Volumes: []*domain.SwapVolume{
			{PoolID: 1, Denom: "hydrogen", OfferAmount: 100, DemandAmount: 50},
			{PoolID: 1, Denom: "boot", OfferAmount: 30, DemandAmount: 20},
		},
		Rates:      convert.Rates{BridgeToNumeraire: 0.5, NumeraireUSD: 4},
		PriceIndex: prices,
	}
}

func findTicker(t *testing.T, tickers []domain.Ticker, poolID int64) domain.Ticker {
	t.Helper()
	for _, tk := range tickers {
		if tk.PoolID == poolID {
			return tk
		}
	}
	t.Fatalf("No ticker for pool %d", poolID)
	return domain.Ticker{}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuild(t *testing.T) {
	agg := NewAggregator(convert.NewChain())
	tickers := agg.Build(fixtureInput())

	if len(tickers) != 3 {
		t.Fatalf("Expected 3 tickers, got %d", len(tickers))
	}
	if len(agg.Unroutable) != 0 {
		t.Fatalf("Expected no unroutable pools, got %v", agg.Unroutable)
	}

	tk := findTicker(t, tickers, 1)
	if tk.TickerID != "hydrogen_boot" {
		t.Errorf("Expected ticker id hydrogen_boot, got %s", tk.TickerID)
	}
	if !almostEqual(tk.LastPrice, 0.5) {
		t.Errorf("Expected last price 0.5, got %g", tk.LastPrice)
	}
	// 10 hydrogen = 5 boot, plus 5 boot, at 4 USD per boot.
	if !almostEqual(tk.LiquidityUSD, 40) {
		t.Errorf("Expected liquidity 40 USD, got %g", tk.LiquidityUSD)
	}
	if !almostEqual(tk.BaseVolume24h, 150) {
		t.Errorf("Expected base volume 150, got %g", tk.BaseVolume24h)
	}
	if !almostEqual(tk.QuoteVolume24h, 50) {
		t.Errorf("Expected quote volume 50, got %g", tk.QuoteVolume24h)
	}
}

func TestBuild_ExponentCorrectedPrice(t *testing.T) {
	agg := NewAggregator(convert.NewChain())
	tickers := agg.Build(fixtureInput())

	// Raw 4e6 scaled by the micro base leg.
	tk := findTicker(t, tickers, 3)
	if !almostEqual(tk.LastPrice, 4) {
		t.Errorf("Expected last price 4, got %g", tk.LastPrice)
	}
	// 2e17 raw uatom routes through hydrogen/uatom to 0.5 boot, plus
	// 3.5 boot, at 4 USD per boot.
	if !almostEqual(tk.LiquidityUSD, 16) {
		t.Errorf("Expected liquidity 16 USD, got %g", tk.LiquidityUSD)
	}
}

func TestBuild_PoolFilter(t *testing.T) {
	agg := NewAggregator(convert.NewChain())

	in := fixtureInput()
	in.PoolFilter = []int64{2}
	tickers := agg.Build(in)

	if len(tickers) != 1 {
		t.Fatalf("Expected 1 ticker, got %d", len(tickers))
	}
	if tickers[0].PoolID != 2 {
		t.Errorf("Expected pool 2, got %d", tickers[0].PoolID)
	}

	// Filtering for a pool that does not exist returns nothing.
	in.PoolFilter = []int64{42}
	if tickers := agg.Build(in); len(tickers) != 0 {
		t.Errorf("Expected no tickers, got %d", len(tickers))
	}
}

func TestBuild_NoLatestSwap(t *testing.T) {
	agg := NewAggregator(convert.NewChain())

	in := fixtureInput()
	delete(in.LatestPrices, 1)
	tickers := agg.Build(in)

	tk := findTicker(t, tickers, 1)
	if tk.LastPrice != 0 {
		t.Errorf("Expected zero price without a latest swap, got %g", tk.LastPrice)
	}
	// Liquidity is still valued.
	if !almostEqual(tk.LiquidityUSD, 40) {
		t.Errorf("Expected liquidity 40 USD, got %g", tk.LiquidityUSD)
	}
}

func TestBuild_ScaleInvariance(t *testing.T) {
	agg := NewAggregator(convert.NewChain())
	base := agg.Build(fixtureInput())

	// Scaling every liquidity leg by a common factor while dividing the
	// USD rate by the same factor must not move the valuations.
	const scale = 1e3
	in := fixtureInput()
	for _, p := range in.Pools {
		p.BaseLiquidity.Amount *= scale
		p.QuoteLiquidity.Amount *= scale
	}
	in.Rates.NumeraireUSD /= scale
	scaled := agg.Build(in)

	if len(scaled) != len(base) {
		t.Fatalf("Expected %d tickers, got %d", len(base), len(scaled))
	}
	for _, want := range base {
		got := findTicker(t, scaled, want.PoolID)
		if !almostEqual(got.LiquidityUSD, want.LiquidityUSD) {
			t.Errorf("Pool %d liquidity moved: %g vs %g", want.PoolID, got.LiquidityUSD, want.LiquidityUSD)
		}
		if !almostEqual(got.LastPrice, want.LastPrice) {
			t.Errorf("Pool %d last price moved: %g vs %g", want.PoolID, got.LastPrice, want.LastPrice)
		}
	}
}

func TestBuild_UnroutableRecorded(t *testing.T) {
	agg := NewAggregator(convert.NewChain())

	in := fixtureInput()
	in.Pools = append(in.Pools,
		// Unknown trace reference.
		&domain.LiquidityPool{
			PoolID: 8, BaseDenom: "ibc/DEADBEEF", QuoteDenom: "boot",
			BaseLiquidity:  domain.Coin{Denom: "ibc/DEADBEEF", Amount: 1},
			QuoteLiquidity: domain.Coin{Denom: "boot", Amount: 1},
		},
		// Resolvable but no hydrogen-quoted ticker to route through.
		&domain.LiquidityPool{
			PoolID: 9, BaseDenom: "zzz", QuoteDenom: "boot",
			BaseLiquidity:  domain.Coin{Denom: "zzz", Amount: 1},
			QuoteLiquidity: domain.Coin{Denom: "boot", Amount: 1},
		},
	)
	tickers := agg.Build(in)

	// The bad pools degrade individually, the rest still build.
	if len(tickers) != 3 {
		t.Fatalf("Expected 3 tickers, got %d", len(tickers))
	}
	if !errors.Is(agg.Unroutable[8], denom.ErrMissingTrace) {
		t.Errorf("Expected ErrMissingTrace for pool 8, got %v", agg.Unroutable[8])
	}
	if !errors.Is(agg.Unroutable[9], convert.ErrUnroutablePrice) {
		t.Errorf("Expected ErrUnroutablePrice for pool 9, got %v", agg.Unroutable[9])
	}
}

func TestBuildPriceIndex(t *testing.T) {
	pools := []*domain.LiquidityPool{
		{PoolID: 1, BaseDenom: "hydrogen", QuoteDenom: "boot"},
		{PoolID: 2, BaseDenom: "hydrogen", QuoteDenom: "ibc/ABCD"},
		{PoolID: 3, BaseDenom: "hydrogen", QuoteDenom: "ibc/MISSING"},
		{PoolID: 4, BaseDenom: "tocyb", QuoteDenom: "boot"},
	}
	latest := map[int64]float64{1: 0.5, 2: 200000, 3: 1, 4: 0}
	traces := []domain.DenomTrace{{DenomHash: "ABCD", BaseDenom: "uatom"}}

	idx := BuildPriceIndex(pools, latest, traces)

	p, ok := idx.Get("hydrogen", "boot")
	if !ok || p.Raw != 0.5 {
		t.Errorf("Expected hydrogen/boot at 0.5, got %+v ok=%v", p, ok)
	}

	// Trace-referenced quote leg keeps the raw denom as the pair key
	// but carries the resolved exponent.
	p, ok = idx.Get("hydrogen", "ibc/ABCD")
	if !ok {
		t.Fatal("Expected hydrogen/ibc pair to be indexed")
	}
	if p.QuoteExp != -6 {
		t.Errorf("Expected quote exponent -6, got %d", p.QuoteExp)
	}

	// Unresolvable or zero-priced pools are left out.
	if _, ok := idx.Get("hydrogen", "ibc/MISSING"); ok {
		t.Error("Unresolvable pair should be skipped")
	}
	if _, ok := idx.Get("tocyb", "boot"); ok {
		t.Error("Zero-priced pair should be skipped")
	}
}
