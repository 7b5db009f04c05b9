// Package convert expresses amounts and prices quoted in arbitrary
// denominations in the protocol numeraire and in USD. The route is a
// fixed policy, not general price routing: every denomination reaches
// the numeraire in at most two hops through the bridge symbol, and the
// numeraire reaches USD through one external reference rate.
package convert

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnroutablePrice is returned when the chain cannot find an
// intermediate ticker needed to reach the numeraire or USD.
var ErrUnroutablePrice = errors.New("no intermediate ticker to route price")

// Default chain symbols for the warp protocol.
const (
	DefaultNumeraire    = "boot"
	DefaultBridge       = "hydrogen"
	DefaultSecondBridge = "uatom"
	DefaultFeedSymbol   = "ATOM"
)

// StepKind tags one conversion step of the fixed route.
type StepKind int

const (
	// DirectStep: the denom already is the numeraire.
	DirectStep StepKind = iota
	// BridgeStep: the denom is the bridge symbol; one rate multiply.
	BridgeStep
	// TwoHopStep: denom -> bridge via a bridge-quoted ticker, then
	// bridge -> numeraire.
	TwoHopStep
)

// Step is one named hop of the conversion pipeline.
type Step struct {
	Kind StepKind
	Via  string // intermediate symbol for TwoHopStep, "" otherwise
}

// Rates are the per-request conversion rates derived once and shared by
// all conversions within that request.
type Rates struct {
	BridgeToNumeraire float64 // numeraire units per bridge unit
	NumeraireUSD      float64 // USD per numeraire unit
}

// RateSource yields the external reference rate for a feed symbol.
type RateSource interface {
	Price(symbol string) (float64, error)
}

// PairPrice is the raw last swap price of one pool pair together with
// both legs' scaling exponents.
type PairPrice struct {
	Base     string
	Quote    string
	Raw      float64
	BaseExp  int
	QuoteExp int
}

// Corrected returns the exponent-corrected (human-scale) price.
func (p PairPrice) Corrected() float64 {
	return p.Raw * math.Pow(10, float64(p.BaseExp)) / math.Pow(10, float64(p.QuoteExp))
}

// PriceIndex looks up pair prices by (base, quote). Built per request
// from pool metadata and latest swap prices; when degenerate data maps
// one pair to several pools the last inserted pool wins.
type PriceIndex struct {
	byPair map[string]PairPrice
}

// NewPriceIndex creates an empty index.
func NewPriceIndex() *PriceIndex {
	return &PriceIndex{byPair: make(map[string]PairPrice)}
}

// Put records a pair price.
func (idx *PriceIndex) Put(p PairPrice) {
	idx.byPair[p.Base+"_"+p.Quote] = p
}

// Get returns the pair price for (base, quote).
func (idx *PriceIndex) Get(base, quote string) (PairPrice, bool) {
	p, ok := idx.byPair[base+"_"+quote]
	return p, ok
}

// Chain is the fixed conversion pipeline for one numeraire/bridge policy.
type Chain struct {
	Numeraire    string // protocol native token
	Bridge       string // intermediate quote currency of most pairs
	SecondBridge string // asset bridging to the external fiat rate
	FeedSymbol   string // external feed symbol of the second bridge
}

// NewChain creates a chain with the default warp symbols.
func NewChain() *Chain {
	return &Chain{
		Numeraire:    DefaultNumeraire,
		Bridge:       DefaultBridge,
		SecondBridge: DefaultSecondBridge,
		FeedSymbol:   DefaultFeedSymbol,
	}
}

// Route plans the conversion step for a denomination.
func (c *Chain) Route(denom string) Step {
	switch denom {
	case c.Numeraire:
		return Step{Kind: DirectStep}
	case c.Bridge:
		return Step{Kind: BridgeStep}
	default:
		return Step{Kind: TwoHopStep, Via: c.Bridge}
	}
}

// DeriveRates computes the per-request rates from the raw price index
// and the external feed. The numeraire USD rate chains the external
// second-bridge fiat rate through two on-chain prices and divides by
// 10^6 to undo the second bridge's micro scale. Any missing
// intermediate ticker makes USD valuation undefined for the request.
func (c *Chain) DeriveRates(prices *PriceIndex, feed RateSource) (Rates, error) {
	bridgeNum, ok := prices.Get(c.Bridge, c.Numeraire)
	if !ok || bridgeNum.Raw == 0 {
		return Rates{}, fmt.Errorf("%w: %s/%s", ErrUnroutablePrice, c.Bridge, c.Numeraire)
	}

	bridgeSecond, ok := prices.Get(c.Bridge, c.SecondBridge)
	if !ok {
		return Rates{}, fmt.Errorf("%w: %s/%s", ErrUnroutablePrice, c.Bridge, c.SecondBridge)
	}

	fiat, err := feed.Price(c.FeedSymbol)
	if err != nil {
		return Rates{}, fmt.Errorf("external rate for %s: %w", c.FeedSymbol, err)
	}

	bridgeUSD := fiat * bridgeSecond.Raw / 1e6
	return Rates{
		BridgeToNumeraire: bridgeNum.Raw,
		NumeraireUSD:      bridgeUSD / bridgeNum.Raw,
	}, nil
}

// AmountToNumeraire converts a raw (denom, amount) pair into numeraire
// units. exp is the denom's scaling exponent.
func (c *Chain) AmountToNumeraire(denom string, amount float64, exp int, prices *PriceIndex, rates Rates) (float64, error) {
	human := amount * math.Pow(10, float64(exp))

	switch step := c.Route(denom); step.Kind {
	case DirectStep:
		return human, nil
	case BridgeStep:
		return human * rates.BridgeToNumeraire, nil
	default:
		p, ok := prices.Get(step.Via, denom)
		if !ok || p.Raw == 0 {
			return 0, fmt.Errorf("%w: %s/%s", ErrUnroutablePrice, step.Via, denom)
		}
		inBridge := human / p.Corrected()
		return inBridge * rates.BridgeToNumeraire, nil
	}
}

// NumeraireToUSD values a numeraire amount in USD.
func (c *Chain) NumeraireToUSD(amount float64, rates Rates) float64 {
	return amount * rates.NumeraireUSD
}

// PriceToUSD applies the two-hop logic to a price ratio quoted in
// denom, reusing the request rates.
func (c *Chain) PriceToUSD(price float64, denom string, prices *PriceIndex, rates Rates) (float64, error) {
	inNumeraire, err := c.AmountToNumeraire(denom, price, 0, prices, rates)
	if err != nil {
		return 0, err
	}
	return c.NumeraireToUSD(inNumeraire, rates), nil
}
