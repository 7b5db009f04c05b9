package pricefeed

import (
	"errors"
	"fmt"
	"strings"

	"warp-markets/internal/domain"
)

// ErrSymbolUnknown is returned when the feed has no rate for a symbol.
var ErrSymbolUnknown = errors.New("symbol not in price feed")

// Rates is a point-in-time rate set keyed by upper-cased symbol.
// Satisfies convert.RateSource.
type Rates struct {
	bySymbol map[string]float64
}

// NewRates builds a rate set from feed rows. Later rows win on
// duplicate symbols.
func NewRates(rows []domain.ExchangeRate) Rates {
	bySymbol := make(map[string]float64, len(rows))
	for _, r := range rows {
		bySymbol[strings.ToUpper(r.Symbol)] = r.Price
	}
	return Rates{bySymbol: bySymbol}
}

// Price returns the rate for a symbol, case-insensitively.
func (r Rates) Price(symbol string) (float64, error) {
	price, ok := r.bySymbol[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolUnknown, symbol)
	}
	return price, nil
}

// Len reports the number of known symbols.
func (r Rates) Len() int {
	return len(r.bySymbol)
}

// Rows returns the rate set as feed rows, for serialization.
func (r Rates) Rows() []domain.ExchangeRate {
	rows := make([]domain.ExchangeRate, 0, len(r.bySymbol))
	for symbol, price := range r.bySymbol {
		rows = append(rows, domain.ExchangeRate{Symbol: symbol, Price: price})
	}
	return rows
}
