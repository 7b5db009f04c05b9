// Package denom resolves raw denominations to canonical symbols and
// base-10 scaling exponents.
package denom

import (
	"errors"
	"fmt"
	"strings"

	"warp-markets/internal/domain"
)

// Resolution errors.
var (
	// ErrMissingTrace is returned when an ibc/ reference has no matching
	// trace row.
	ErrMissingTrace = errors.New("no denom trace matches reference")

	// ErrAmbiguousTrace is returned when two traces with different base
	// denoms match the same reference equally well.
	ErrAmbiguousTrace = errors.New("denom trace match is ambiguous")
)

// IBCMarker marks an indirect denomination reference that must be
// resolved through the trace table.
const IBCMarker = "ibc/"

// exponentRule selects a scaling exponent by prefix or exact match
// against the canonical symbol. Rules are evaluated in order; first
// match wins.
type exponentRule struct {
	match    string
	exact    bool
	exponent int
}

var exponentRules = []exponentRule{
	{match: "u", exponent: -6},
	{match: "a", exponent: -18},
	{match: "milli", exponent: -3},
	{match: "gravity0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", exact: true, exponent: -18},
	{match: "aevmos", exact: true, exponent: -18},
}

// Canonical resolves a raw denomination to its canonical symbol.
// Denoms without the ibc/ marker are already canonical. Indirect
// references are resolved by longest-hash match against the trace table;
// a tie between traces with different base denoms is an explicit error
// rather than an arbitrary first-match.
func Canonical(raw string, traces []domain.DenomTrace) (string, error) {
	if !strings.Contains(raw, IBCMarker) {
		return raw, nil
	}

	var (
		best    *domain.DenomTrace
		bestLen int
		tied    bool
	)
	for i := range traces {
		t := &traces[i]
		if t.DenomHash == "" || !strings.Contains(raw, t.DenomHash) {
			continue
		}
		switch {
		case len(t.DenomHash) > bestLen:
			best, bestLen, tied = t, len(t.DenomHash), false
		case len(t.DenomHash) == bestLen && best != nil && t.BaseDenom != best.BaseDenom:
			tied = true
		}
	}

	if best == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingTrace, raw)
	}
	if tied {
		return "", fmt.Errorf("%w: %s", ErrAmbiguousTrace, raw)
	}
	return best.BaseDenom, nil
}

// Exponent returns the power-of-ten a raw integer amount must be
// multiplied by to obtain a human-scale quantity. Symbols outside the
// rule table scale by 10^0.
func Exponent(canonical string) int {
	for _, r := range exponentRules {
		if r.exact {
			if canonical == r.match {
				return r.exponent
			}
			continue
		}
		if strings.HasPrefix(canonical, r.match) {
			return r.exponent
		}
	}
	return 0
}

// Resolve resolves a raw denomination to its scaling exponent.
func Resolve(raw string, traces []domain.DenomTrace) (int, error) {
	canonical, err := Canonical(raw, traces)
	if err != nil {
		return 0, err
	}
	return Exponent(canonical), nil
}
