package domain

// DenomTrace maps an IBC denom hash to the canonical symbol of the
// underlying asset. Corresponds to the denom_trace table.
type DenomTrace struct {
	DenomHash string // hash part of an ibc/<hash> reference
	BaseDenom string // canonical underlying symbol
}
