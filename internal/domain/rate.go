package domain

// ExchangeRate is one spot price from the external price feed.
type ExchangeRate struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}
