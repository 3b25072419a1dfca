package models

// PriceTick is one trade-price observation from the market-data stream.
// Timestamp is unix seconds.
type PriceTick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}
