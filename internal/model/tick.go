package model

import "time"

// Tick is a single quote update from the upstream venue. Ticks are
// forwarded transiently; only candles are retained.
type Tick struct {
	Asset string    `json:"asset"`
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}
