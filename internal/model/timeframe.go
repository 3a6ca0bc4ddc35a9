package model

import "strconv"

// Timeframe is a candle bucket duration in seconds. The upstream venue
// streams a small fixed set of periods; anything else is rejected at
// config load.
type Timeframe int

const (
	TF1m Timeframe = 60
	TF2m Timeframe = 120
	TF3m Timeframe = 180
	TF5m Timeframe = 300
)

// Valid reports whether tf is one of the supported bucket durations.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TF1m, TF2m, TF3m, TF5m:
		return true
	}
	return false
}

// Seconds returns the duration as an int for wire payloads.
func (tf Timeframe) Seconds() int { return int(tf) }

// String renders the presentation form, e.g. "1m", "5m".
func (tf Timeframe) String() string {
	return strconv.Itoa(int(tf)/60) + "m"
}
