package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Candle represents one OHLC bar as delivered by the upstream venue.
// Prices are float64 because the venue quotes fractional OTC rates;
// Volume is untrusted and may be zero when the venue omits it.
//
// The usual low <= min(open,close) <= max(open,close) <= high invariant
// is NOT assumed to hold for upstream data; consumers compute over the
// bar as given.
type Candle struct {
	TS     time.Time `json:"ts"` // bucket open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Key identifies one candle series: an upstream instrument symbol plus
// a timeframe.
type Key struct {
	Asset string
	TF    Timeframe
}

// String returns "asset:TFs", e.g. "EURUSD_otc:60s".
func (k Key) String() string {
	return k.Asset + ":" + strconv.Itoa(int(k.TF)) + "s"
}
