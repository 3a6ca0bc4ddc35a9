package model

import (
	"encoding/json"
	"time"
)

// Direction is the outcome of one signal evaluation.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Signal is the result of evaluating one (instrument, timeframe) key.
// HOLD signals are emitted as freshness placeholders and carry zero
// confidence; BUY/SELL carry 100 unless a rule family grades them.
type Signal struct {
	Asset       string    `json:"asset"`
	TF          Timeframe `json:"tf"`
	Direction   Direction `json:"direction"`
	Confidence  int       `json:"confidence"` // 0..100
	Reason      string    `json:"reason,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Key returns the candle-series key this signal was produced for.
func (s *Signal) Key() Key {
	return Key{Asset: s.Asset, TF: s.TF}
}

// Actionable reports whether the signal should be delivered to
// notification sinks (HOLD placeholders are dashboard-only).
func (s *Signal) Actionable() bool {
	return s.Direction == DirectionBuy || s.Direction == DirectionSell
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
