package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"signal-systemv1/internal/model"
)

// Event is a decoded domain event emitted by a Session. Consumers
// switch on the concrete type; there are no raw callbacks.
type Event interface {
	event()
}

// AssetsDiscovered carries the enabled instrument symbols announced by
// the upstream asset catalogue.
type AssetsDiscovered struct {
	Instruments []string
}

// TickReceived is one live quote update.
type TickReceived struct {
	Tick model.Tick
}

// CandleReceived is one OHLC bar for an (instrument, timeframe) key.
type CandleReceived struct {
	Asset  string
	TF     model.Timeframe
	Candle model.Candle
}

// ConnectionLost is emitted exactly once per session when the
// connection drops or the handshake fails. Err is nil on a clean stop.
type ConnectionLost struct {
	Err error
}

func (AssetsDiscovered) event() {}
func (TickReceived) event()     {}
func (CandleReceived) event()   {}
func (ConnectionLost) event()   {}

// Wire payload shapes. Optional fields stay pointers or zero values;
// a missing required field makes the frame a decode failure, which the
// session logs and skips.

type assetPayload struct {
	Symbol   string `json:"symbol"`
	Enabled  bool   `json:"enabled"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
}

type tickPayload struct {
	Asset string  `json:"asset"`
	Time  float64 `json:"time"` // unix seconds, fractional
	Price float64 `json:"price"`
}

type candlePayload struct {
	Asset  string  `json:"asset"`
	Period int     `json:"period"` // seconds
	Time   float64 `json:"time"`   // bucket open, unix seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// decodeEvent maps an application event frame to a domain event.
// Returns (nil, nil) for event names the pipeline does not consume.
func decodeEvent(f Frame) (Event, error) {
	switch f.Event {
	case "assets":
		var assets []assetPayload
		if err := json.Unmarshal(f.Payload, &assets); err != nil {
			return nil, fmt.Errorf("assets payload: %w", err)
		}
		instruments := make([]string, 0, len(assets))
		for _, a := range assets {
			if a.Enabled && a.Symbol != "" {
				instruments = append(instruments, a.Symbol)
			}
		}
		return AssetsDiscovered{Instruments: instruments}, nil

	case "ticks":
		var p tickPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("ticks payload: %w", err)
		}
		if p.Asset == "" {
			return nil, fmt.Errorf("ticks payload: missing asset")
		}
		return TickReceived{Tick: model.Tick{
			Asset: p.Asset,
			TS:    unixFloat(p.Time),
			Price: p.Price,
		}}, nil

	case "candles":
		var p candlePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, fmt.Errorf("candles payload: %w", err)
		}
		if p.Asset == "" {
			return nil, fmt.Errorf("candles payload: missing asset")
		}
		tf := model.Timeframe(p.Period)
		if !tf.Valid() {
			return nil, fmt.Errorf("candles payload: unsupported period %d", p.Period)
		}
		return CandleReceived{
			Asset: p.Asset,
			TF:    tf,
			Candle: model.Candle{
				TS:     unixFloat(p.Time),
				Open:   p.Open,
				High:   p.High,
				Low:    p.Low,
				Close:  p.Close,
				Volume: p.Volume,
			},
		}, nil
	}

	// Unknown event names (auth acks, counters, promos) are not errors.
	return nil, nil
}

// unixFloat converts fractional unix seconds to UTC time. A zero or
// absent timestamp maps to now, matching upstream bars that omit it.
func unixFloat(sec float64) time.Time {
	if sec <= 0 {
		return time.Now().UTC()
	}
	s, frac := math.Modf(sec)
	return time.Unix(int64(s), int64(frac*float64(time.Second))).UTC()
}
