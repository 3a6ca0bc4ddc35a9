package feed

import (
	"fmt"
	"log"
	"sync"

	"signal-systemv1/internal/model"
)

// Sender is the outbound half of a session, satisfied by both Session
// and Reconnector.
type Sender interface {
	Emit(event string, payload any) error
}

type subscribePayload struct {
	Type   string `json:"type"` // "ticks" or "candles"
	Asset  string `json:"asset"`
	Period int    `json:"period,omitempty"` // seconds, candles only
}

// SubscriptionManager derives the working instrument set from asset
// discovery and issues tick plus per-timeframe candle subscriptions.
// Subscriptions do not survive a reconnect, so re-issuing the full set
// for an unchanged instrument list is both safe and required.
type SubscriptionManager struct {
	sender   Sender
	tfs      []model.Timeframe
	fallback []string

	mu          sync.Mutex
	instruments []string
}

// NewSubscriptionManager wires the manager to a sender. fallback is
// the statically configured instrument list used when upstream asset
// discovery returns nothing.
func NewSubscriptionManager(sender Sender, tfs []model.Timeframe, fallback []string) *SubscriptionManager {
	return &SubscriptionManager{sender: sender, tfs: tfs, fallback: fallback}
}

// HandleAssets consumes an AssetsDiscovered event: it fixes the
// working instrument set and subscribes everything. Instruments seen
// in earlier sessions but absent now are dropped from the set.
func (m *SubscriptionManager) HandleAssets(discovered []string) error {
	set := discovered
	if len(set) == 0 {
		log.Printf("[subs] asset discovery returned nothing, using %d fallback instruments", len(m.fallback))
		set = m.fallback
	}

	m.mu.Lock()
	m.instruments = append([]string(nil), set...)
	m.mu.Unlock()

	return m.subscribeAll(set)
}

// Instruments returns a copy of the current working set.
func (m *SubscriptionManager) Instruments() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.instruments...)
}

// Timeframes returns the configured candle timeframes.
func (m *SubscriptionManager) Timeframes() []model.Timeframe {
	return m.tfs
}

func (m *SubscriptionManager) subscribeAll(instruments []string) error {
	var firstErr error
	count := 0
	for _, asset := range instruments {
		if err := m.sender.Emit("subscribe", subscribePayload{Type: "ticks", Asset: asset}); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("subscribe ticks %s: %w", asset, err)
			}
			continue
		}
		count++
		for _, tf := range m.tfs {
			if err := m.sender.Emit("subscribe", subscribePayload{Type: "candles", Asset: asset, Period: tf.Seconds()}); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("subscribe candles %s %s: %w", asset, tf, err)
				}
			}
		}
	}
	log.Printf("[subs] subscribed %d/%d instruments across %d timeframes", count, len(instruments), len(m.tfs))
	return firstErr
}
