// Package ingest consumes feed events and routes candles into the
// in-memory store, the archive tee and the history prefill.
package ingest

import (
	"context"
	"log"
	"time"

	"signal-systemv1/internal/feed"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/store"
	"signal-systemv1/internal/store/sqlite"
)

const recordTimeout = 2 * time.Second

// Prefiller supplies historical candles for a key at discovery time.
type Prefiller interface {
	History(ctx context.Context, key model.Key, limit int) ([]model.Candle, error)
}

// Recorder persists live candles so the next process start can prefill
// from them.
type Recorder interface {
	RecordCandle(ctx context.Context, key model.Key, c model.Candle, maxLen int) error
}

// Hooks carry optional observability callbacks; any field may be nil.
type Hooks struct {
	OnTick             func(model.Tick)
	OnCandle           func(key model.Key, c model.Candle)
	OnAssets           func(count int)
	OnDisconnect       func(err error)
	OnPrefill          func(key model.Key, n int)
	OnDecodeError      func()
	OnSubscribeFailure func()
}

// Consumer drains the feed event channel. Candles go to the store and,
// when an archive channel is attached, to the archive tee. Newly
// discovered assets are forwarded to the subscription manager and each
// fresh key is seeded once from the prefiller.
type Consumer struct {
	store     *store.CandleStore
	subs      *feed.SubscriptionManager
	prefiller Prefiller
	recorder  Recorder
	archiveCh chan<- sqlite.Record
	hooks     Hooks

	prefilled map[model.Key]bool
}

// New creates a Consumer. prefiller and archiveCh may be nil when the
// corresponding store is disabled.
func New(st *store.CandleStore, subs *feed.SubscriptionManager, prefiller Prefiller, archiveCh chan<- sqlite.Record, hooks Hooks) *Consumer {
	return &Consumer{
		store:     st,
		subs:      subs,
		prefiller: prefiller,
		archiveCh: archiveCh,
		hooks:     hooks,
		prefilled: make(map[model.Key]bool),
	}
}

// WithRecorder attaches a live-candle recorder feeding the next
// restart's prefill. Writes happen on the consumer goroutine, so the
// recorder must bound its own latency.
func (c *Consumer) WithRecorder(r Recorder) *Consumer {
	c.recorder = r
	return c
}

// Run blocks consuming events until ctx is cancelled or the channel
// closes. It is the only goroutine touching the prefill bookkeeping.
func (c *Consumer) Run(ctx context.Context, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, ev feed.Event) {
	switch e := ev.(type) {
	case feed.AssetsDiscovered:
		if err := c.subs.HandleAssets(e.Instruments); err != nil {
			log.Printf("[ingest] subscription setup failed: %v", err)
			if c.hooks.OnSubscribeFailure != nil {
				c.hooks.OnSubscribeFailure()
			}
		}
		if c.hooks.OnAssets != nil {
			c.hooks.OnAssets(len(c.subs.Instruments()))
		}
		c.prefillAll(ctx)

	case feed.TickReceived:
		if c.hooks.OnTick != nil {
			c.hooks.OnTick(e.Tick)
		}

	case feed.CandleReceived:
		key := model.Key{Asset: e.Asset, TF: e.TF}
		c.store.Push(e.Asset, e.TF, e.Candle)
		if c.recorder != nil {
			wctx, cancel := context.WithTimeout(ctx, recordTimeout)
			if err := c.recorder.RecordCandle(wctx, key, e.Candle, c.store.Capacity()); err != nil {
				log.Printf("[ingest] history record %s failed: %v", key.String(), err)
			}
			cancel()
		}
		if c.archiveCh != nil {
			select {
			case c.archiveCh <- sqlite.Record{Key: key, Candle: e.Candle}:
			default:
				log.Printf("[ingest] archive channel full, dropping candle %s", key.String())
			}
		}
		if c.hooks.OnCandle != nil {
			c.hooks.OnCandle(key, e.Candle)
		}

	case feed.ConnectionLost:
		if e.Err != nil {
			log.Printf("[ingest] connection lost: %v", e.Err)
		}
		if c.hooks.OnDisconnect != nil {
			c.hooks.OnDisconnect(e.Err)
		}
	}
}

// prefillAll seeds every (instrument, timeframe) key that has not been
// seeded yet. Live candles that already arrived win; Seed only fills
// empty series.
func (c *Consumer) prefillAll(ctx context.Context) {
	if c.prefiller == nil {
		return
	}
	start := time.Now()
	seeded, total := 0, 0
	for _, asset := range c.subs.Instruments() {
		for _, tf := range c.subs.Timeframes() {
			key := model.Key{Asset: asset, TF: tf}
			if c.prefilled[key] {
				continue
			}
			c.prefilled[key] = true

			hist, err := c.prefiller.History(ctx, key, c.store.Capacity())
			if err != nil {
				log.Printf("[ingest] history prefill %s failed: %v", key.String(), err)
				continue
			}
			if len(hist) == 0 {
				continue
			}
			if c.store.Seed(asset, tf, hist) {
				seeded++
				total += len(hist)
				if c.hooks.OnPrefill != nil {
					c.hooks.OnPrefill(key, len(hist))
				}
			}
		}
	}
	if seeded > 0 {
		log.Printf("[ingest] prefilled %d series (%d candles) in %v", seeded, total, time.Since(start))
	}
}
