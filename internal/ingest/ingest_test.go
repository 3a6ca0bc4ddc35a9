package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signal-systemv1/internal/feed"
	"signal-systemv1/internal/model"
	"signal-systemv1/internal/store"
	"signal-systemv1/internal/store/sqlite"
)

type nopSender struct {
	mu    sync.Mutex
	emits int
}

func (s *nopSender) Emit(string, any) error {
	s.mu.Lock()
	s.emits++
	s.mu.Unlock()
	return nil
}

type fakePrefiller struct {
	mu      sync.Mutex
	history map[model.Key][]model.Candle
	err     error
	calls   []model.Key
	limits  []int
}

func (p *fakePrefiller) History(_ context.Context, key model.Key, limit int) ([]model.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, key)
	p.limits = append(p.limits, limit)
	if p.err != nil {
		return nil, p.err
	}
	return p.history[key], nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []model.Key
	limits   []int
	err      error
}

func (r *fakeRecorder) RecordCandle(_ context.Context, key model.Key, _ model.Candle, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, key)
	r.limits = append(r.limits, limit)
	return r.err
}

func candle(ts int64, close float64) model.Candle {
	return model.Candle{
		TS:    time.Unix(ts, 0).UTC(),
		Open:  close - 0.5,
		High:  close + 1,
		Low:   close - 1,
		Close: close,
	}
}

func newSubs() *feed.SubscriptionManager {
	return feed.NewSubscriptionManager(&nopSender{}, []model.Timeframe{model.TF1m, model.TF5m}, nil)
}

func TestConsumer_CandleGoesToStoreAndArchive(t *testing.T) {
	st := store.New(10)
	archiveCh := make(chan sqlite.Record, 4)
	c := New(st, newSubs(), nil, archiveCh, Hooks{})

	in := candle(60, 1.2345)
	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: in})

	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 1 || got[0].Close != 1.2345 {
		t.Fatalf("store snapshot = %+v", got)
	}

	select {
	case rec := <-archiveCh:
		if rec.Key.Asset != "EURUSD_otc" || rec.Key.TF != model.TF1m || rec.Candle.Close != 1.2345 {
			t.Errorf("archive record = %+v", rec)
		}
	default:
		t.Fatal("candle was not teed to the archive channel")
	}
}

func TestConsumer_RecorderSeesLiveCandles(t *testing.T) {
	st := store.New(10)
	rec := &fakeRecorder{}
	c := New(st, newSubs(), nil, nil, Hooks{}).WithRecorder(rec)

	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(60, 1)})
	if len(rec.recorded) != 1 || rec.recorded[0].Asset != "EURUSD_otc" {
		t.Fatalf("recorded = %v", rec.recorded)
	}

	// A failing recorder never blocks the store path.
	rec.err = errors.New("redis down")
	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(120, 2)})
	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 2 {
		t.Errorf("store has %d candles, want 2", len(got))
	}
}

func TestConsumer_FullArchiveChannelDropsNotBlocks(t *testing.T) {
	st := store.New(10)
	archiveCh := make(chan sqlite.Record, 1)
	c := New(st, newSubs(), nil, archiveCh, Hooks{})

	done := make(chan struct{})
	go func() {
		c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(60, 1)})
		c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(120, 2)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handle blocked on a full archive channel")
	}

	// Both candles still reach the store.
	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 2 {
		t.Errorf("store has %d candles, want 2", len(got))
	}
}

func TestConsumer_AssetsTriggerSubscribeAndPrefillOnce(t *testing.T) {
	st := store.New(10)
	subs := newSubs()
	pre := &fakePrefiller{history: map[model.Key][]model.Candle{
		{Asset: "EURUSD_otc", TF: model.TF1m}: {candle(60, 1), candle(120, 2)},
	}}

	var prefilled []model.Key
	var assetCounts []int
	c := New(st, subs, pre, nil, Hooks{
		OnAssets:  func(n int) { assetCounts = append(assetCounts, n) },
		OnPrefill: func(key model.Key, n int) { prefilled = append(prefilled, key) },
	})

	c.handle(context.Background(), feed.AssetsDiscovered{Instruments: []string{"EURUSD_otc"}})

	if got := subs.Instruments(); len(got) != 1 || got[0] != "EURUSD_otc" {
		t.Fatalf("working set = %v", got)
	}
	if len(assetCounts) != 1 || assetCounts[0] != 1 {
		t.Errorf("OnAssets calls = %v", assetCounts)
	}

	// 1m has history, 5m does not; only the seeded key reports.
	if len(prefilled) != 1 || prefilled[0].TF != model.TF1m {
		t.Fatalf("prefilled keys = %v", prefilled)
	}
	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 2 {
		t.Errorf("seeded series has %d candles, want 2", len(got))
	}
	if got := pre.calls; len(got) != 2 {
		t.Errorf("prefiller called %d times, want 2 (one per key)", len(got))
	}

	// A second discovery of the same assets must not prefill again.
	c.handle(context.Background(), feed.AssetsDiscovered{Instruments: []string{"EURUSD_otc"}})
	if got := pre.calls; len(got) != 2 {
		t.Errorf("prefiller re-called on rediscovery: %d calls", len(got))
	}
}

func TestConsumer_UsesConfiguredCapacityNotDefault(t *testing.T) {
	st := store.New(200)
	key := model.Key{Asset: "EURUSD_otc", TF: model.TF1m}

	hist := make([]model.Candle, 200)
	for i := range hist {
		hist[i] = candle(int64(60*(i+1)), 100+float64(i)*0.1)
	}
	pre := &fakePrefiller{history: map[model.Key][]model.Candle{key: hist}}
	rec := &fakeRecorder{}
	c := New(st, newSubs(), pre, nil, Hooks{}).WithRecorder(rec)

	c.handle(context.Background(), feed.AssetsDiscovered{Instruments: []string{"EURUSD_otc"}})
	for _, limit := range pre.limits {
		if limit != 200 {
			t.Fatalf("prefill asked for %d candles, want the configured capacity 200", limit)
		}
	}
	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 200 {
		t.Fatalf("seeded %d candles into a 200-capacity buffer, want 200", len(got))
	}

	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(60*201, 120)})
	if len(rec.limits) != 1 || rec.limits[0] != 200 {
		t.Fatalf("recorder trim limits = %v, want [200]", rec.limits)
	}
}

func TestConsumer_LiveCandleBeatsLatePrefill(t *testing.T) {
	st := store.New(10)
	subs := newSubs()
	pre := &fakePrefiller{history: map[model.Key][]model.Candle{
		{Asset: "EURUSD_otc", TF: model.TF1m}: {candle(60, 99)},
	}}
	c := New(st, subs, pre, nil, Hooks{})

	// Live data lands before discovery completes.
	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(120, 1.5)})
	c.handle(context.Background(), feed.AssetsDiscovered{Instruments: []string{"EURUSD_otc"}})

	got := st.Snapshot("EURUSD_otc", model.TF1m)
	if len(got) != 1 || got[0].Close != 1.5 {
		t.Fatalf("snapshot = %+v, want the live candle untouched", got)
	}
}

func TestConsumer_PrefillErrorDoesNotAbortOtherKeys(t *testing.T) {
	st := store.New(10)
	c := New(st, newSubs(), &fakePrefiller{err: errors.New("redis down")}, nil, Hooks{})

	c.handle(context.Background(), feed.AssetsDiscovered{Instruments: []string{"EURUSD_otc", "AUDCAD_otc"}})

	// All four keys were attempted despite every call failing.
	pre := c.prefiller.(*fakePrefiller)
	if len(pre.calls) != 4 {
		t.Errorf("prefiller called %d times, want 4", len(pre.calls))
	}
}

func TestConsumer_HooksAndDisconnect(t *testing.T) {
	st := store.New(10)

	var ticks []model.Tick
	var candles []model.Key
	var disconnects []error
	c := New(st, newSubs(), nil, nil, Hooks{
		OnTick:       func(tk model.Tick) { ticks = append(ticks, tk) },
		OnCandle:     func(key model.Key, _ model.Candle) { candles = append(candles, key) },
		OnDisconnect: func(err error) { disconnects = append(disconnects, err) },
	})

	c.handle(context.Background(), feed.TickReceived{Tick: model.Tick{Asset: "EURUSD_otc", Price: 1.1}})
	c.handle(context.Background(), feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(60, 1)})
	c.handle(context.Background(), feed.ConnectionLost{Err: errors.New("eof")})

	if len(ticks) != 1 || ticks[0].Asset != "EURUSD_otc" {
		t.Errorf("ticks = %+v", ticks)
	}
	if len(candles) != 1 || candles[0].TF != model.TF1m {
		t.Errorf("candle hooks = %+v", candles)
	}
	if len(disconnects) != 1 {
		t.Errorf("disconnect hooks = %d, want 1", len(disconnects))
	}
}

func TestConsumer_RunStopsWhenChannelCloses(t *testing.T) {
	st := store.New(10)
	c := New(st, newSubs(), nil, nil, Hooks{})

	events := make(chan feed.Event, 1)
	events <- feed.CandleReceived{Asset: "EURUSD_otc", TF: model.TF1m, Candle: candle(60, 1)}
	close(events)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if got := st.Snapshot("EURUSD_otc", model.TF1m); len(got) != 1 {
		t.Errorf("buffered event not consumed before shutdown, store has %d", len(got))
	}
}
