package sweep

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/store"
	"signal-systemv1/internal/strategy"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	signals []model.Signal
}

func (d *recordingDispatcher) Dispatch(_ context.Context, sig model.Signal) {
	d.mu.Lock()
	d.signals = append(d.signals, sig)
	d.mu.Unlock()
}

func (d *recordingDispatcher) all() []model.Signal {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Signal, len(d.signals))
	copy(out, d.signals)
	return out
}

func (d *recordingDispatcher) find(asset string, tf model.Timeframe) (model.Signal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.signals {
		if s.Asset == asset && s.TF == tf {
			return s, true
		}
	}
	return model.Signal{}, false
}

func rising(n int, start, step float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		price := start + step*float64(i)
		out[i] = model.Candle{
			TS:    time.Unix(int64((i+1)*60), 0).UTC(),
			Open:  price - step/2,
			High:  price + 0.5,
			Low:   price - 1.5,
			Close: price,
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		Interval: time.Hour,
		BaseTF:   model.TF1m,
		MidTF:    model.TF3m,
		HighTF:   model.TF5m,
		TFs:      []model.Timeframe{model.TF1m, model.TF3m, model.TF5m},
	}
}

func TestSweep_EmptyStoreYieldsHoldPlaceholders(t *testing.T) {
	st := store.New(256)
	eval := strategy.New(strategy.Config{Family: strategy.FamilyTrend})
	disp := &recordingDispatcher{}

	instruments := []string{"EURUSD_otc", "GBPUSD_otc"}
	sw := New(testConfig(), st, eval, disp, func() []string { return instruments })

	sw.sweep(context.Background())

	got := disp.all()
	if len(got) != len(instruments)*3 {
		t.Fatalf("dispatched %d signals, want %d", len(got), len(instruments)*3)
	}
	for _, sig := range got {
		if sig.Direction != model.DirectionHold {
			t.Errorf("%s/%s: direction = %s, want HOLD from an empty store", sig.Asset, sig.TF, sig.Direction)
		}
		if sig.Confidence != 0 {
			t.Errorf("%s/%s: confidence = %d, want 0", sig.Asset, sig.TF, sig.Confidence)
		}
		if sig.GeneratedAt.IsZero() {
			t.Errorf("%s/%s: GeneratedAt not set", sig.Asset, sig.TF)
		}
	}
}

func TestSweep_BaseTimeframeIsConfirmed(t *testing.T) {
	st := store.New(256)
	eval := strategy.New(strategy.Config{Family: strategy.FamilyTrend})
	disp := &recordingDispatcher{}

	const asset = "EURUSD_otc"
	if !st.Seed(asset, model.TF1m, rising(200, 100, 0.5)) {
		t.Fatal("seed base refused")
	}
	if !st.Seed(asset, model.TF3m, rising(120, 100, 0.3)) {
		t.Fatal("seed mid refused")
	}
	if !st.Seed(asset, model.TF5m, rising(120, 100, 0.2)) {
		t.Fatal("seed high refused")
	}

	sw := New(testConfig(), st, eval, disp, func() []string { return []string{asset} })
	sw.sweep(context.Background())

	base, ok := disp.find(asset, model.TF1m)
	if !ok {
		t.Fatal("no signal dispatched for base timeframe")
	}
	if base.Direction != model.DirectionBuy {
		t.Fatalf("base direction = %s (%s), want BUY", base.Direction, base.Reason)
	}
	if want := "confirmed by higher timeframes"; !strings.Contains(base.Reason, want) {
		t.Errorf("base reason = %q, want it to mention %q", base.Reason, want)
	}

	// Auxiliary timeframes are evaluated standalone, so no
	// confirmation note appears on them.
	for _, tf := range []model.Timeframe{model.TF3m, model.TF5m} {
		sig, ok := disp.find(asset, tf)
		if !ok {
			t.Fatalf("no signal dispatched for %s", tf)
		}
		if strings.Contains(sig.Reason, "confirmed") {
			t.Errorf("%s reason = %q, standalone timeframe got a confirmation note", tf, sig.Reason)
		}
	}
}

func TestSweep_BaseHoldsWithoutAuxiliaryData(t *testing.T) {
	st := store.New(256)
	eval := strategy.New(strategy.Config{Family: strategy.FamilyTrend})
	disp := &recordingDispatcher{}

	const asset = "EURUSD_otc"
	if !st.Seed(asset, model.TF1m, rising(200, 100, 0.5)) {
		t.Fatal("seed refused")
	}

	sw := New(testConfig(), st, eval, disp, func() []string { return []string{asset} })
	sw.sweep(context.Background())

	base, ok := disp.find(asset, model.TF1m)
	if !ok {
		t.Fatal("no signal dispatched for base timeframe")
	}
	if base.Direction != model.DirectionHold {
		t.Errorf("base direction = %s, want HOLD with empty auxiliary series", base.Direction)
	}
}

func TestSweep_PicksUpNewInstruments(t *testing.T) {
	st := store.New(256)
	eval := strategy.New(strategy.Config{Family: strategy.FamilyTrend})
	disp := &recordingDispatcher{}

	var mu sync.Mutex
	instruments := []string{"EURUSD_otc"}
	sw := New(testConfig(), st, eval, disp, func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(instruments))
		copy(out, instruments)
		return out
	})

	sw.sweep(context.Background())
	if n := len(disp.all()); n != 3 {
		t.Fatalf("first sweep dispatched %d signals, want 3", n)
	}

	mu.Lock()
	instruments = append(instruments, "AUDCAD_otc")
	mu.Unlock()

	sw.sweep(context.Background())
	if n := len(disp.all()); n != 9 {
		t.Fatalf("after discovery dispatched %d signals total, want 9", n)
	}
	if _, ok := disp.find("AUDCAD_otc", model.TF5m); !ok {
		t.Error("newly discovered instrument was not evaluated")
	}
}

func TestSweep_RunStopsOnCancel(t *testing.T) {
	st := store.New(256)
	eval := strategy.New(strategy.Config{Family: strategy.FamilyTrend})
	disp := &recordingDispatcher{}

	cfg := testConfig()
	cfg.Interval = 5 * time.Millisecond
	sw := New(cfg, st, eval, disp, func() []string { return []string{"EURUSD_otc"} })

	swept := make(chan struct{}, 16)
	sw.OnSweep = func(time.Duration) {
		select {
		case swept <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("no sweep completed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
