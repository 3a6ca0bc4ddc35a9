// Package sweep drives periodic strategy evaluation over every
// tracked (instrument, timeframe) series.
package sweep

import (
	"context"
	"log"
	"time"

	"signal-systemv1/internal/model"
	"signal-systemv1/internal/store"
	"signal-systemv1/internal/strategy"
)

const defaultInterval = 5 * time.Second

// Dispatcher receives every evaluated signal.
type Dispatcher interface {
	Dispatch(ctx context.Context, sig model.Signal)
}

// Config configures the sweeper.
type Config struct {
	Interval time.Duration

	// BaseTF is evaluated with higher-timeframe confirmation using
	// MidTF and HighTF; all other enabled timeframes are evaluated
	// standalone.
	BaseTF model.Timeframe
	MidTF  model.Timeframe
	HighTF model.Timeframe
	TFs    []model.Timeframe
}

// Sweeper walks instruments x timeframes on a ticker, evaluates each
// series snapshot and hands the resulting signal to the dispatcher.
// Series with no data still produce a HOLD placeholder so the
// dashboard shows freshness for every key.
type Sweeper struct {
	cfg         Config
	store       *store.CandleStore
	eval        *strategy.Evaluator
	disp        Dispatcher
	instruments func() []string

	// OnSweep is invoked with the wall time of each full sweep, for
	// metrics.
	OnSweep func(dur time.Duration)
}

// New creates a Sweeper. instruments is called at the start of every
// sweep so newly discovered assets are picked up without restart.
func New(cfg Config, st *store.CandleStore, eval *strategy.Evaluator, disp Dispatcher, instruments func() []string) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Sweeper{
		cfg:         cfg,
		store:       st,
		eval:        eval,
		disp:        disp,
		instruments: instruments,
	}
}

// Run blocks until ctx is cancelled, evaluating every series once per
// interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[sweep] evaluating every %v across %d timeframes", s.cfg.Interval, len(s.cfg.TFs))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			s.sweep(ctx)
			if s.OnSweep != nil {
				s.OnSweep(time.Since(start))
			}
		}
	}
}

// sweep evaluates all series once. Each key is evaluated in isolation:
// a series with unusable data yields a HOLD and the walk continues.
func (s *Sweeper) sweep(ctx context.Context) {
	assets := s.instruments()
	now := time.Now().UTC()

	for _, asset := range assets {
		for _, tf := range s.cfg.TFs {
			if ctx.Err() != nil {
				return
			}
			out := s.evaluateKey(asset, tf)
			sig := model.Signal{
				Asset:       asset,
				TF:          tf,
				Direction:   out.Direction,
				Confidence:  out.Confidence,
				Reason:      out.Reason,
				GeneratedAt: now,
			}
			s.disp.Dispatch(ctx, sig)
		}
	}
}

func (s *Sweeper) evaluateKey(asset string, tf model.Timeframe) strategy.Outcome {
	base := s.store.Snapshot(asset, tf)

	if tf != s.cfg.BaseTF {
		return s.eval.Evaluate(base)
	}

	mid := s.store.Snapshot(asset, s.cfg.MidTF)
	high := s.store.Snapshot(asset, s.cfg.HighTF)
	return s.eval.EvaluateConfirmed(base, mid, high)
}
