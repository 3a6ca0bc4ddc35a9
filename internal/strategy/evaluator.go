// Package strategy evaluates rule-based trade signals over indicator
// output, with optional multi-timeframe confirmation.
//
// Three interchangeable rule families exist: trend-following (close
// vs a long EMA), trend-reversal (smoothed stochastic vs extreme
// thresholds) and a stricter composite used for the single-timeframe
// buy/sell variant. Insufficient history is always an explicit HOLD
// outcome, never a partial evaluation.
package strategy

import (
	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
)

// Family selects a rule set.
type Family string

const (
	FamilyTrend     Family = "trend"
	FamilyReversal  Family = "reversal"
	FamilyComposite Family = "composite"
)

// MinBars is the minimum history per rule family. Each family has its
// own warm-up, dominated by its slowest indicator; every threshold is
// configurable.
type MinBars struct {
	Trend     int // EMA(150) needs a long runway
	Reversal  int
	Composite int
	Bias      int // auxiliary-timeframe bias for confirmation
}

// DefaultMinBars returns the committed thresholds.
func DefaultMinBars() MinBars {
	return MinBars{Trend: 150, Reversal: 30, Composite: 50, Bias: 50}
}

// Config parameterizes an Evaluator.
type Config struct {
	Family  Family
	Params  indicator.Params
	MinBars MinBars

	Oversold   float64 // reversal family, default 20
	Overbought float64 // reversal family, default 80

	// Composite extreme zone: %K must be below BuyZone for a buy and
	// above SellZone for a sell at the moment of the cross.
	BuyZone  float64 // default 30
	SellZone float64 // default 80

	BiasWindow int // trailing bars for the composite bias check, default 30
}

func (c Config) withDefaults() Config {
	if c.Family == "" {
		c.Family = FamilyComposite
	}
	zero := indicator.Params{}
	if c.Params == zero {
		c.Params = indicator.DefaultParams()
	}
	if c.MinBars == (MinBars{}) {
		c.MinBars = DefaultMinBars()
	}
	if c.Oversold == 0 {
		c.Oversold = 20
	}
	if c.Overbought == 0 {
		c.Overbought = 80
	}
	if c.BuyZone == 0 {
		c.BuyZone = 30
	}
	if c.SellZone == 0 {
		c.SellZone = 80
	}
	if c.BiasWindow == 0 {
		c.BiasWindow = 30
	}
	return c
}

// Outcome is the result of evaluating one snapshot.
type Outcome struct {
	Direction  model.Direction
	Confidence int // 0..100, 100 for every actionable outcome
	Reason     string
}

func hold(reason string) Outcome {
	return Outcome{Direction: model.DirectionHold, Confidence: 0, Reason: reason}
}

func actionable(dir model.Direction, reason string) Outcome {
	return Outcome{Direction: dir, Confidence: 100, Reason: reason}
}

// Evaluator applies one rule family to candle snapshots. It is
// stateless and safe for concurrent use.
type Evaluator struct {
	cfg Config
}

// New creates an evaluator, filling config defaults.
func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg.withDefaults()}
}

// Family returns the active rule family.
func (e *Evaluator) Family() Family { return e.cfg.Family }

// Evaluate produces a raw (unconfirmed) outcome for one snapshot.
func (e *Evaluator) Evaluate(candles []model.Candle) Outcome {
	switch e.cfg.Family {
	case FamilyTrend:
		return e.evalTrend(candles)
	case FamilyReversal:
		return e.evalReversal(candles)
	default:
		return e.evalComposite(candles)
	}
}

// evalTrend compares the last close against the long EMA.
func (e *Evaluator) evalTrend(candles []model.Candle) Outcome {
	if len(candles) < e.cfg.MinBars.Trend {
		return hold("insufficient data")
	}
	ema := indicator.EMA(indicator.Closes(candles), e.cfg.Params.TrendEMA)
	last := indicator.LastCandle(candles).Close
	switch {
	case last > indicator.Last(ema):
		return actionable(model.DirectionBuy, "close above long EMA")
	case last < indicator.Last(ema):
		return actionable(model.DirectionSell, "close below long EMA")
	}
	return hold("close on long EMA")
}

// evalReversal reads the smoothed stochastic against the extreme
// thresholds.
func (e *Evaluator) evalReversal(candles []model.Candle) Outcome {
	if len(candles) < e.cfg.MinBars.Reversal {
		return hold("insufficient data")
	}
	p := e.cfg.Params
	k, d, ok := indicator.Stochastic(candles, p.StochK, p.StochSmooth, p.StochD)
	if !ok {
		return hold("insufficient data")
	}
	lastK, lastD := indicator.Last(k), indicator.Last(d)
	switch {
	case lastK < e.cfg.Oversold && lastK > lastD:
		return actionable(model.DirectionBuy, "stochastic oversold cross up")
	case lastK > e.cfg.Overbought && lastK < lastD:
		return actionable(model.DirectionSell, "stochastic overbought cross down")
	}
	return hold("stochastic neutral")
}

// CompositeConditions is the per-leg breakdown of the composite rule,
// exposed so callers can report why a signal did or did not fire.
type CompositeConditions struct {
	AboveAlligator bool // HA close above jaw, teeth and lips
	BelowAlligator bool
	CrossUp        bool // %K above %D
	CrossDown      bool
	InBuyZone      bool // %K below the buy zone
	InSellZone     bool
	BullishBias    bool // trailing-window mean HA close vs open
	BearishBias    bool
	BullEngulfing  bool // last two raw bars
	BearEngulfing  bool
	PositiveATR    bool
}

// Buy reports whether every bullish leg holds.
func (c CompositeConditions) Buy() bool {
	return c.AboveAlligator && c.CrossUp && c.InBuyZone && c.BullishBias && c.BullEngulfing && c.PositiveATR
}

// Sell reports whether every bearish leg holds.
func (c CompositeConditions) Sell() bool {
	return c.BelowAlligator && c.CrossDown && c.InSellZone && c.BearishBias && c.BearEngulfing && c.PositiveATR
}

// Conditions computes the composite breakdown for a snapshot. ok is
// false when history is too short for the battery.
func (e *Evaluator) Conditions(candles []model.Candle) (CompositeConditions, bool) {
	if len(candles) < e.cfg.MinBars.Composite {
		return CompositeConditions{}, false
	}
	f, ok := indicator.Compute(candles, e.cfg.Params)
	if !ok {
		return CompositeConditions{}, false
	}

	haLast := indicator.LastCandle(f.HA)
	jaw, teeth, lips := indicator.Last(f.Jaw), indicator.Last(f.Teeth), indicator.Last(f.Lips)
	lastK, lastD := indicator.Last(f.K), indicator.Last(f.D)

	window := f.HA
	if len(window) > e.cfg.BiasWindow {
		window = window[len(window)-e.cfg.BiasWindow:]
	}
	// Engulfing is scored on raw bars: HA opens are midpoints of the
	// previous HA body, so an HA bar can never open inside it.
	raw := f.Candles
	if len(raw) > e.cfg.BiasWindow {
		raw = raw[len(raw)-e.cfg.BiasWindow:]
	}
	var closeSum, openSum float64
	for _, c := range window {
		closeSum += c.Close
		openSum += c.Open
	}

	return CompositeConditions{
		AboveAlligator: haLast.Close > jaw && haLast.Close > teeth && haLast.Close > lips,
		BelowAlligator: haLast.Close < jaw && haLast.Close < teeth && haLast.Close < lips,
		CrossUp:        lastK > lastD,
		CrossDown:      lastK < lastD,
		InBuyZone:      lastK < e.cfg.BuyZone,
		InSellZone:     lastK > e.cfg.SellZone,
		BullishBias:    closeSum > openSum,
		BearishBias:    closeSum < openSum,
		BullEngulfing:  indicator.BullishEngulfing(raw),
		BearEngulfing:  indicator.BearishEngulfing(raw),
		PositiveATR:    indicator.Last(f.ATR) > 0,
	}, true
}

// evalComposite requires every leg of the strict rule to agree.
func (e *Evaluator) evalComposite(candles []model.Candle) Outcome {
	cond, ok := e.Conditions(candles)
	if !ok {
		return hold("insufficient data")
	}
	switch {
	case cond.Buy():
		return actionable(model.DirectionBuy, "composite: all bullish legs")
	case cond.Sell():
		return actionable(model.DirectionSell, "composite: all bearish legs")
	}
	return hold("composite legs disagree")
}
