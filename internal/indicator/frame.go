package indicator

import "signal-systemv1/internal/model"

// Frame is the full indicator battery computed over one candle
// snapshot. It is derived state, recomputed on demand and never
// mutated in place; signal rules read from it and nothing writes back.
type Frame struct {
	Candles []model.Candle // the snapshot itself
	HA      []model.Candle // Heikin-Ashi transform

	// Alligator trend lines: SMMA of the Heikin-Ashi median price.
	Jaw   []float64
	Teeth []float64
	Lips  []float64

	K   []float64 // smoothed stochastic %K
	D   []float64 // stochastic %D
	ATR []float64

	// TrendEMA is the long EMA of raw closes used by the
	// trend-following rule family.
	TrendEMA []float64

	FractalHigh []bool
	FractalLow  []bool
}

// Compute builds a Frame. ok is false when the snapshot is shorter
// than Params.MinBars; in that case no partial frame is returned.
func Compute(candles []model.Candle, p Params) (*Frame, bool) {
	if len(candles) < p.MinBars() {
		return nil, false
	}

	ha := HeikinAshi(candles)
	median := MedianPrices(ha)

	k, d, ok := Stochastic(ha, p.StochK, p.StochSmooth, p.StochD)
	if !ok {
		return nil, false
	}
	atr, ok := ATR(candles, p.ATRPeriod)
	if !ok {
		return nil, false
	}

	return &Frame{
		Candles:     candles,
		HA:          ha,
		Jaw:         SMMA(median, p.JawPeriod),
		Teeth:       SMMA(median, p.TeethPeriod),
		Lips:        SMMA(median, p.LipsPeriod),
		K:           k,
		D:           d,
		ATR:         atr,
		TrendEMA:    EMA(Closes(candles), p.TrendEMA),
		FractalHigh: FractalHighs(candles),
		FractalLow:  FractalLows(candles),
	}, true
}

// Last returns the final value of a series.
func Last(series []float64) float64 {
	return series[len(series)-1]
}

// LastCandle returns the most recent bar of a sequence.
func LastCandle(candles []model.Candle) model.Candle {
	return candles[len(candles)-1]
}
