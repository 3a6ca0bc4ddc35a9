// Package indicator provides deterministic, side-effect-free technical
// indicator calculations over an ordered candle sequence.
//
// Every function takes an immutable snapshot and returns freshly
// allocated output; repeated calls over the same input are
// bit-identical. Functions that need a minimum history report
// insufficient data through an ok return instead of producing partial
// values.
package indicator

import "signal-systemv1/internal/model"

// rangeEpsilon guards stochastic division when the high-low range of a
// window collapses to zero.
const rangeEpsilon = 1e-9

// Params holds the period lengths for the full indicator battery.
type Params struct {
	JawPeriod   int // Alligator jaw SMMA
	TeethPeriod int // Alligator teeth SMMA
	LipsPeriod  int // Alligator lips SMMA
	ATRPeriod   int
	StochK      int
	StochSmooth int
	StochD      int
	TrendEMA    int // long EMA for the trend-following rule
	BiasEMA     int // EMA used for multi-timeframe bias slope
}

// DefaultParams returns the standard period set.
func DefaultParams() Params {
	return Params{
		JawPeriod:   13,
		TeethPeriod: 8,
		LipsPeriod:  5,
		ATRPeriod:   14,
		StochK:      14,
		StochSmooth: 3,
		StochD:      3,
		TrendEMA:    150,
		BiasEMA:     100,
	}
}

// MinBars is the shortest history the full battery can be computed
// over. Rule families typically demand more; this is the floor below
// which Compute reports insufficient data.
func (p Params) MinBars() int {
	min := p.StochK + p.StochSmooth + p.StochD - 2
	if p.ATRPeriod+1 > min {
		min = p.ATRPeriod + 1
	}
	if p.JawPeriod > min {
		min = p.JawPeriod
	}
	return min
}

// Closes extracts the close series.
func Closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// MedianPrices extracts the (high+low)/2 series.
func MedianPrices(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = (c.High + c.Low) / 2
	}
	return out
}

// rollingMean computes the window mean at every index. Warm-up
// entries (index < period-1) are the mean of the values available so
// far, so the series is fully defined without NaNs.
func rollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
			out[i] = sum / float64(period)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}
