package indicator

import (
	"math"

	"signal-systemv1/internal/model"
)

// TrueRanges computes the true range series:
// max(high-low, |high-prevClose|, |low-prevClose|). The first bar has
// no previous close and uses high-low.
func TrueRanges(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		tr := c.High - c.Low
		if i > 0 {
			pc := candles[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(c.High-pc), math.Abs(c.Low-pc)))
		}
		out[i] = tr
	}
	return out
}

// ATR computes the average true range as a simple rolling mean of the
// true range over period. ok is false when fewer than period+1 bars
// are available; entries before index period-1 are warm-up means and
// should not be read by consumers.
func ATR(candles []model.Candle, period int) ([]float64, bool) {
	if period < 1 || len(candles) < period+1 {
		return nil, false
	}
	return rollingMean(TrueRanges(candles), period), true
}
