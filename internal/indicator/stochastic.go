package indicator

import "signal-systemv1/internal/model"

// Stochastic computes the smoothed stochastic oscillator.
//
//	%K_raw[i] = 100 * (close - min(low, kPeriod)) /
//	            (max(high, kPeriod) - min(low, kPeriod) + ε)
//
// %K is %K_raw smoothed over smooth bars; %D is the rolling mean of
// %K over dPeriod. The ε term keeps a collapsed high-low range from
// dividing by zero. ok is false when the history is shorter than
// kPeriod+smooth+dPeriod-2 bars.
func Stochastic(candles []model.Candle, kPeriod, smooth, dPeriod int) (k, d []float64, ok bool) {
	minBars := kPeriod + smooth + dPeriod - 2
	if kPeriod < 1 || smooth < 1 || dPeriod < 1 || len(candles) < minBars {
		return nil, nil, false
	}

	raw := make([]float64, len(candles))
	for i, c := range candles {
		lo, hi := c.Low, c.High
		start := i - kPeriod + 1
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
			if candles[j].High > hi {
				hi = candles[j].High
			}
		}
		raw[i] = 100 * (c.Close - lo) / (hi - lo + rangeEpsilon)
	}

	k = rollingMean(raw, smooth)
	d = rollingMean(k, dPeriod)
	return k, d, true
}
