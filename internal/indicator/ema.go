package indicator

// EMA computes the exponential moving average, seeded with the first
// value: ema[0] = v[0], ema[i] = v[i]*k + ema[i-1]*(1-k) with
// k = 2/(period+1). Returns nil for empty input.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period < 1 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMMA computes the Wilder-style smoothed moving average, seeded with
// the first value: smma[i] = (smma[i-1]*(period-1) + v[i]) / period.
// Returns nil for empty input.
func SMMA(values []float64, period int) []float64 {
	if len(values) == 0 || period < 1 {
		return nil
	}
	p := float64(period)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (out[i-1]*(p-1) + values[i]) / p
	}
	return out
}
