package indicator

import "signal-systemv1/internal/model"

// BullishEngulfing reports whether the last two bars form a bullish
// engulfing pattern: a bearish bar followed by a bullish bar whose
// body spans the previous body.
func BullishEngulfing(candles []model.Candle) bool {
	if len(candles) < 2 {
		return false
	}
	prev, last := candles[len(candles)-2], candles[len(candles)-1]
	return last.Close > last.Open &&
		prev.Close < prev.Open &&
		last.Close > prev.Open &&
		last.Open < prev.Close
}

// BearishEngulfing is the mirror pattern.
func BearishEngulfing(candles []model.Candle) bool {
	if len(candles) < 2 {
		return false
	}
	prev, last := candles[len(candles)-2], candles[len(candles)-1]
	return last.Close < last.Open &&
		prev.Close > prev.Open &&
		last.Open > prev.Close &&
		last.Close < prev.Open
}
