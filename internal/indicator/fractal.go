package indicator

import "signal-systemv1/internal/model"

// fractalWing is the number of neighbors required on each side of a
// fractal point (symmetric 5-bar window).
const fractalWing = 2

// FractalHighs marks bars whose high strictly exceeds the highs of
// the two bars before and the two after. Bars without two neighbors
// on both sides are never fractals, so buffers shorter than five bars
// yield none.
func FractalHighs(candles []model.Candle) []bool {
	out := make([]bool, len(candles))
	for i := fractalWing; i < len(candles)-fractalWing; i++ {
		h := candles[i].High
		isFractal := true
		for j := i - fractalWing; j <= i+fractalWing; j++ {
			if j != i && candles[j].High >= h {
				isFractal = false
				break
			}
		}
		out[i] = isFractal
	}
	return out
}

// FractalLows is the mirror condition on lows.
func FractalLows(candles []model.Candle) []bool {
	out := make([]bool, len(candles))
	for i := fractalWing; i < len(candles)-fractalWing; i++ {
		l := candles[i].Low
		isFractal := true
		for j := i - fractalWing; j <= i+fractalWing; j++ {
			if j != i && candles[j].Low <= l {
				isFractal = false
				break
			}
		}
		out[i] = isFractal
	}
	return out
}
