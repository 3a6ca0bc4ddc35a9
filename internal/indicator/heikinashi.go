package indicator

import (
	"math"

	"signal-systemv1/internal/model"
)

// HeikinAshi transforms raw candles into their smoothed Heikin-Ashi
// form:
//
//	haClose[i] = (open+high+low+close)/4
//	haOpen[0]  = open[0]
//	haOpen[i]  = (haOpen[i-1] + haClose[i-1]) / 2
//	haHigh/haLow = extremes of (haOpen, haClose, rawHigh/rawLow)
//
// Timestamps and volume carry over unchanged.
func HeikinAshi(candles []model.Candle) []model.Candle {
	out := make([]model.Candle, len(candles))
	for i, c := range candles {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4
		var haOpen float64
		if i == 0 {
			haOpen = c.Open
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2
		}
		out[i] = model.Candle{
			TS:     c.TS,
			Open:   haOpen,
			High:   math.Max(c.High, math.Max(haOpen, haClose)),
			Low:    math.Min(c.Low, math.Min(haOpen, haClose)),
			Close:  haClose,
			Volume: c.Volume,
		}
	}
	return out
}
