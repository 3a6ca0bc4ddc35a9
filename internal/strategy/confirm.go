package strategy

import (
	"signal-systemv1/internal/indicator"
	"signal-systemv1/internal/model"
)

// Bias is the directional reading of an auxiliary timeframe.
type Bias int

const (
	// BiasUnknown means the timeframe has too little history to read
	// at all. Confirmation treats it as opposing (fails closed).
	BiasUnknown Bias = iota
	BiasNeutral
	BiasBullish
	BiasBearish
)

func (b Bias) String() string {
	switch b {
	case BiasNeutral:
		return "neutral"
	case BiasBullish:
		return "bullish"
	case BiasBearish:
		return "bearish"
	}
	return "unknown"
}

// biasSlopeLookback is how many bars back the EMA slope is measured.
const biasSlopeLookback = 5

// TimeframeBias reads an auxiliary timeframe: the sign of the bias-EMA
// slope over Heikin-Ashi closes must agree with the mean-close versus
// mean-open comparison, otherwise the timeframe is neutral.
func (e *Evaluator) TimeframeBias(candles []model.Candle) Bias {
	if len(candles) < e.cfg.MinBars.Bias || len(candles) <= biasSlopeLookback {
		return BiasUnknown
	}

	ha := indicator.HeikinAshi(candles)
	ema := indicator.EMA(indicator.Closes(ha), e.cfg.Params.BiasEMA)
	slope := ema[len(ema)-1] - ema[len(ema)-1-biasSlopeLookback]

	var closeSum, openSum float64
	for _, c := range ha {
		closeSum += c.Close
		openSum += c.Open
	}

	switch {
	case slope > 0 && closeSum > openSum:
		return BiasBullish
	case slope < 0 && closeSum < openSum:
		return BiasBearish
	}
	return BiasNeutral
}

// EvaluateConfirmed runs the configured rule family on the base
// timeframe and cross-checks the result against a middle and higher
// timeframe. The middle bias must agree with the signal and the
// higher bias must not oppose it; missing data on either auxiliary
// timeframe fails closed.
func (e *Evaluator) EvaluateConfirmed(base, mid, high []model.Candle) Outcome {
	raw := e.Evaluate(base)
	if raw.Direction == model.DirectionHold {
		return raw
	}

	midBias := e.TimeframeBias(mid)
	highBias := e.TimeframeBias(high)
	if midBias == BiasUnknown || highBias == BiasUnknown {
		return hold("confirmation: insufficient auxiliary data")
	}

	switch raw.Direction {
	case model.DirectionBuy:
		if midBias == BiasBullish && highBias != BiasBearish {
			raw.Reason += "; confirmed by higher timeframes"
			return raw
		}
	case model.DirectionSell:
		if midBias == BiasBearish && highBias != BiasBullish {
			raw.Reason += "; confirmed by higher timeframes"
			return raw
		}
	}
	return hold("confirmation: higher timeframe bias opposed")
}
