package indicator

import (
	"math"
	"testing"

	"signal-systemv1/internal/model"
)

func TestStochastic_CollapsedRangeIsFinite(t *testing.T) {
	// Every bar identical: the high-low range is exactly zero and only
	// the epsilon term keeps the division defined.
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = bar(5, 5, 5)
	}

	k, d, ok := Stochastic(candles, 14, 3, 3)
	if !ok {
		t.Fatal("expected ok")
	}
	for i := range k {
		if math.IsNaN(k[i]) || math.IsInf(k[i], 0) {
			t.Fatalf("k[%d] not finite: %v", i, k[i])
		}
		if math.IsNaN(d[i]) || math.IsInf(d[i], 0) {
			t.Fatalf("d[%d] not finite: %v", i, d[i])
		}
		if !almostEqual(k[i], 0) {
			t.Errorf("k[%d] = %v, want 0 for flat series", i, k[i])
		}
	}
}

func TestStochastic_CloseAtExtremes(t *testing.T) {
	// Rising closes pinned to the top of each bar's range drive %K to
	// the top of the scale.
	candles := make([]model.Candle, 30)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = model.Candle{Open: price - 1, High: price, Low: price - 2, Close: price}
	}

	k, d, ok := Stochastic(candles, 14, 3, 3)
	if !ok {
		t.Fatal("expected ok")
	}
	lastK, lastD := k[len(k)-1], d[len(d)-1]
	if lastK < 90 {
		t.Errorf("lastK = %v, expected near 100 for closes at the high", lastK)
	}
	if lastD < 90 {
		t.Errorf("lastD = %v, expected near 100", lastD)
	}
	for i := range k {
		if k[i] < 0 || k[i] > 100 {
			t.Errorf("k[%d] = %v out of [0,100]", i, k[i])
		}
	}
}

func TestStochastic_InsufficientHistory(t *testing.T) {
	candles := make([]model.Candle, 17) // need 14+3+3-2 = 18
	for i := range candles {
		candles[i] = bar(2, 1, 1.5)
	}
	if _, _, ok := Stochastic(candles, 14, 3, 3); ok {
		t.Error("expected ok=false below minimum history")
	}
	if _, _, ok := Stochastic(candles, 0, 3, 3); ok {
		t.Error("expected ok=false for invalid period")
	}
}
