package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// candlesFrom construye una historia de velas a partir de cierres.
func candlesFrom(closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = Candle{Time: t0.Add(time.Duration(i) * time.Second), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestRSI_InsufficientHistory(t *testing.T) {
	assert.Equal(t, 50.0, RSI(candlesFrom(100, 101, 102), 14))
	assert.Equal(t, 50.0, RSI(nil, 14))
}

func TestRSI_AllGainsSaturates(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, RSI(candlesFrom(closes...), 14))
}

func TestRSI_AllLossesSaturates(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	assert.InDelta(t, 0.0, RSI(candlesFrom(closes...), 14), 0.001)
}

func TestRSI_FlatIsNeutral(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	assert.Equal(t, 50.0, RSI(candlesFrom(closes...), 14))
}

func TestRSI_MixedStaysInRange(t *testing.T) {
	closes := []float64{100, 102, 101, 104, 103, 106, 104, 108, 107, 110, 108, 112, 110, 114, 112, 116}
	rsi := RSI(candlesFrom(closes...), 14)
	assert.Greater(t, rsi, 50.0) // más subidas que bajadas
	assert.Less(t, rsi, 100.0)
}

func TestTrend_RelativeSlope(t *testing.T) {
	// 11 cierres de 100 a 110 → (110-100)/100 = 0.10
	closes := make([]float64, 11)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.InDelta(t, 0.10, Trend(candlesFrom(closes...), 10), 0.0001)
}

func TestTrend_InsufficientHistory(t *testing.T) {
	assert.Equal(t, 0.0, Trend(candlesFrom(100, 105), 10))
	assert.Equal(t, 0.0, Trend(nil, 10))
}

func TestTrend_Downtrend(t *testing.T) {
	closes := []float64{100, 99, 98, 97, 96, 95, 94, 93, 92, 91, 90}
	assert.InDelta(t, -0.10, Trend(candlesFrom(closes...), 10), 0.0001)
}

func TestVolatility_KnownReturns(t *testing.T) {
	// retornos [0.10, -0.10] → media 0, stddev = 0.10
	vol := Volatility(candlesFrom(100, 110, 99), 2)
	assert.InDelta(t, 0.10, vol, 0.001)
}

func TestVolatility_ConstantIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(candlesFrom(100, 100, 100, 100, 100), 4))
}

func TestVolatility_InsufficientHistory(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(candlesFrom(100, 105), 10))
}

func TestSMA_FullWindow(t *testing.T) {
	assert.InDelta(t, 102.0, SMA(candlesFrom(100, 101, 102, 103, 104), 5), 0.0001)
}

func TestSMA_ShortHistoryFallsBackToLastClose(t *testing.T) {
	assert.Equal(t, 104.0, SMA(candlesFrom(100, 104), 5))
	assert.Equal(t, 0.0, SMA(nil, 5))
}
