package market

import (
	"math"
	"math/rand"
	"time"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

const (
	baseVolatilityPct = 0.025
	wickFraction      = 0.3

	// Impacto de un trade individual
	minImpact       = 0.0001
	maxImpact       = 0.0005
	maxVolumeFactor = 20.0
	// CircuitBreakerPct limita el impacto de un solo trade a ±2% del precio.
	CircuitBreakerPct = 0.02
)

// AdvanceCandle appends one new candle to the instrument, moved by the
// sector bias and the phase volatility multiplier.
//
// Fórmulas:
//
//	baseVol = price × 0.025 × volMult
//	trend   = uniform(-0.5, 0.5) × baseVol + sectorBias × price
//	close   = max(1, open + trend)
//	wicks   = uniform(0, 0.3 × baseVol) más allá de open/close, low ≥ 0.5
//
// El timestamp de la nueva vela es max(now, lastTime+1s): estrictamente
// creciente aunque el warmup ejecute muchos ciclos en el mismo instante.
func AdvanceCandle(rng *rand.Rand, inst domain.Instrument, sectorBias, volMult float64, now time.Time) domain.Instrument {
	price := inst.CurrentPrice
	baseVol := price * baseVolatilityPct * volMult

	open := price
	trend := engine.Uniform(rng, -0.5, 0.5)*baseVol + sectorBias*price
	close := math.Max(1, open+trend)

	high := math.Max(open, close) + engine.Uniform(rng, 0, wickFraction*baseVol)
	low := math.Min(open, close) - engine.Uniform(rng, 0, wickFraction*baseVol)
	if low < domain.PriceFloor {
		low = domain.PriceFloor
	}

	t := now
	if last, ok := inst.LastCandle(); ok {
		if next := last.Time.Add(time.Second); t.Before(next) {
			t = next
		}
	}

	return inst.WithHistory(domain.Candle{
		Time: t, Open: open, High: high, Low: low, Close: close,
	})
}

// ApplyImpact moves the price by the bounded impact of a single trade and
// keeps the last candle consistent with the new price.
//
//	baseImpact   = uniform(0.0001, 0.0005)
//	volumeFactor = min(shares, 20)
//	rawDelta     = price × baseImpact × volumeFactor × dir
//	delta        = clip(rawDelta, ±0.02 × price)   // circuit breaker
//	newPrice     = max(0.5, price + delta)
func ApplyImpact(rng *rand.Rand, inst domain.Instrument, side domain.Side, shares int) domain.Instrument {
	if shares <= 0 {
		return inst
	}

	price := inst.CurrentPrice
	baseImpact := engine.Uniform(rng, minImpact, maxImpact)
	volumeFactor := math.Min(float64(shares), maxVolumeFactor)
	rawDelta := price * baseImpact * volumeFactor * side.Dir()

	limit := CircuitBreakerPct * price
	delta := engine.Clamp(rawDelta, -limit, limit)

	newPrice := math.Max(domain.PriceFloor, price+delta)
	return withAdjustedClose(inst, newPrice)
}

// ApplyShock aplica un shock porcentual (negativo en crashes) respetando el
// suelo de precio y la consistencia de la última vela.
func ApplyShock(inst domain.Instrument, shockPct float64) domain.Instrument {
	newPrice := math.Max(domain.PriceFloor, inst.CurrentPrice*(1+shockPct))
	return withAdjustedClose(inst, newPrice)
}

// withAdjustedClose reescribe el close de la última vela manteniendo los
// invariantes high ≥ max(open, close) y low ≤ min(open, close).
func withAdjustedClose(inst domain.Instrument, newPrice float64) domain.Instrument {
	last, ok := inst.LastCandle()
	prev := inst.CurrentPrice
	if !ok {
		inst.CurrentPrice = newPrice
		inst.Change = newPrice - prev
		if prev > 0 {
			inst.ChangePercent = 100 * (newPrice - prev) / prev
		}
		inst.MarketCap = newPrice * inst.FloatShares
		return inst
	}

	last.Close = newPrice
	if last.High < newPrice {
		last.High = newPrice
	}
	if last.Low > newPrice {
		last.Low = newPrice
	}

	hist := make([]domain.Candle, len(inst.History))
	copy(hist, inst.History)
	hist[len(hist)-1] = last

	inst.History = hist
	inst.CurrentPrice = newPrice
	inst.Change = newPrice - prev
	if prev > 0 {
		inst.ChangePercent = 100 * (newPrice - prev) / prev
	}
	inst.MarketCap = newPrice * inst.FloatShares
	return inst
}
