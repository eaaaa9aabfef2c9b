package trader

import (
	"math/rand"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// signals.go — arquetipos dirigidos por una sola regla: momentum (tendencia),
// contrarian (RSI), fundamentalist (fair value) y noise (puro azar).

// decideMomentum opera cuando |trend| supera el umbral del agente: compra el
// uptrend más fuerte, vende proporcionalmente al downtrend en las posiciones.
func (e *Engine) decideMomentum(rng *rand.Rand, agent domain.Agent, instruments []domain.Instrument) *domain.TradeIntent {
	threshold := agent.Settings.TrendThreshold
	if threshold <= 0 {
		threshold = 0.02
	}

	// Primero ventas: soltar posiciones en downtrend pesa más que abrir.
	var bestSell *domain.TradeIntent
	worstTrend := -threshold
	for _, inst := range owned(agent, instruments) {
		trend := domain.Trend(inst.History, e.cfg.TrendLookback)
		if trend >= worstTrend {
			continue
		}
		worstTrend = trend
		held := agent.HoldingShares(inst.Symbol)
		// Venta proporcional a la fuerza del downtrend.
		frac := engine.Clamp(-trend*8, 0.2, 1.0)
		shares := engine.ClampInt(int(float64(held)*frac), 1, held)
		bestSell = &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideSell,
			Shares:  shares,
			Factors: domain.SignalFactors{Signal: "trend", Value: trend, Threshold: threshold},
		}
	}
	if bestSell != nil {
		return bestSell
	}

	var bestBuy *domain.TradeIntent
	bestTrend := threshold
	for _, inst := range affordable(agent, instruments) {
		trend := domain.Trend(inst.History, e.cfg.TrendLookback)
		if trend <= bestTrend {
			continue
		}
		bestTrend = trend
		shares := positionSize(rng, agent, inst, agent.NormalizedRisk())
		if shares <= 0 {
			continue
		}
		bestBuy = &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideBuy,
			Shares:  shares,
			Factors: domain.SignalFactors{Signal: "trend", Value: trend, Threshold: threshold},
		}
	}
	return bestBuy
}

// decideContrarian compra RSI < oversold y vende posiciones con RSI > overbought.
func (e *Engine) decideContrarian(rng *rand.Rand, agent domain.Agent, instruments []domain.Instrument) *domain.TradeIntent {
	oversold := agent.Settings.RSIOversold
	if oversold <= 0 {
		oversold = 30
	}
	overbought := agent.Settings.RSIOverbought
	if overbought <= 0 {
		overbought = 70
	}

	for _, inst := range owned(agent, instruments) {
		rsi := domain.RSI(inst.History, e.cfg.RSIPeriod)
		if rsi <= overbought {
			continue
		}
		held := agent.HoldingShares(inst.Symbol)
		return &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideSell,
			Shares:  held,
			Factors: domain.SignalFactors{Signal: "rsi", Value: rsi, Threshold: overbought},
		}
	}

	var best *domain.TradeIntent
	lowest := oversold
	for _, inst := range affordable(agent, instruments) {
		rsi := domain.RSI(inst.History, e.cfg.RSIPeriod)
		if rsi >= lowest {
			continue
		}
		lowest = rsi
		shares := positionSize(rng, agent, inst, agent.NormalizedRisk())
		if shares <= 0 {
			continue
		}
		best = &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideBuy,
			Shares:  shares,
			Factors: domain.SignalFactors{Signal: "rsi", Value: rsi, Threshold: oversold},
		}
	}
	return best
}

// decideFundamentalist compra bajo fair value y vende posiciones sobre fair
// value, siempre más allá de la tolerancia del agente.
func (e *Engine) decideFundamentalist(rng *rand.Rand, agent domain.Agent, instruments []domain.Instrument) *domain.TradeIntent {
	tol := agent.Settings.FairValueTol
	if tol <= 0 {
		tol = 0.10
	}

	for _, inst := range owned(agent, instruments) {
		dev := inst.FairValueDeviation()
		if dev <= tol {
			continue
		}
		held := agent.HoldingShares(inst.Symbol)
		return &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideSell,
			Shares:  held,
			Factors: domain.SignalFactors{Signal: "fair_value", Value: dev, Threshold: tol},
		}
	}

	var best *domain.TradeIntent
	deepest := -tol
	for _, inst := range affordable(agent, instruments) {
		dev := inst.FairValueDeviation()
		if dev >= deepest {
			continue
		}
		deepest = dev
		shares := positionSize(rng, agent, inst, agent.NormalizedRisk())
		if shares <= 0 {
			continue
		}
		best = &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideBuy,
			Shares:  shares,
			Factors: domain.SignalFactors{Signal: "fair_value", Value: dev, Threshold: tol},
		}
	}
	return best
}

// decideNoise opera al azar con la frecuencia configurada. Tamaños pequeños:
// el ruido da liquidez, no mueve el mercado.
func (e *Engine) decideNoise(rng *rand.Rand, agent domain.Agent, instruments []domain.Instrument) *domain.TradeIntent {
	freq := agent.Settings.TradeFrequency
	if freq <= 0 {
		freq = 0.3
	}
	if !engine.Chance(rng, freq) {
		return nil
	}

	buyable := affordable(agent, instruments)
	sellable := owned(agent, instruments)

	wantBuy := rng.Float64() < 0.5
	if wantBuy && len(buyable) == 0 {
		wantBuy = false
	}
	if !wantBuy && len(sellable) == 0 {
		wantBuy = len(buyable) > 0
		if !wantBuy {
			return nil
		}
	}

	if wantBuy {
		inst := buyable[rng.Intn(len(buyable))]
		maxShares := int(agent.Portfolio.Cash / inst.CurrentPrice)
		shares := engine.ClampInt(1+rng.Intn(5), 1, maxShares)
		return &domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideBuy,
			Shares:  shares,
			Factors: domain.SignalFactors{Signal: "noise", Value: freq},
		}
	}

	inst := sellable[rng.Intn(len(sellable))]
	held := agent.HoldingShares(inst.Symbol)
	shares := engine.ClampInt(1+rng.Intn(5), 1, held)
	return &domain.TradeIntent{
		AgentID: agent.ID,
		Symbol:  inst.Symbol,
		Side:    domain.SideSell,
		Shares:  shares,
		Factors: domain.SignalFactors{Signal: "noise", Value: freq},
	}
}
