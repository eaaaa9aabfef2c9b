package trader

import (
	"math/rand"
	"sort"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// balanced.go — el arquetipo generalista.
//
// Probabilidad de operar:
//
//	p = clamp(0.55 + 0.20 × normRisk + phaseModifier, 0.05, 0.95)
//
// Score de compra por candidato:
//
//	score = 50 + vol × 200 × normRisk + trend × trendWeight(risk) + noise(±10) + warmupBonus
//
// Elección: weighted-random entre los top-3 scores (uniforme si hay scores
// negativos). Tamaño: fracción de las acciones asequibles escalada por
// riesgo (~15-25% conservador hasta ~55-80% agresivo) × variación aleatoria,
// mínimo 1 acción. Venta: score con aversión a pérdidas y sesgo de
// downtrend; solo vende si el mejor score ≥ 40.

const (
	sellScoreThreshold = 40.0
	buyScoreBase       = 50.0
	buyNoiseRange      = 10.0
)

// phaseModifier ajusta las ganas de operar según el régimen global.
func phaseModifier(p domain.Phase) float64 {
	switch p {
	case domain.PhaseBoom:
		return 0.10
	case domain.PhaseRecovery:
		return 0.05
	case domain.PhaseRecession:
		return -0.10
	case domain.PhasePanic:
		return -0.15
	default:
		return 0
	}
}

// trendWeight: los agresivos persiguen la tendencia con más peso.
func trendWeight(normRisk float64) float64 {
	return 60 + 40*normRisk
}

func (e *Engine) decideBalanced(
	rng *rand.Rand,
	agent domain.Agent,
	instruments []domain.Instrument,
	state domain.MarketPhaseState,
) *domain.TradeIntent {
	normRisk := agent.NormalizedRisk()
	p := engine.Clamp(0.55+0.20*normRisk+phaseModifier(state.Global), 0.05, 0.95)
	if !engine.Chance(rng, p) {
		return nil
	}

	buyable := affordable(agent, instruments)
	sellable := owned(agent, instruments)

	// Lado por disponibilidad; si ambos son posibles, moneda al aire;
	// si ninguno, el agente no puede actuar.
	var side domain.Side
	switch {
	case len(buyable) > 0 && len(sellable) > 0:
		side = domain.SideBuy
		if rng.Float64() < 0.5 {
			side = domain.SideSell
		}
	case len(buyable) > 0:
		side = domain.SideBuy
	case len(sellable) > 0:
		side = domain.SideSell
	default:
		return nil
	}

	if side == domain.SideBuy {
		return e.balancedBuy(rng, agent, buyable, normRisk)
	}
	return e.balancedSell(rng, agent, sellable, normRisk)
}

type scored struct {
	inst    domain.Instrument
	score   float64
	factors domain.BuyFactors
}

func (e *Engine) balancedBuy(
	rng *rand.Rand,
	agent domain.Agent,
	candidates []domain.Instrument,
	normRisk float64,
) *domain.TradeIntent {
	scoredList := make([]scored, 0, len(candidates))
	for _, inst := range candidates {
		sig := e.signalsFor(inst)
		noise := engine.Uniform(rng, -buyNoiseRange, buyNoiseRange)
		bonus := e.bonus[inst.Symbol]
		score := buyScoreBase +
			sig.volatility*200*normRisk +
			sig.trend*trendWeight(normRisk) +
			noise + bonus
		scoredList = append(scoredList, scored{
			inst:  inst,
			score: score,
			factors: domain.BuyFactors{
				Volatility:    sig.volatility,
				Trend:         sig.trend,
				Score:         score,
				Noise:         noise,
				RiskTolerance: agent.Settings.RiskTolerance,
				WarmupBonus:   bonus,
			},
		})
	}

	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].score > scoredList[j].score })
	top := scoredList
	if len(top) > 3 {
		top = top[:3]
	}

	pick := weightedPick(rng, top)

	shares := positionSize(rng, agent, pick.inst, normRisk)
	if shares <= 0 {
		return nil
	}

	return &domain.TradeIntent{
		AgentID: agent.ID,
		Symbol:  pick.inst.Symbol,
		Side:    domain.SideBuy,
		Shares:  shares,
		Factors: pick.factors,
	}
}

// weightedPick elige entre los top scores con peso proporcional al score.
// Con algún score negativo el peso no tiene sentido: cae a elección uniforme.
func weightedPick(rng *rand.Rand, top []scored) scored {
	total := 0.0
	for _, s := range top {
		if s.score <= 0 {
			return top[rng.Intn(len(top))]
		}
		total += s.score
	}
	r := rng.Float64() * total
	for _, s := range top {
		r -= s.score
		if r <= 0 {
			return s
		}
	}
	return top[len(top)-1]
}

// positionSize devuelve las acciones a comprar: asequibles × fracción
// escalada por riesgo × variación uniforme, con suelo de 1 acción.
func positionSize(rng *rand.Rand, agent domain.Agent, inst domain.Instrument, normRisk float64) int {
	maxShares := int(agent.Portfolio.Cash / inst.CurrentPrice)
	if maxShares <= 0 {
		return 0
	}
	// normRisk -1 → [0.15, 0.25]; +1 → [0.55, 0.80]
	minFrac := 0.15 + 0.20*(normRisk+1)
	maxFrac := 0.25 + 0.275*(normRisk+1)
	frac := engine.Uniform(rng, minFrac, maxFrac)

	shares := int(float64(maxShares) * frac)
	if shares < 1 {
		shares = 1
	}
	return shares
}

func (e *Engine) balancedSell(
	rng *rand.Rand,
	agent domain.Agent,
	positions []domain.Instrument,
	normRisk float64,
) *domain.TradeIntent {
	var best *domain.TradeIntent
	bestScore := 0.0

	for _, inst := range positions {
		h := agent.Portfolio.Holdings[inst.Symbol]
		if h.Shares <= 0 || h.AvgBuyPrice <= 0 {
			continue
		}
		sig := e.signalsFor(inst)
		plPct := 100 * (inst.CurrentPrice - h.AvgBuyPrice) / h.AvgBuyPrice

		// Aversión a pérdidas: los aversos puntúan más alto soltar
		// posiciones perdedoras; los agresivos las aguantan.
		lossAversion := -plPct * (0.5 - 0.5*normRisk)
		downtrend := 0.0
		if sig.trend < 0 {
			downtrend = -sig.trend * 100
		}
		score := buyScoreBase + lossAversion + downtrend + engine.Uniform(rng, -buyNoiseRange, buyNoiseRange)

		if score > bestScore {
			bestScore = score
			shares := h.Shares
			if h.Shares > 1 {
				frac := engine.Uniform(rng, 0.25, 1.0)
				shares = int(float64(h.Shares) * frac)
				if shares < 1 {
					shares = 1
				}
			}
			best = &domain.TradeIntent{
				AgentID: agent.ID,
				Symbol:  inst.Symbol,
				Side:    domain.SideSell,
				Shares:  shares,
				Factors: domain.SellFactors{
					Score:         score,
					PLPercent:     plPct,
					Trend:         sig.trend,
					RiskTolerance: agent.Settings.RiskTolerance,
				},
			}
		}
	}

	if best == nil || bestScore < sellScoreThreshold {
		return nil
	}
	return best
}
