package trader

import (
	"math/rand"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Config controla las ventanas de señal del motor de decisión.
type Config struct {
	TrendLookback      int
	VolatilityLookback int
	RSIPeriod          int
}

// DefaultConfig devuelve ventanas razonables para velas por ciclo.
func DefaultConfig() Config {
	return Config{
		TrendLookback:      10,
		VolatilityLookback: 10,
		RSIPeriod:          domain.RSIPeriod,
	}
}

// Engine evalúa agentes autónomos: cada ciclo emite COMO MUCHO un
// TradeIntent por agente. "No puedo operar" es un intent nil, nunca un error.
type Engine struct {
	cfg   Config
	bonus map[string]float64 // warmup: bonus de score de compra por símbolo
}

// New crea un Engine de decisión.
func New(cfg Config) *Engine {
	if cfg.TrendLookback <= 0 {
		cfg.TrendLookback = 10
	}
	if cfg.VolatilityLookback <= 0 {
		cfg.VolatilityLookback = 10
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = domain.RSIPeriod
	}
	return &Engine{cfg: cfg}
}

// SetWarmupBonus instala (o limpia, con nil) el bonus de warmup que empuja
// las compras hacia instrumentos poco operados.
func (e *Engine) SetWarmupBonus(bonus map[string]float64) {
	e.bonus = bonus
}

// signals son las señales técnicas de un instrumento en este ciclo.
type signals struct {
	trend      float64
	volatility float64
	rsi        float64
}

func (e *Engine) signalsFor(inst domain.Instrument) signals {
	return signals{
		trend:      domain.Trend(inst.History, e.cfg.TrendLookback),
		volatility: domain.Volatility(inst.History, e.cfg.VolatilityLookback),
		rsi:        domain.RSI(inst.History, e.cfg.RSIPeriod),
	}
}

// Decide emite el intent del agente para este ciclo, o nil si no actúa.
// Los market makers no emiten trades aquí: cotizan vía Quote.
func (e *Engine) Decide(
	rng *rand.Rand,
	agent domain.Agent,
	instruments []domain.Instrument,
	state domain.MarketPhaseState,
) *domain.TradeIntent {
	if len(instruments) == 0 {
		return nil
	}

	switch agent.Settings.Archetype {
	case domain.ArchetypeBalanced:
		return e.decideBalanced(rng, agent, instruments, state)
	case domain.ArchetypeMomentum:
		return e.decideMomentum(rng, agent, instruments)
	case domain.ArchetypeContrarian:
		return e.decideContrarian(rng, agent, instruments)
	case domain.ArchetypeFundamentalist:
		return e.decideFundamentalist(rng, agent, instruments)
	case domain.ArchetypeNoise:
		return e.decideNoise(rng, agent, instruments)
	default:
		return nil
	}
}

// affordable devuelve los instrumentos que el agente puede comprar (≥1 acción).
func affordable(agent domain.Agent, instruments []domain.Instrument) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.CurrentPrice > 0 && agent.Portfolio.Cash >= inst.CurrentPrice {
			out = append(out, inst)
		}
	}
	return out
}

// owned devuelve los instrumentos de los que el agente tiene posición.
func owned(agent domain.Agent, instruments []domain.Instrument) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(agent.Portfolio.Holdings))
	for _, inst := range instruments {
		if agent.HoldingShares(inst.Symbol) > 0 {
			out = append(out, inst)
		}
	}
	return out
}
