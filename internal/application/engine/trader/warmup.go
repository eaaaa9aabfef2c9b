package trader

import (
	"log/slog"
	"math/rand"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// warmup.go — garantiza que todo instrumento reciba un mínimo de trades
// antes de que empiece el juego: historia de precios/volumen realista desde
// el primer ciclo jugable.

// WarmupConfig controla los ciclos de calentamiento.
type WarmupConfig struct {
	Cycles          int     // ciclos totales de warmup
	MinTrades       int     // trades mínimos por instrumento
	BonusFraction   float64 // fracción del warmup tras la cual entra el bonus
	BonusPerMissing float64 // bonus de score por trade que falta
}

// DefaultWarmupConfig devuelve la configuración de warmup por defecto.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Cycles:          60,
		MinTrades:       3,
		BonusFraction:   0.5,
		BonusPerMissing: 15,
	}
}

// Warmup acumula el conteo de trades por símbolo durante el calentamiento.
type Warmup struct {
	cfg    WarmupConfig
	counts map[string]int
}

// NewWarmup crea el tracker de warmup.
func NewWarmup(cfg WarmupConfig) *Warmup {
	if cfg.Cycles <= 0 {
		cfg = DefaultWarmupConfig()
	}
	return &Warmup{cfg: cfg, counts: make(map[string]int)}
}

// Cycles devuelve los ciclos totales de warmup configurados.
func (w *Warmup) Cycles() int { return w.cfg.Cycles }

// Count devuelve los trades observados para un símbolo.
func (w *Warmup) Count(symbol string) int { return w.counts[symbol] }

// Observe registra los trades ejecutados de un ciclo.
func (w *Warmup) Observe(events []domain.TradeEvent) {
	for _, ev := range events {
		w.counts[ev.Symbol]++
	}
}

// BonusFor devuelve el bonus de score de compra por símbolo para el ciclo
// dado, o nil si aún no ha pasado la fracción configurada del warmup. El
// bonus crece con los trades que faltan para el mínimo.
func (w *Warmup) BonusFor(cycle int, instruments []domain.Instrument) map[string]float64 {
	if float64(cycle) < float64(w.cfg.Cycles)*w.cfg.BonusFraction {
		return nil
	}
	bonus := make(map[string]float64)
	for _, inst := range instruments {
		missing := w.cfg.MinTrades - w.counts[inst.Symbol]
		if missing > 0 {
			bonus[inst.Symbol] = float64(missing) * w.cfg.BonusPerMissing
		}
	}
	if len(bonus) == 0 {
		return nil
	}
	return bonus
}

// ForceTrades genera intents forzados para los instrumentos que terminaron
// el warmup sin operarse: una compra de 1 acción por un agente elegible al
// azar. Sin contraparte elegible, el instrumento queda sin trade (se loggea).
func (w *Warmup) ForceTrades(
	rng *rand.Rand,
	agents []domain.Agent,
	instruments []domain.Instrument,
) []domain.TradeIntent {
	var intents []domain.TradeIntent
	for _, inst := range instruments {
		if w.counts[inst.Symbol] > 0 {
			continue
		}

		eligible := make([]domain.Agent, 0, len(agents))
		for _, a := range agents {
			if a.Settings.Archetype == domain.ArchetypeMarketMaker {
				continue
			}
			if a.Portfolio.Cash >= inst.CurrentPrice {
				eligible = append(eligible, a)
			}
		}
		if len(eligible) == 0 {
			slog.Warn("warmup: no eligible counterparty for untraded instrument",
				"symbol", inst.Symbol, "price", inst.CurrentPrice)
			continue
		}

		agent := eligible[rng.Intn(len(eligible))]
		intents = append(intents, domain.TradeIntent{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Side:    domain.SideBuy,
			Shares:  1,
			Factors: domain.SignalFactors{Signal: "noise", Value: 1},
		})
		w.counts[inst.Symbol]++
	}
	return intents
}
