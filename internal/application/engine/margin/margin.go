package margin

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Package margin implementa el subsistema de cortos: apertura con margen
// inicial, promediado, cierres parciales con liberación proporcional de
// colateral, borrow fees por ciclo y el ciclo margin call → grace → forced
// cover. Todo por valor: cada operación devuelve un Agent nuevo.

// Config son los límites y tasas del subsistema de cortos.
type Config struct {
	InitialMarginPercent     float64 // colateral requerido al abrir (1.5)
	MaintenanceMarginPercent float64 // mantenimiento sobre el valor vivo (1.25)
	BaseFeeRate              float64 // borrow fee por ciclo sobre el valor vivo
	HardToBorrowMultiplier   float64 // multiplicador de fee si el símbolo está "hard"
	GraceCycles              int     // ciclos de gracia tras el margin call
	MaxShortPctOfFloat       float64 // tope de un corto como fracción del float
}

// DefaultConfig devuelve la configuración por defecto del subsistema.
func DefaultConfig() Config {
	return Config{
		InitialMarginPercent:     1.5,
		MaintenanceMarginPercent: 1.25,
		BaseFeeRate:              0.0002,
		HardToBorrowMultiplier:   3.0,
		GraceCycles:              5,
		MaxShortPctOfFloat:       0.05,
	}
}

// Open abre (o promedia) un corto de `shares` acciones del instrumento.
// Bloquea shares × price × initialMarginPercent de cash como colateral.
// Devuelve (agente, decisión, true) o el agente intacto y false si el agente
// no puede abrirlo (cash, límites de float): infeasibilidad sin error.
func Open(
	agent domain.Agent,
	inst domain.Instrument,
	shares int,
	shortInterest float64,
	cfg Config,
	now time.Time,
	positionID string,
) (domain.Agent, *domain.ShortDecision, bool) {
	price := inst.CurrentPrice
	if shares <= 0 || price <= 0 {
		return agent, nil, false
	}
	if cfg.MaxShortPctOfFloat > 0 && inst.FloatShares > 0 {
		if float64(shares) > inst.FloatShares*cfg.MaxShortPctOfFloat {
			return agent, nil, false
		}
	}

	collateral := domain.RequiredInitialMargin(shares, price, cfg.InitialMarginPercent)
	if collateral > agent.Portfolio.Cash {
		return agent, nil, false
	}

	agent.Portfolio.Cash -= collateral
	shorts := cloneShorts(agent.Shorts)

	if i, existing := agent.ShortPositionFor(inst.Symbol); i >= 0 {
		shorts[i] = existing.AverageIn(shares, price, collateral)
	} else {
		shorts = append(shorts, domain.ShortPosition{
			ID:               positionID,
			Symbol:           inst.Symbol,
			Shares:           shares,
			EntryPrice:       price,
			OpenedAt:         now,
			CollateralLocked: collateral,
		})
	}
	agent.Shorts = shorts

	return agent, &domain.ShortDecision{
		AgentID: agent.ID,
		Symbol:  inst.Symbol,
		Action:  domain.ShortActionOpen,
		Shares:  shares,
		Price:   price,
		Reason:  fmt.Sprintf("collateral locked %.2f (status %s)", collateral, domain.BorrowStatusFor(shortInterest, inst.FloatShares)),
	}, true
}

// Close cubre `shares` acciones al precio dado. El colateral se libera en
// proporción a la fracción cerrada; el P/L realizado ajusta el cash. Cerrar
// la posición completa la destruye. Posición inexistente → false, sin error.
func Close(
	agent domain.Agent,
	symbol string,
	shares int,
	price float64,
	forced bool,
) (domain.Agent, *domain.ShortDecision, bool) {
	idx, pos := agent.ShortPositionFor(symbol)
	if idx < 0 || shares <= 0 || shares > pos.Shares || price <= 0 {
		return agent, nil, false
	}

	realized := (pos.EntryPrice - price) * float64(shares)
	remaining, released := pos.ReleaseForClose(shares)

	cash := agent.Portfolio.Cash + released + realized
	if cash < 0 {
		// La pérdida superó el colateral liberado: el agente queda a cero,
		// la insolvencia se reporta en la decisión.
		cash = 0
	}
	agent.Portfolio.Cash = cash

	shorts := cloneShorts(agent.Shorts)
	if remaining.Shares == 0 {
		shorts = append(shorts[:idx], shorts[idx+1:]...)
	} else {
		shorts[idx] = remaining
	}
	agent.Shorts = shorts

	action := domain.ShortActionCover
	reason := fmt.Sprintf("realized %.2f, collateral released %.2f", realized, released)
	if forced {
		action = domain.ShortActionForcedCover
		reason = "grace period exhausted: " + reason
	}
	return agent, &domain.ShortDecision{
		AgentID: agent.ID,
		Symbol:  symbol,
		Action:  action,
		Shares:  shares,
		Price:   price,
		Reason:  reason,
	}, true
}

// Step re-evalúa todos los cortos del agente contra los precios nuevos:
// cobra borrow fees, dispara/limpia margin calls, descuenta la gracia y
// ejecuta los forced covers que agotaron la gracia este ciclo.
func Step(
	agent domain.Agent,
	prices map[string]float64,
	floats map[string]float64,
	shortInterest map[string]float64,
	cfg Config,
) (domain.Agent, []domain.ShortDecision) {
	if len(agent.Shorts) == 0 {
		return agent, nil
	}

	var decisions []domain.ShortDecision
	shorts := cloneShorts(agent.Shorts)
	var toCover []string

	for i, pos := range shorts {
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			continue // input stale: se ignora, nunca escala
		}

		// Borrow fee del ciclo, multiplicada si el símbolo está hard-to-borrow.
		fee := pos.PositionValue(price) * cfg.BaseFeeRate
		if domain.BorrowStatusFor(shortInterest[pos.Symbol], floats[pos.Symbol]) == domain.BorrowHard {
			fee *= cfg.HardToBorrowMultiplier
		}
		if fee > agent.Portfolio.Cash {
			fee = agent.Portfolio.Cash
		}
		agent.Portfolio.Cash -= fee
		pos.FeesPaid += fee

		under := pos.UnderMaintenance(price, cfg.MaintenanceMarginPercent)
		switch {
		case under && !pos.MarginCall:
			pos.MarginCall = true
			pos.GraceCyclesLeft = cfg.GraceCycles
			decisions = append(decisions, domain.ShortDecision{
				AgentID: agent.ID,
				Symbol:  pos.Symbol,
				Action:  domain.ShortActionMarginCall,
				Shares:  pos.Shares,
				Price:   price,
				Reason: fmt.Sprintf("effective collateral %.2f < maintenance %.2f",
					pos.EffectiveCollateral(price),
					domain.RequiredMaintenance(pos.PositionValue(price), cfg.MaintenanceMarginPercent)),
			})
			slog.Debug("margin: call issued",
				"agent", agent.Name, "symbol", pos.Symbol, "grace", pos.GraceCyclesLeft)
		case under && pos.MarginCall:
			pos.GraceCyclesLeft--
			if pos.GraceCyclesLeft <= 0 {
				pos.ForcedCover = true
				toCover = append(toCover, pos.Symbol)
			}
		case !under && pos.MarginCall:
			// Recuperado: el call se limpia.
			pos.MarginCall = false
			pos.GraceCyclesLeft = 0
		}

		shorts[i] = pos
	}
	agent.Shorts = shorts

	for _, symbol := range toCover {
		_, pos := agent.ShortPositionFor(symbol)
		next, dec, ok := Close(agent, symbol, pos.Shares, prices[symbol], true)
		if !ok {
			continue
		}
		agent = next
		decisions = append(decisions, *dec)
		slog.Info("margin: forced cover executed",
			"agent", agent.Name, "symbol", symbol, "shares", pos.Shares)
	}

	return agent, decisions
}

func cloneShorts(in []domain.ShortPosition) []domain.ShortPosition {
	out := make([]domain.ShortPosition, len(in))
	copy(out, in)
	return out
}
