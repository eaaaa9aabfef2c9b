package sim

import (
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/bolsasim/internal/application/engine/margin"
	"github.com/alejandrodnm/bolsasim/internal/application/engine/market"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// player.go — la superficie de órdenes del jugador. A diferencia de los
// agentes autónomos (impacto simplificado), las órdenes del jugador pasan
// por el modelo de ejecución completo: spread + slippage + fees por modo.

// OrderKind es el tipo de orden del jugador.
type OrderKind string

const (
	OrderBuy   OrderKind = "buy"
	OrderSell  OrderKind = "sell"
	OrderShort OrderKind = "short"
	OrderCover OrderKind = "cover"
)

// PlayerOrder es una orden entrante del jugador.
type PlayerOrder struct {
	Kind   OrderKind
	Symbol string
	Shares int
	Mode   string // modo de ejecución; vacío = DefaultMode
}

// OrderResult es el desenlace de una orden del jugador. Executed en false
// con Loan != nil significa "viable con crédito": el caller decide si
// dispone del préstamo y reenvía. Executed en false sin Loan es inviable.
type OrderResult struct {
	Executed bool
	Quote    domain.Quote
	Short    *domain.ShortDecision
	Loan     *domain.LoanDecision
}

// PlaceOrder valora y (si es viable) ejecuta una orden del jugador contra el
// estado actual. La infeasibilidad ordinaria (cash, símbolo desconocido,
// posición inexistente) nunca es un error: devuelve Executed=false.
func (s *Sim) PlaceOrder(order PlayerOrder) OrderResult {
	idx := instrumentIndex(s.state.Instruments, order.Symbol)
	pIdx := s.playerIndex()
	if idx < 0 || pIdx < 0 || order.Shares <= 0 {
		return OrderResult{}
	}

	inst := s.state.Instruments[idx]
	player := s.state.Agents[pIdx]
	now := s.now()

	switch order.Kind {
	case OrderShort:
		_, _, interest := marketMaps(s.state.Instruments, s.state.Agents)
		next, dec, ok := margin.Open(player, inst, order.Shares, interest[inst.Symbol], s.cfg.Margin, now, uuid.New().String())
		if !ok {
			return OrderResult{}
		}
		s.state.Agents[pIdx] = next
		return OrderResult{Executed: true, Short: dec}

	case OrderCover:
		next, dec, ok := margin.Close(player, order.Symbol, order.Shares, inst.CurrentPrice, false)
		if !ok {
			return OrderResult{}
		}
		s.state.Agents[pIdx] = next
		return OrderResult{Executed: true, Short: dec}
	}

	params, ok := s.executionParams(order.Mode)
	if !ok {
		return OrderResult{}
	}

	side := domain.SideBuy
	if order.Kind == OrderSell {
		side = domain.SideSell
	}
	quote := domain.PriceOrder(inst.CurrentPrice, order.Shares, side, params)

	if side == domain.SideBuy {
		if quote.Total > player.Portfolio.Cash {
			// No llega el cash: si cabe en la línea de crédito, se devuelve
			// la decisión de préstamo al caller en vez de ejecutarse.
			if s.credit != nil {
				prices, _, _ := marketMaps(s.state.Instruments, s.state.Agents)
				if line := s.credit.CreditLine(player, prices); quote.Total <= line {
					return OrderResult{Quote: quote, Loan: &domain.LoanDecision{
						AgentID: player.ID,
						Amount:  quote.Total - player.Portfolio.Cash,
						Reason:  "order total exceeds cash but fits credit line",
					}}
				}
			}
			return OrderResult{Quote: quote}
		}
		next, applied := player.ApplyBuy(uuid.New().String(), order.Symbol, order.Shares, quote.EffectivePrice, now)
		if !applied {
			return OrderResult{Quote: quote}
		}
		// El fee no forma parte del precio por acción: se descuenta aparte.
		next.Portfolio.Cash -= quote.Fee
		s.finishPlayerOrder(pIdx, idx, next, side, order.Shares, now)
		return OrderResult{Executed: true, Quote: quote}
	}

	next, applied := player.ApplySell(uuid.New().String(), order.Symbol, order.Shares, quote.EffectivePrice, now)
	if !applied {
		return OrderResult{Quote: quote}
	}
	next.Portfolio.Cash -= quote.Fee
	s.finishPlayerOrder(pIdx, idx, next, side, order.Shares, now)
	return OrderResult{Executed: true, Quote: quote}
}

func (s *Sim) finishPlayerOrder(pIdx, instIdx int, player domain.Agent, side domain.Side, shares int, now time.Time) {
	instruments := make([]domain.Instrument, len(s.state.Instruments))
	copy(instruments, s.state.Instruments)
	instruments[instIdx] = market.ApplyImpact(s.rng, instruments[instIdx], side, shares)

	agents := make([]domain.Agent, len(s.state.Agents))
	copy(agents, s.state.Agents)
	agents[pIdx] = player

	s.state.Instruments = instruments
	s.state.Agents = agents
}

// executionParams resuelve los parámetros del modo con el spread ajustado
// por la fase global actual.
func (s *Sim) executionParams(mode string) (domain.ExecutionParams, bool) {
	if mode == "" {
		mode = s.cfg.DefaultMode
	}
	params, ok := s.cfg.Modes[mode]
	if !ok {
		return domain.ExecutionParams{}, false
	}
	params.SpreadPercent *= s.machine.SpreadModifier(s.state.Phase)
	return params, true
}

func (s *Sim) playerIndex() int {
	for i, a := range s.state.Agents {
		if a.ID == PlayerAgentID {
			return i
		}
	}
	return -1
}
