package credit

import "github.com/alejandrodnm/bolsasim/internal/domain"

// Package credit es el colaborador externo que computa la línea de crédito
// por agente. El engine solo consume la cifra; la política vive aquí fuera.

// FixedPercent implementa ports.CreditProvider:
//
//	línea = cash + valor de holdings + pct × capital inicial
//
// El capital inicial actúa como colateral base aunque el agente lo haya
// gastado: es la parte "relación con el banco" de la línea.
type FixedPercent struct {
	Percent float64 // fracción del capital inicial aceptada como colateral
}

// NewFixedPercent crea el proveedor con la fracción dada (p.ej. 0.5).
func NewFixedPercent(percent float64) *FixedPercent {
	return &FixedPercent{Percent: percent}
}

// CreditLine devuelve la línea de crédito del agente a los precios actuales.
func (f *FixedPercent) CreditLine(agent domain.Agent, prices map[string]float64) float64 {
	return agent.PortfolioValue(prices) + f.Percent*agent.InitialCash
}
