package ports

import "github.com/alejandrodnm/bolsasim/internal/domain"

// CreditProvider computes the per-agent credit-line figure. The engine only
// CONSUMES this number; the loan subsystem that derives it lives outside.
type CreditProvider interface {
	CreditLine(agent domain.Agent, prices map[string]float64) float64
}
