package ports

import (
	"context"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Recorder persists cycle summaries and executed-trade events. The engine
// itself never persists anything: recording is an adapter over its outputs.
type Recorder interface {
	ApplySchema(ctx context.Context) error
	SaveCycle(ctx context.Context, summary domain.CycleSummary) error
	SaveTrades(ctx context.Context, cycle int, events []domain.TradeEvent) error
	Prune(ctx context.Context) error
	Close() error
}
