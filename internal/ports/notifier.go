package ports

import (
	"context"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Notifier presenta el estado del mercado tras cada ciclo.
type Notifier interface {
	Notify(ctx context.Context, snap domain.Snapshot) error
}
