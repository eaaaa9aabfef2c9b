package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/bolsasim/internal/domain"
	"github.com/alejandrodnm/bolsasim/internal/ports"
)

// Fanout reparte cada snapshot a varios notifiers (consola + métricas).
type Fanout struct {
	targets []ports.Notifier
}

// NewFanout crea un Fanout; los nil se ignoran.
func NewFanout(targets ...ports.Notifier) *Fanout {
	f := &Fanout{}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

// Notify entrega el snapshot a todos los destinos y junta los errores.
func (f *Fanout) Notify(ctx context.Context, snap domain.Snapshot) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Notify(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
