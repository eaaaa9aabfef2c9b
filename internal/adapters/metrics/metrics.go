package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Package metrics expone el pulso de la simulación en formato Prometheus:
//
//	sim_cycles_total                  – ciclos ejecutados
//	sim_trades_total{side}            – trades ejecutados por lado
//	sim_volume_usd_total              – notional operado
//	sim_sentiment                     – índice de sentiment (gauge 0-100)
//	sim_phase{phase}                  – fase activa (series 0/1 por fase)
//	sim_margin_calls_total            – margin calls emitidos
//	sim_forced_covers_total           – forced covers ejecutados
//	sim_crashes_total                 – crashes de mercado
//
// Es un adapter de solo lectura sobre snapshots: el engine no lo conoce.

// Exporter implementa ports.Notifier actualizando los collectors.
type Exporter struct {
	cycles       prometheus.Counter
	trades       *prometheus.CounterVec
	volume       prometheus.Counter
	sentiment    prometheus.Gauge
	phase        *prometheus.GaugeVec
	marginCalls  prometheus.Counter
	forcedCovers prometheus.Counter
	crashes      prometheus.Counter
}

// NewExporter registra los collectors en un registry propio y devuelve el
// exporter junto al handler HTTP de /metrics.
func NewExporter() (*Exporter, http.Handler) {
	reg := prometheus.NewRegistry()

	e := &Exporter{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_cycles_total", Help: "Simulation cycles executed",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sim_trades_total", Help: "Executed trades by side",
		}, []string{"side"}),
		volume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_volume_usd_total", Help: "Notional traded",
		}),
		sentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_sentiment", Help: "Sentiment index (0-100)",
		}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sim_phase", Help: "Active market phase (0/1 per labeled series)",
		}, []string{"phase"}),
		marginCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_margin_calls_total", Help: "Margin calls issued",
		}),
		forcedCovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_forced_covers_total", Help: "Forced covers executed",
		}),
		crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_crashes_total", Help: "Market crashes",
		}),
	}

	reg.MustRegister(e.cycles, e.trades, e.volume, e.sentiment,
		e.phase, e.marginCalls, e.forcedCovers, e.crashes)

	return e, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Notify actualiza los collectors con el snapshot del ciclo.
func (e *Exporter) Notify(_ context.Context, snap domain.Snapshot) error {
	summary := snap.Summary()

	e.cycles.Inc()
	e.volume.Add(summary.Volume)
	e.sentiment.Set(summary.Sentiment)
	e.marginCalls.Add(float64(summary.MarginCalls))
	e.forcedCovers.Add(float64(summary.ForcedCovers))
	if snap.Crashed {
		e.crashes.Inc()
	}

	for _, ev := range snap.Events {
		e.trades.WithLabelValues(string(ev.Side)).Inc()
	}

	phases := []domain.Phase{
		domain.PhaseProsperity, domain.PhaseBoom, domain.PhaseConsolidation,
		domain.PhasePanic, domain.PhaseRecession, domain.PhaseRecovery,
	}
	for _, p := range phases {
		v := 0.0
		if p == snap.Phase.Global {
			v = 1
		}
		e.phase.WithLabelValues(string(p)).Set(v)
	}
	return nil
}
