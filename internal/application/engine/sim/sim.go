package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/application/engine/margin"
	"github.com/alejandrodnm/bolsasim/internal/application/engine/market"
	"github.com/alejandrodnm/bolsasim/internal/application/engine/trader"
	"github.com/alejandrodnm/bolsasim/internal/domain"
	"github.com/alejandrodnm/bolsasim/internal/ports"
)

// Package sim orquesta el pipeline determinista de cada ciclo:
//
//	fases → velas → fold secuencial de agentes → margin
//
// El fold de agentes es estrictamente secuencial: el trade de un agente mueve
// el precio que ve el siguiente, así que el orden forma parte de la semántica.
// Nada ejecuta en paralelo; toda mutación produce snapshots nuevos.

const yieldEveryCycles = 5

// Config reúne la configuración estática del simulador.
type Config struct {
	Seed          int64
	CycleInterval time.Duration
	Universe      UniverseConfig
	Phase         market.PhaseConfig
	Trader        trader.Config
	Warmup        trader.WarmupConfig
	Margin        margin.Config
	Modes         map[string]domain.ExecutionParams
	DefaultMode   string

	// Probabilidad por ciclo de que un agente agresivo (risk > 50) abra un
	// corto sobre el downtrend más fuerte.
	ShortOpenProb float64
}

// DefaultConfig devuelve una configuración completa y jugable.
func DefaultConfig() Config {
	return Config{
		Seed:          1,
		CycleInterval: 2 * time.Second,
		Universe:      DefaultUniverseConfig(),
		Phase:         market.DefaultPhaseConfig(),
		Trader:        trader.DefaultConfig(),
		Warmup:        trader.DefaultWarmupConfig(),
		Margin:        margin.DefaultConfig(),
		Modes: map[string]domain.ExecutionParams{
			"standard": {SpreadPercent: 0.004, SlippagePerShare: 0.00001, MaxSlippage: 0.005, FeePercent: 0.001, MinFee: 1},
			"premium":  {SpreadPercent: 0.002, SlippagePerShare: 0.000005, MaxSlippage: 0.003, FeePercent: 0.0005, MinFee: 0.5},
		},
		DefaultMode:   "standard",
		ShortOpenProb: 0.03,
	}
}

// State es el estado completo de la simulación tras un ciclo. Valor puro:
// Step construye el siguiente sin tocar el anterior.
type State struct {
	Cycle       int
	Instruments []domain.Instrument
	Agents      []domain.Agent
	Phase       domain.MarketPhaseState
	Momentum    map[domain.Sector]domain.SectorMomentum
}

// Sim es el simulador. Posee el RNG sembrado y los sub-engines; los adapters
// (notifier, recorder) son opcionales y solo consumen snapshots.
type Sim struct {
	cfg      Config
	rng      *rand.Rand
	machine  *market.Machine
	trader   *trader.Engine
	warmup   *trader.Warmup
	credit   ports.CreditProvider
	recorder ports.Recorder
	notifier ports.Notifier

	state State
	now   func() time.Time
}

// New crea el simulador y construye el universo inicial desde la config.
// recorder y notifier pueden ser nil.
func New(cfg Config, credit ports.CreditProvider, recorder ports.Recorder, notifier ports.Notifier) *Sim {
	rng := engine.NewRNG(cfg.Seed)
	s := &Sim{
		cfg:      cfg,
		rng:      rng,
		machine:  market.NewMachine(cfg.Phase),
		trader:   trader.New(cfg.Trader),
		warmup:   trader.NewWarmup(cfg.Warmup),
		credit:   credit,
		recorder: recorder,
		notifier: notifier,
		now:      time.Now,
	}
	s.state = s.buildState()
	return s
}

// State devuelve el snapshot de estado actual.
func (s *Sim) State() State { return s.state }

// Reset reconstruye el universo desde config + seed (runs reproducibles).
func (s *Sim) Reset() {
	s.rng = engine.NewRNG(s.cfg.Seed)
	s.machine = market.NewMachine(s.cfg.Phase)
	s.warmup = trader.NewWarmup(s.cfg.Warmup)
	s.trader.SetWarmupBonus(nil)
	s.state = s.buildState()
}

func (s *Sim) buildState() State {
	instruments, agents := BuildUniverse(s.rng, s.cfg.Universe, s.now())
	return State{
		Instruments: instruments,
		Agents:      agents,
		Phase:       domain.NewMarketPhaseState(),
		Momentum:    make(map[domain.Sector]domain.SectorMomentum),
	}
}

// Step ejecuta un ciclo completo y devuelve su snapshot.
func (s *Sim) Step() domain.Snapshot {
	now := s.now()
	st := s.state

	// 1. Régimen: fases, crash, correlación, momentum, sentiment.
	phaseRes := s.machine.Step(s.rng, st.Phase, st.Momentum, st.Instruments)

	// 2. Velas nuevas con el bias sectorial; el shock del crash se aplica
	// encima de la vela del ciclo.
	instruments := make([]domain.Instrument, len(st.Instruments))
	for i, inst := range st.Instruments {
		volMult := s.machine.VolatilityFor(phaseRes.State, inst.Sector)
		next := market.AdvanceCandle(s.rng, inst, phaseRes.Bias[inst.Sector], volMult, now)
		if phaseRes.Crashed {
			next = market.ApplyShock(next, phaseRes.CrashShock)
		}
		instruments[i] = next
	}

	// 3. Fold secuencial de agentes: cada trade mueve el precio que ve el
	// siguiente agente de la lista.
	agents := make([]domain.Agent, len(st.Agents))
	copy(agents, st.Agents)
	var events []domain.TradeEvent
	var quotes []domain.MakerQuote
	var shortDecisions []domain.ShortDecision

	for i, agent := range agents {
		if agent.Settings.Archetype == domain.ArchetypeMarketMaker {
			quotes = append(quotes, s.trader.Quote(s.rng, agent, instruments, s.machine.SpreadModifier(phaseRes.State))...)
			continue
		}

		// Como mucho una operación por agente y ciclo: el corto solo se
		// considera cuando el arquetipo no emitió ningún intent.
		intent := s.trader.Decide(s.rng, agent, instruments, phaseRes.State)
		if intent != nil {
			agents[i], instruments, events = s.execute(agents[i], instruments, events, *intent, now)
		} else if dec := s.maybeOpenShort(agents, i, instruments, now); dec != nil {
			shortDecisions = append(shortDecisions, *dec)
		}
	}

	// 4. Margin: re-evaluación de todos los cortos contra los precios nuevos.
	prices, floats, interest := marketMaps(instruments, agents)
	for i, agent := range agents {
		next, decs := margin.Step(agent, prices, floats, interest, s.cfg.Margin)
		agents[i] = next
		shortDecisions = append(shortDecisions, decs...)
	}

	for i := range agents {
		agents[i].CyclesSinceInterest++
	}

	s.state = State{
		Cycle:       st.Cycle + 1,
		Instruments: instruments,
		Agents:      agents,
		Phase:       phaseRes.State,
		Momentum:    phaseRes.Momentum,
	}

	return domain.Snapshot{
		Cycle:          s.state.Cycle,
		At:             now,
		Phase:          phaseRes.State,
		Momentum:       phaseRes.Momentum,
		Instruments:    instruments,
		Agents:         agents,
		Events:         events,
		Quotes:         quotes,
		ShortDecisions: shortDecisions,
		Crashed:        phaseRes.Crashed,
	}
}

// execute aplica un intent: la cartera del agente al precio actual y el
// impacto acotado sobre el instrumento. Los intents inviables se descartan
// en silencio (el precio pudo moverse desde la decisión).
func (s *Sim) execute(
	agent domain.Agent,
	instruments []domain.Instrument,
	events []domain.TradeEvent,
	intent domain.TradeIntent,
	now time.Time,
) (domain.Agent, []domain.Instrument, []domain.TradeEvent) {
	idx := instrumentIndex(instruments, intent.Symbol)
	if idx < 0 {
		return agent, instruments, events
	}
	inst := instruments[idx]
	price := inst.CurrentPrice

	var next domain.Agent
	var ok bool
	if intent.Side == domain.SideBuy {
		next, ok = agent.ApplyBuy(uuid.New().String(), intent.Symbol, intent.Shares, price, now)
	} else {
		next, ok = agent.ApplySell(uuid.New().String(), intent.Symbol, intent.Shares, price, now)
	}
	if !ok {
		return agent, instruments, events
	}

	instruments[idx] = market.ApplyImpact(s.rng, inst, intent.Side, intent.Shares)
	events = append(events, domain.TradeEvent{
		Symbol: intent.Symbol,
		Side:   intent.Side,
		Shares: intent.Shares,
		Price:  price,
		Agent:  agent.ID,
	})
	return next, instruments, events
}

// maybeOpenShort: los agentes agresivos que no operaron este ciclo abren
// cortos ocasionales sobre el downtrend más fuerte en el que no tengan
// posición larga. Es la vía por la que la población ejercita el subsistema
// de margen sin intervención del jugador.
func (s *Sim) maybeOpenShort(agents []domain.Agent, i int, instruments []domain.Instrument, now time.Time) *domain.ShortDecision {
	agent := agents[i]
	if agent.Settings.RiskTolerance <= 50 || !engine.Chance(s.rng, s.cfg.ShortOpenProb) {
		return nil
	}

	var target *domain.Instrument
	worst := -0.03
	for j, inst := range instruments {
		if agent.HoldingShares(inst.Symbol) > 0 {
			continue
		}
		trend := domain.Trend(inst.History, s.cfg.Trader.TrendLookback)
		if trend < worst {
			worst = trend
			target = &instruments[j]
		}
	}
	if target == nil {
		return nil
	}

	_, _, interest := marketMaps(instruments, agents)
	shares := engine.ClampInt(int(agent.Portfolio.Cash/(target.CurrentPrice*s.cfg.Margin.InitialMarginPercent)/4), 1, 200)
	next, dec, ok := margin.Open(agent, *target, shares, interest[target.Symbol], s.cfg.Margin, now, uuid.New().String())
	if !ok {
		return nil
	}
	agents[i] = next
	return dec
}

// RunWarmup ejecuta los ciclos de calentamiento back-to-back. Es cooperativo,
// no concurrente: cede el scheduler cada pocos ciclos para no congelar al
// host, pero una vez arrancado corre hasta el final (sin cancelación).
func (s *Sim) RunWarmup() []domain.Snapshot {
	total := s.warmup.Cycles()
	slog.Info("sim: warmup starting", "cycles", total)

	yield := rate.Sometimes{Every: yieldEveryCycles}
	snaps := make([]domain.Snapshot, 0, total)

	for cycle := 0; cycle < total; cycle++ {
		s.trader.SetWarmupBonus(s.warmup.BonusFor(cycle, s.state.Instruments))
		snap := s.Step()
		s.warmup.Observe(snap.Events)
		snaps = append(snaps, snap)

		yield.Do(func() { runtime.Gosched() })
	}
	s.trader.SetWarmupBonus(nil)

	// Garantía de mínimo: cualquier instrumento sin trades se fuerza contra
	// una contraparte elegible al azar.
	forced := s.warmup.ForceTrades(s.rng, s.state.Agents, s.state.Instruments)
	if len(forced) > 0 {
		now := s.now()
		st := s.state
		var events []domain.TradeEvent
		agents := make([]domain.Agent, len(st.Agents))
		copy(agents, st.Agents)
		// Los snapshots ya devueltos referencian el slice vivo del estado:
		// copia antes de aplicar los trades forzados.
		instruments := make([]domain.Instrument, len(st.Instruments))
		copy(instruments, st.Instruments)
		for _, intent := range forced {
			for i := range agents {
				if agents[i].ID == intent.AgentID {
					agents[i], instruments, events = s.execute(agents[i], instruments, events, intent, now)
					break
				}
			}
		}
		s.state.Agents = agents
		s.state.Instruments = instruments
		slog.Info("sim: warmup force-trades applied", "count", len(events))
	}

	slog.Info("sim: warmup complete", "cycles", total)
	return snaps
}

// Run ejecuta ciclos a ritmo de CycleInterval hasta que el contexto se
// cancele o se alcance maxCycles (0 = sin límite).
func (s *Sim) Run(ctx context.Context, maxCycles int) error {
	limiter := rate.NewLimiter(rate.Every(s.cfg.CycleInterval), 1)
	ran := 0
	for {
		if maxCycles > 0 && ran >= maxCycles {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil // contexto cancelado: parada limpia
		}

		snap := s.Step()
		ran++
		s.publish(ctx, snap)
	}
}

func (s *Sim) publish(ctx context.Context, snap domain.Snapshot) {
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, snap); err != nil {
			slog.Warn("sim: notifier error", "err", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.SaveCycle(ctx, snap.Summary()); err != nil {
			slog.Warn("sim: recorder error", "err", err)
		}
		if err := s.recorder.SaveTrades(ctx, snap.Cycle, snap.Events); err != nil {
			slog.Warn("sim: recorder error saving trades", "err", err)
		}
	}
}

func instrumentIndex(instruments []domain.Instrument, symbol string) int {
	for i, inst := range instruments {
		if inst.Symbol == symbol {
			return i
		}
	}
	return -1
}

// marketMaps deriva los mapas precio/float/short-interest del estado actual.
func marketMaps(instruments []domain.Instrument, agents []domain.Agent) (prices, floats, interest map[string]float64) {
	prices = make(map[string]float64, len(instruments))
	floats = make(map[string]float64, len(instruments))
	interest = make(map[string]float64)
	for _, inst := range instruments {
		prices[inst.Symbol] = inst.CurrentPrice
		floats[inst.Symbol] = inst.FloatShares
	}
	for _, a := range agents {
		for _, p := range a.Shorts {
			interest[p.Symbol] += float64(p.Shares)
		}
	}
	return prices, floats, interest
}
