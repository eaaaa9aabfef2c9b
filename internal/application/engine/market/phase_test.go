package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

func testInstruments(price float64) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(domain.AllSectors()))
	for i, s := range domain.AllSectors() {
		inst := domain.Instrument{
			Symbol:       string(s),
			Sector:       s,
			CurrentPrice: price + float64(i),
			FloatShares:  1_000_000,
		}
		out = append(out, inst.WithHistory(domain.Candle{Open: inst.CurrentPrice, High: inst.CurrentPrice, Low: inst.CurrentPrice, Close: inst.CurrentPrice}))
	}
	return out
}

func TestStep_MinDurationBlocksTransition(t *testing.T) {
	cfg := DefaultPhaseConfig()
	m := NewMachine(cfg)
	rng := engine.NewRNG(1)

	state := domain.NewMarketPhaseState()
	momentum := map[domain.Sector]domain.SectorMomentum{}
	instruments := testInstruments(100)

	// prosperity tiene minDuration 20: en los primeros 19 ciclos la fase
	// global no puede cambiar (los crashes necesitan overheat acumulado,
	// imposible tan pronto).
	minDur := cfg.Params[domain.PhaseProsperity].MinDuration
	for i := 0; i < minDur-1; i++ {
		res := m.Step(rng, state, momentum, instruments)
		assert.Equal(t, domain.PhaseProsperity, res.State.Global)
		state, momentum = res.State, res.Momentum
	}
}

func TestStep_MaxDurationForcesTransition(t *testing.T) {
	cfg := DefaultPhaseConfig()
	m := NewMachine(cfg)
	rng := engine.NewRNG(1)

	state := domain.NewMarketPhaseState()
	// Al entrar al step se incrementa CyclesInPhase, así que maxDuration-1
	// garantiza que este ciclo alcanza el tope.
	state.CyclesInPhase = cfg.Params[domain.PhaseProsperity].MaxDuration - 1

	res := m.Step(rng, state, map[domain.Sector]domain.SectorMomentum{}, testInstruments(100))
	assert.NotEqual(t, domain.PhaseProsperity, res.State.Global)
	assert.Equal(t, 0, res.State.CyclesInPhase)
	require.NotEmpty(t, res.State.History)
	assert.Equal(t, domain.PhaseProsperity, res.State.History[len(res.State.History)-1].Phase)
}

func TestStep_SentimentStaysInRange(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	rng := engine.NewRNG(99)

	state := domain.NewMarketPhaseState()
	momentum := map[domain.Sector]domain.SectorMomentum{}
	instruments := testInstruments(100)

	for i := 0; i < 500; i++ {
		res := m.Step(rng, state, momentum, instruments)
		assert.GreaterOrEqual(t, res.State.Sentiment, 0.0)
		assert.LessOrEqual(t, res.State.Sentiment, 100.0)
		state, momentum = res.State, res.Momentum
	}
}

func TestStep_MomentumClamped(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	rng := engine.NewRNG(5)

	state := domain.NewMarketPhaseState()
	momentum := map[domain.Sector]domain.SectorMomentum{}
	instruments := testInstruments(100)

	for i := 0; i < 300; i++ {
		// Precios que suben 5% cada ciclo: performance fuerte sostenido.
		for j := range instruments {
			p := instruments[j].CurrentPrice * 1.05
			instruments[j] = instruments[j].WithHistory(domain.Candle{Open: p, High: p, Low: p, Close: p})
		}
		res := m.Step(rng, state, momentum, instruments)
		for _, sm := range res.Momentum {
			assert.GreaterOrEqual(t, sm.Momentum, -1.0)
			assert.LessOrEqual(t, sm.Momentum, 1.0)
		}
		state, momentum = res.State, res.Momentum
	}
}

func TestStep_DoesNotMutateInputState(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	rng := engine.NewRNG(1)

	state := domain.NewMarketPhaseState()
	before := state.Clone()

	_ = m.Step(rng, state, map[domain.Sector]domain.SectorMomentum{}, testInstruments(100))
	assert.Equal(t, before, state)
}

func TestStep_CrashEntersPanicEverywhere(t *testing.T) {
	// Forzamos el crash con probabilidad segura: umbral de sobrecalentamiento
	// bajísimo y prob al máximo.
	cfg := DefaultPhaseConfig()
	cfg.OverheatThreshold = 1.0001
	cfg.CrashProbPerCycle = 1.0
	cfg.CrashProbCap = 1.0
	m := NewMachine(cfg)
	rng := engine.NewRNG(1)

	state := domain.NewMarketPhaseState()
	momentum := map[domain.Sector]domain.SectorMomentum{}
	instruments := testInstruments(100)

	crashed := false
	for i := 0; i < 50 && !crashed; i++ {
		// Subida del 10% por ciclo: el índice corre muy por encima de su media.
		for j := range instruments {
			p := instruments[j].CurrentPrice * 1.10
			instruments[j] = instruments[j].WithHistory(domain.Candle{Open: p, High: p, Low: p, Close: p})
		}
		res := m.Step(rng, state, momentum, instruments)
		if res.Crashed {
			crashed = true
			assert.Equal(t, domain.PhasePanic, res.State.Global)
			assert.Negative(t, res.CrashShock)
			assert.GreaterOrEqual(t, res.CrashShock, cfg.CrashShockMin)
			for _, s := range domain.AllSectors() {
				assert.Equal(t, domain.PhasePanic, res.State.SectorPhase[s])
			}
		}
		state, momentum = res.State, res.Momentum
	}
	assert.True(t, crashed, "sustained overheating should trigger a crash")
}

func TestVolatilityFor_BlendsGlobalAndSector(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	state := domain.NewMarketPhaseState()
	state.Global = domain.PhasePanic                    // ×2.5
	state.SectorPhase[domain.SectorTech] = domain.PhaseProsperity // ×1.0

	assert.InDelta(t, 1.75, m.VolatilityFor(state, domain.SectorTech), 0.0001)
}

func TestSpreadModifier_TracksGlobalPhase(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	state := domain.NewMarketPhaseState()
	assert.Equal(t, 1.0, m.SpreadModifier(state))
	state.Global = domain.PhasePanic
	assert.Equal(t, 1.8, m.SpreadModifier(state))
}

func TestNaturalNext_CoversAllPhases(t *testing.T) {
	assert.Equal(t, domain.PhaseConsolidation, naturalNext(domain.PhaseProsperity))
	assert.Equal(t, domain.PhaseConsolidation, naturalNext(domain.PhaseBoom))
	assert.Equal(t, domain.PhaseProsperity, naturalNext(domain.PhaseConsolidation))
	assert.Equal(t, domain.PhaseRecession, naturalNext(domain.PhasePanic))
	assert.Equal(t, domain.PhaseRecovery, naturalNext(domain.PhaseRecession))
	assert.Equal(t, domain.PhaseProsperity, naturalNext(domain.PhaseRecovery))
}

func TestApplyCorrelation_ContagionAboveThreshold(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())

	// Tech al +5%: contagia a consumer (0.5), finance (0.3) e industrial
	// (0.2) escalado por el multiplicador 0.6.
	perf := map[domain.Sector]float64{domain.SectorTech: 0.05}
	adjusted := m.applyCorrelation(perf)
	assert.InDelta(t, 0.05*0.5*0.6, adjusted[domain.SectorConsumer], 0.0001)
	assert.InDelta(t, 0.05*0.3*0.6, adjusted[domain.SectorFinance], 0.0001)
	assert.Equal(t, 0.0, adjusted[domain.SectorHealth]) // sin arista tech→health
}

func TestApplyCorrelation_BelowThresholdNoContagion(t *testing.T) {
	m := NewMachine(DefaultPhaseConfig())
	perf := map[domain.Sector]float64{domain.SectorTech: 0.01} // bajo el umbral 0.02
	adjusted := m.applyCorrelation(perf)
	assert.Equal(t, 0.0, adjusted[domain.SectorConsumer])
}
