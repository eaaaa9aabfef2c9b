package market

import (
	"log/slog"
	"math/rand"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// PhaseConfig parametriza la máquina de fases, el mecanismo de crash y la
// correlación entre sectores. Viene del bundle de configuración estática.
type PhaseConfig struct {
	Params map[domain.Phase]domain.PhaseParams

	// Crash
	OverheatLookback  int     // ventana del promedio móvil por sector
	OverheatThreshold float64 // index/avg a partir del cual un sector está sobrecalentado
	CrashProbPerCycle float64 // probabilidad aditiva por ciclo sobrecalentado
	CrashProbCap      float64
	CrashShockMin     float64 // rango negativo del shock, p.ej. -0.25
	CrashShockMax     float64 // p.ej. -0.10

	// Correlación y momentum
	CorrelationThreshold  float64 // |performance| mínimo para contagiar
	InteractionMultiplier float64
	MomentumDecay         float64
	MomentumUpdateRate    float64
	InfluenceStrength     float64
	MaxInfluence          float64

	// Transiciones
	TrendLookback int // ciclos de índice global para los triggers cualitativos
}

// DefaultPhaseConfig devuelve la configuración por defecto.
func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		Params:                domain.DefaultPhaseParams(),
		OverheatLookback:      30,
		OverheatThreshold:     1.25,
		CrashProbPerCycle:     0.01,
		CrashProbCap:          0.15,
		CrashShockMin:         -0.25,
		CrashShockMax:         -0.10,
		CorrelationThreshold:  0.02,
		InteractionMultiplier: 0.6,
		MomentumDecay:         0.85,
		MomentumUpdateRate:    0.5,
		InfluenceStrength:     0.01,
		MaxInfluence:          0.008,
		TrendLookback:         10,
	}
}

// Machine es la máquina de fases. Mantiene los buffers de índice (global y
// por sector) que alimentan triggers, overheat y correlación; el estado de
// régimen visible vive en domain.MarketPhaseState y se trata por valor.
type Machine struct {
	cfg         PhaseConfig
	correlation map[domain.Sector]map[domain.Sector]float64

	globalIndex []float64
	sectorIndex map[domain.Sector][]float64
}

// NewMachine crea la máquina con la matriz de correlación por defecto.
func NewMachine(cfg PhaseConfig) *Machine {
	return &Machine{
		cfg:         cfg,
		correlation: defaultCorrelation(),
		sectorIndex: make(map[domain.Sector][]float64),
	}
}

// defaultCorrelation: matriz ASIMÉTRICA sector→sector. corr[a][b] es cuánto
// del performance de `a` contagia a `b`; no tiene por qué coincidir con
// corr[b][a] (p.ej. tech arrastra a consumer más que al revés).
func defaultCorrelation() map[domain.Sector]map[domain.Sector]float64 {
	return map[domain.Sector]map[domain.Sector]float64{
		domain.SectorTech: {
			domain.SectorConsumer: 0.5, domain.SectorFinance: 0.3, domain.SectorIndustrial: 0.2,
		},
		domain.SectorFinance: {
			domain.SectorTech: 0.2, domain.SectorConsumer: 0.3, domain.SectorIndustrial: 0.3,
			domain.SectorEnergy: 0.2,
		},
		domain.SectorEnergy: {
			domain.SectorIndustrial: 0.5, domain.SectorConsumer: -0.3,
		},
		domain.SectorHealth: {
			domain.SectorConsumer: 0.1,
		},
		domain.SectorConsumer: {
			domain.SectorTech: 0.2, domain.SectorFinance: 0.2,
		},
		domain.SectorIndustrial: {
			domain.SectorEnergy: 0.3, domain.SectorFinance: 0.1,
		},
	}
}

// StepResult es la salida de un ciclo de la máquina de fases.
type StepResult struct {
	State      domain.MarketPhaseState
	Momentum   map[domain.Sector]domain.SectorMomentum
	Bias       map[domain.Sector]float64 // sectorBias para el modelo de precios
	CrashShock float64                   // 0 si no hubo crash; negativo si lo hubo
	Crashed    bool
}

// Step avanza un ciclo: actualiza índices, evalúa crash, transiciona fases
// (global y por sector), propaga correlación, actualiza momentum y deriva el
// sentiment. No muta `state` ni `momentum`: devuelve snapshots nuevos.
func (m *Machine) Step(
	rng *rand.Rand,
	state domain.MarketPhaseState,
	momentum map[domain.Sector]domain.SectorMomentum,
	instruments []domain.Instrument,
) StepResult {
	next := state.Clone()
	next.CyclesInPhase++
	for _, s := range domain.AllSectors() {
		next.SectorCycles[s]++
	}

	perf := m.pushIndexes(instruments)

	crashed, shock := m.evalCrash(rng, &next)
	if !crashed {
		m.transitionGlobal(rng, &next)
	}
	m.transitionSectors(rng, &next)

	adjusted := m.applyCorrelation(perf)
	newMomentum := m.updateMomentum(momentum, adjusted)

	bias := make(map[domain.Sector]float64, len(newMomentum))
	for s, sm := range newMomentum {
		bias[s] = engine.Clamp(sm.Momentum*m.cfg.InfluenceStrength, -m.cfg.MaxInfluence, m.cfg.MaxInfluence)
	}

	next.Sentiment = m.sentiment(next, newMomentum)

	return StepResult{
		State:      next,
		Momentum:   newMomentum,
		Bias:       bias,
		CrashShock: shock,
		Crashed:    crashed,
	}
}

// VolatilityFor devuelve el multiplicador de volatilidad efectivo de un
// sector: mezcla del régimen global y el de su sector.
func (m *Machine) VolatilityFor(state domain.MarketPhaseState, sector domain.Sector) float64 {
	global := m.cfg.Params[state.Global].VolatilityMultiplier
	sectorMult := m.cfg.Params[state.SectorPhase[sector]].VolatilityMultiplier
	return (global + sectorMult) / 2
}

// SpreadModifier devuelve el modificador de spread de la fase global.
func (m *Machine) SpreadModifier(state domain.MarketPhaseState) float64 {
	return m.cfg.Params[state.Global].SpreadModifier
}

// pushIndexes actualiza los índices global y por sector y devuelve el
// performance por sector de este ciclo (0 sin historia previa).
func (m *Machine) pushIndexes(instruments []domain.Instrument) map[domain.Sector]float64 {
	sums := make(map[domain.Sector]float64)
	counts := make(map[domain.Sector]int)
	var globalSum float64
	for _, inst := range instruments {
		sums[inst.Sector] += inst.CurrentPrice
		counts[inst.Sector]++
		globalSum += inst.CurrentPrice
	}

	perf := make(map[domain.Sector]float64)
	for _, s := range domain.AllSectors() {
		var idx float64
		if counts[s] > 0 {
			idx = sums[s] / float64(counts[s])
		}
		hist := m.sectorIndex[s]
		if n := len(hist); n > 0 && hist[n-1] > 0 {
			perf[s] = (idx - hist[n-1]) / hist[n-1]
		}
		m.sectorIndex[s] = pushBounded(hist, idx, m.cfg.OverheatLookback)
	}

	var globalIdx float64
	if len(instruments) > 0 {
		globalIdx = globalSum / float64(len(instruments))
	}
	m.globalIndex = pushBounded(m.globalIndex, globalIdx, m.cfg.OverheatLookback)

	return perf
}

// evalCrash acumula overheat por sector y tira el dado del crash. Un crash
// fuerza la fase global a panic ignorando minDuration (es la única vía que
// lo hace) y devuelve un shock negativo uniforme del rango configurado.
func (m *Machine) evalCrash(rng *rand.Rand, state *domain.MarketPhaseState) (bool, float64) {
	totalOverheat := 0
	for _, s := range domain.AllSectors() {
		hist := m.sectorIndex[s]
		if len(hist) < 2 {
			state.Overheat[s] = 0
			continue
		}
		current := hist[len(hist)-1]
		avg := mean(hist)
		if avg > 0 && current > avg*m.cfg.OverheatThreshold {
			state.Overheat[s]++
		} else {
			state.Overheat[s] = 0
		}
		totalOverheat += state.Overheat[s]
	}

	if totalOverheat == 0 || state.Global == domain.PhasePanic {
		return false, 0
	}

	p := engine.Clamp(float64(totalOverheat)*m.cfg.CrashProbPerCycle, 0, m.cfg.CrashProbCap)
	if !engine.Chance(rng, p) {
		return false, 0
	}

	shock := engine.Uniform(rng, m.cfg.CrashShockMin, m.cfg.CrashShockMax)
	slog.Warn("market: CRASH triggered",
		"from", state.Global,
		"overheatedCycles", totalOverheat,
		"probability", p,
		"shock", shock,
	)
	m.enterPhase(state, domain.PhasePanic)
	for _, s := range domain.AllSectors() {
		state.Overheat[s] = 0
		state.SectorPhase[s] = domain.PhasePanic
		state.SectorCycles[s] = 0
	}
	return true, shock
}

// transitionGlobal aplica las reglas de transición de la fase global.
// Restricciones duras: nada antes de minDuration; forzada en maxDuration.
func (m *Machine) transitionGlobal(rng *rand.Rand, state *domain.MarketPhaseState) {
	params := m.cfg.Params[state.Global]

	if state.CyclesInPhase < params.MinDuration {
		return
	}
	if state.CyclesInPhase >= params.MaxDuration {
		to := naturalNext(state.Global)
		slog.Info("market: forced phase transition",
			"from", state.Global, "to", to, "cycles", state.CyclesInPhase)
		m.enterPhase(state, to)
		return
	}

	for _, tr := range m.transitionsFrom(state.Global) {
		if tr.trigger != nil && !tr.trigger() {
			continue
		}
		if engine.Chance(rng, tr.prob) {
			slog.Info("market: phase transition",
				"from", state.Global, "to", tr.to, "cycles", state.CyclesInPhase)
			m.enterPhase(state, tr.to)
			return
		}
	}
}

type phaseTransition struct {
	to      domain.Phase
	prob    float64
	trigger func() bool
}

// transitionsFrom: probabilidades por ciclo condicionadas a triggers
// cualitativos sobre el índice global.
func (m *Machine) transitionsFrom(p domain.Phase) []phaseTransition {
	lb := m.cfg.TrendLookback
	switch p {
	case domain.PhaseProsperity:
		return []phaseTransition{
			{domain.PhaseBoom, 0.06, func() bool { return m.sustainedGrowth(lb, 0.65) }},
			{domain.PhaseConsolidation, 0.05, nil},
		}
	case domain.PhaseBoom:
		return []phaseTransition{
			{domain.PhasePanic, 0.02, func() bool { return m.sustainedDecline(lb, 0.60) }},
			{domain.PhaseConsolidation, 0.10, nil},
		}
	case domain.PhaseConsolidation:
		return []phaseTransition{
			{domain.PhaseProsperity, 0.07, func() bool { return m.sustainedGrowth(lb, 0.55) }},
			{domain.PhaseRecession, 0.05, func() bool { return m.sustainedDecline(lb, 0.55) }},
		}
	case domain.PhasePanic:
		return []phaseTransition{
			{domain.PhaseRecovery, 0.08, func() bool { return m.sustainedGrowth(lb, 0.50) }},
			{domain.PhaseRecession, 0.25, nil},
		}
	case domain.PhaseRecession:
		return []phaseTransition{
			{domain.PhaseRecovery, 0.06, func() bool { return m.stabilized(lb) }},
		}
	case domain.PhaseRecovery:
		return []phaseTransition{
			{domain.PhaseProsperity, 0.08, func() bool { return m.sustainedGrowth(lb, 0.55) }},
			{domain.PhaseRecession, 0.03, func() bool { return m.sustainedDecline(lb, 0.60) }},
		}
	}
	return nil
}

// naturalNext es el sucesor al agotar maxDuration sin trigger aleatorio.
func naturalNext(p domain.Phase) domain.Phase {
	switch p {
	case domain.PhaseProsperity:
		return domain.PhaseConsolidation
	case domain.PhaseBoom:
		return domain.PhaseConsolidation
	case domain.PhaseConsolidation:
		return domain.PhaseProsperity
	case domain.PhasePanic:
		return domain.PhaseRecession
	case domain.PhaseRecession:
		return domain.PhaseRecovery
	default:
		return domain.PhaseProsperity
	}
}

func (m *Machine) enterPhase(state *domain.MarketPhaseState, to domain.Phase) {
	state.History = append(state.History, domain.PhaseSpan{
		Phase: state.Global, Cycles: state.CyclesInPhase,
	})
	state.Global = to
	state.CyclesInPhase = 0
}

// transitionSectors converge las fases sectoriales hacia la global una vez
// cumplida su minDuration, con probabilidad fija por ciclo.
func (m *Machine) transitionSectors(rng *rand.Rand, state *domain.MarketPhaseState) {
	const convergeProb = 0.25
	for _, s := range domain.AllSectors() {
		current := state.SectorPhase[s]
		if current == state.Global {
			continue
		}
		if state.SectorCycles[s] < m.cfg.Params[current].MinDuration {
			continue
		}
		if engine.Chance(rng, convergeProb) || state.SectorCycles[s] >= m.cfg.Params[current].MaxDuration {
			state.SectorPhase[s] = state.Global
			state.SectorCycles[s] = 0
		}
	}
}

// applyCorrelation propaga el performance desproporcionado de un sector al
// resto según la matriz asimétrica. Solo contagia cuando |perf| supera el
// umbral, escalado por el multiplicador global de interacción.
func (m *Machine) applyCorrelation(perf map[domain.Sector]float64) map[domain.Sector]float64 {
	adjusted := make(map[domain.Sector]float64, len(perf))
	for s, p := range perf {
		adjusted[s] = p
	}
	for source, p := range perf {
		if abs(p) <= m.cfg.CorrelationThreshold {
			continue
		}
		for target, corr := range m.correlation[source] {
			adjusted[target] += p * corr * m.cfg.InteractionMultiplier
		}
	}
	return adjusted
}

// updateMomentum: momentum' = clamp(momentum × decay + adjPerf × rate, -1, 1).
func (m *Machine) updateMomentum(
	momentum map[domain.Sector]domain.SectorMomentum,
	adjusted map[domain.Sector]float64,
) map[domain.Sector]domain.SectorMomentum {
	out := make(map[domain.Sector]domain.SectorMomentum, len(momentum))
	for _, s := range domain.AllSectors() {
		prev := momentum[s]
		next := engine.Clamp(
			prev.Momentum*m.cfg.MomentumDecay+adjusted[s]*m.cfg.MomentumUpdateRate,
			-1, 1,
		)
		out[s] = domain.SectorMomentum{Momentum: next, LastPerformance: adjusted[s]}
	}
	return out
}

// sentiment deriva el índice 0-100: base por fase, empujado por el momentum
// medio y penalizado por volatilidad de régimen. Monótono en momentum; sube
// en boom y cae en recession por construcción de las bases.
func (m *Machine) sentiment(
	state domain.MarketPhaseState,
	momentum map[domain.Sector]domain.SectorMomentum,
) float64 {
	base := map[domain.Phase]float64{
		domain.PhaseProsperity:    65,
		domain.PhaseBoom:          85,
		domain.PhaseConsolidation: 50,
		domain.PhasePanic:         10,
		domain.PhaseRecession:     25,
		domain.PhaseRecovery:      45,
	}[state.Global]

	var avg float64
	for _, sm := range momentum {
		avg += sm.Momentum
	}
	if len(momentum) > 0 {
		avg /= float64(len(momentum))
	}

	volPenalty := 15 * (m.cfg.Params[state.Global].VolatilityMultiplier - 1)
	return engine.Clamp(base+30*avg-volPenalty, 0, 100)
}

func pushBounded(hist []float64, v float64, cap int) []float64 {
	hist = append(hist, v)
	if cap > 0 && len(hist) > cap {
		hist = hist[len(hist)-cap:]
	}
	return hist
}

// sustainedGrowth: fracción de subidas del índice global ≥ ratio en la ventana.
func (m *Machine) sustainedGrowth(lookback int, ratio float64) bool {
	return m.moveRatio(lookback, true) >= ratio
}

func (m *Machine) sustainedDecline(lookback int, ratio float64) bool {
	return m.moveRatio(lookback, false) >= ratio
}

// stabilized: el índice global se movió menos del 1% neto en la ventana.
func (m *Machine) stabilized(lookback int) bool {
	n := len(m.globalIndex)
	if n < lookback+1 {
		return false
	}
	first := m.globalIndex[n-lookback-1]
	last := m.globalIndex[n-1]
	if first <= 0 {
		return false
	}
	return abs((last-first)/first) < 0.01
}

func (m *Machine) moveRatio(lookback int, up bool) float64 {
	n := len(m.globalIndex)
	if n < lookback+1 {
		return 0
	}
	matches := 0
	for i := n - lookback; i < n; i++ {
		d := m.globalIndex[i] - m.globalIndex[i-1]
		if (up && d > 0) || (!up && d < 0) {
			matches++
		}
	}
	return float64(matches) / float64(lookback)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
