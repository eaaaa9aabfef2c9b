package domain

// Phase is the global (or per-sector) economic regime.
type Phase string

const (
	PhaseProsperity    Phase = "prosperity"
	PhaseBoom          Phase = "boom"
	PhaseConsolidation Phase = "consolidation"
	PhasePanic         Phase = "panic"
	PhaseRecession     Phase = "recession"
	PhaseRecovery      Phase = "recovery"
)

// PhaseParams son los parámetros de mercado de cada fase.
type PhaseParams struct {
	VolatilityMultiplier float64
	SpreadModifier       float64
	MinDuration          int // ciclos: ninguna transición antes
	MaxDuration          int // ciclos: transición forzada al llegar
}

// DefaultPhaseParams devuelve la tabla por defecto de parámetros por fase.
func DefaultPhaseParams() map[Phase]PhaseParams {
	return map[Phase]PhaseParams{
		PhaseProsperity:    {VolatilityMultiplier: 1.0, SpreadModifier: 1.0, MinDuration: 20, MaxDuration: 120},
		PhaseBoom:          {VolatilityMultiplier: 1.4, SpreadModifier: 0.9, MinDuration: 15, MaxDuration: 80},
		PhaseConsolidation: {VolatilityMultiplier: 0.7, SpreadModifier: 1.1, MinDuration: 10, MaxDuration: 60},
		PhasePanic:         {VolatilityMultiplier: 2.5, SpreadModifier: 1.8, MinDuration: 5, MaxDuration: 25},
		PhaseRecession:     {VolatilityMultiplier: 1.2, SpreadModifier: 1.4, MinDuration: 20, MaxDuration: 100},
		PhaseRecovery:      {VolatilityMultiplier: 1.1, SpreadModifier: 1.2, MinDuration: 15, MaxDuration: 70},
	}
}

// PhaseSpan es una entrada del histórico de duraciones de fase.
type PhaseSpan struct {
	Phase  Phase
	Cycles int
}

// MarketPhaseState is the full regime state: global phase, per-sector phase,
// duration counters, overheat counters and the derived sentiment index.
type MarketPhaseState struct {
	Global        Phase
	CyclesInPhase int
	SectorPhase   map[Sector]Phase
	SectorCycles  map[Sector]int
	Overheat      map[Sector]int // consecutive overheated cycles per sector
	Sentiment     float64        // derived, in [0, 100]
	History       []PhaseSpan
}

// SectorMomentum is the smoothed, decaying relative performance of a sector.
// Invariant: Momentum stays in [-1, 1].
type SectorMomentum struct {
	Momentum        float64
	LastPerformance float64
}

// NewMarketPhaseState crea el estado inicial en prosperity con sentiment neutro.
func NewMarketPhaseState() MarketPhaseState {
	sectorPhase := make(map[Sector]Phase)
	sectorCycles := make(map[Sector]int)
	overheat := make(map[Sector]int)
	for _, s := range AllSectors() {
		sectorPhase[s] = PhaseProsperity
		sectorCycles[s] = 0
		overheat[s] = 0
	}
	return MarketPhaseState{
		Global:       PhaseProsperity,
		SectorPhase:  sectorPhase,
		SectorCycles: sectorCycles,
		Overheat:     overheat,
		Sentiment:    50,
	}
}

// Clone devuelve una copia profunda (los steps del engine nunca mutan el
// snapshot anterior).
func (s MarketPhaseState) Clone() MarketPhaseState {
	out := s
	out.SectorPhase = make(map[Sector]Phase, len(s.SectorPhase))
	out.SectorCycles = make(map[Sector]int, len(s.SectorCycles))
	out.Overheat = make(map[Sector]int, len(s.Overheat))
	for k, v := range s.SectorPhase {
		out.SectorPhase[k] = v
	}
	for k, v := range s.SectorCycles {
		out.SectorCycles[k] = v
	}
	for k, v := range s.Overheat {
		out.Overheat[k] = v
	}
	out.History = append([]PhaseSpan(nil), s.History...)
	return out
}
