package domain

import "time"

// Snapshot is everything one cycle produced, handed to notifier/recorder
// adapters. The engine owns the data; adapters only read it.
type Snapshot struct {
	Cycle          int
	At             time.Time
	Phase          MarketPhaseState
	Momentum       map[Sector]SectorMomentum
	Instruments    []Instrument
	Agents         []Agent
	Events         []TradeEvent
	Quotes         []MakerQuote
	ShortDecisions []ShortDecision
	Crashed        bool
}

// CycleSummary es el resumen ligero de un ciclo para el recorder.
type CycleSummary struct {
	Cycle        int
	At           time.Time
	Phase        Phase
	Sentiment    float64
	Trades       int
	Volume       float64 // notional operado en el ciclo
	MarginCalls  int
	ForcedCovers int
	Crashed      bool
}

// Summary reduce el snapshot a su resumen de ciclo.
func (s Snapshot) Summary() CycleSummary {
	var volume float64
	for _, ev := range s.Events {
		volume += float64(ev.Shares) * ev.Price
	}
	calls, covers := 0, 0
	for _, d := range s.ShortDecisions {
		switch d.Action {
		case ShortActionMarginCall:
			calls++
		case ShortActionForcedCover:
			covers++
		}
	}
	return CycleSummary{
		Cycle:        s.Cycle,
		At:           s.At,
		Phase:        s.Phase.Global,
		Sentiment:    s.Phase.Sentiment,
		Trades:       len(s.Events),
		Volume:       volume,
		MarginCalls:  calls,
		ForcedCovers: covers,
		Crashed:      s.Crashed,
	}
}
