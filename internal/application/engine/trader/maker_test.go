package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

func TestQuote_SpreadAroundMid(t *testing.T) {
	e := New(DefaultConfig())
	rng := engine.NewRNG(1)
	agent := agentWith(domain.ArchetypeMarketMaker, 50_000, 0)
	agent.Settings.TargetSpread = 0.01
	agent.Settings.MaxRestingQuote = 4
	instruments := []domain.Instrument{instrumentWithCloses("QNT", 0, 100)}

	quotes := e.Quote(rng, agent, instruments, 1.0)
	require.Len(t, quotes, 1)
	q := quotes[0]
	assert.InDelta(t, 99.5, q.Bid, 0.0001)
	assert.InDelta(t, 100.5, q.Ask, 0.0001)
	assert.Greater(t, q.Ask, q.Bid)
	assert.Positive(t, q.BidSize)
	// Sin inventario no hay lado ask real.
	assert.Equal(t, 0, q.AskSize)
	// El quote lleva sus factores de decisión.
	assert.InDelta(t, 100.0, q.Factors.Mid, 0.0001)
	assert.InDelta(t, 0.01, q.Factors.TargetSpread, 0.0001)
}

func TestQuote_MidIsSmoothedOverRecentCloses(t *testing.T) {
	e := New(DefaultConfig())
	rng := engine.NewRNG(1)
	agent := agentWith(domain.ArchetypeMarketMaker, 50_000, 0)
	agent.Settings.TargetSpread = 0.01
	agent.Settings.MaxRestingQuote = 4
	// Cierres 96..104: SMA(5) = 100 aunque el último print sea 104.
	instruments := []domain.Instrument{instrumentWithCloses("QNT", 0, 96, 98, 100, 102, 104)}

	quotes := e.Quote(rng, agent, instruments, 1.0)
	require.Len(t, quotes, 1)
	q := quotes[0]
	assert.InDelta(t, 100.0, q.Factors.Mid, 0.0001)
	assert.InDelta(t, 99.5, q.Bid, 0.0001)
	assert.InDelta(t, 100.5, q.Ask, 0.0001)
}

func TestQuote_PhaseModifierWidensSpread(t *testing.T) {
	e := New(DefaultConfig())
	agent := agentWith(domain.ArchetypeMarketMaker, 50_000, 0)
	agent.Settings.TargetSpread = 0.01
	instruments := []domain.Instrument{instrumentWithCloses("QNT", 0, 100)}

	calm := e.Quote(engine.NewRNG(1), agent, instruments, 1.0)
	stressed := e.Quote(engine.NewRNG(1), agent, instruments, 1.8)
	require.Len(t, calm, 1)
	require.Len(t, stressed, 1)
	assert.Greater(t, stressed[0].Ask-stressed[0].Bid, calm[0].Ask-calm[0].Bid)
}

func TestQuote_RespectsMaxResting(t *testing.T) {
	e := New(DefaultConfig())
	rng := engine.NewRNG(1)
	agent := agentWith(domain.ArchetypeMarketMaker, 100_000, 0)
	agent.Settings.MaxRestingQuote = 3

	instruments := make([]domain.Instrument, 0, 8)
	for _, sym := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		instruments = append(instruments, instrumentWithCloses(sym, 0, 50))
	}

	quotes := e.Quote(rng, agent, instruments, 1.0)
	assert.Len(t, quotes, 3)
}

func TestQuote_AsksOnlyRealInventory(t *testing.T) {
	e := New(DefaultConfig())
	rng := engine.NewRNG(1)
	agent := agentWith(domain.ArchetypeMarketMaker, 50_000, 0)
	agent.Portfolio.Holdings["QNT"] = domain.Holding{Shares: 42, AvgBuyPrice: 90}
	instruments := []domain.Instrument{instrumentWithCloses("QNT", 0, 100)}

	quotes := e.Quote(rng, agent, instruments, 1.0)
	require.Len(t, quotes, 1)
	assert.Equal(t, 42, quotes[0].AskSize)
}

func TestQuote_NonMakerGetsNothing(t *testing.T) {
	e := New(DefaultConfig())
	agent := agentWith(domain.ArchetypeBalanced, 50_000, 0)
	instruments := []domain.Instrument{instrumentWithCloses("QNT", 0, 100)}
	assert.Nil(t, e.Quote(engine.NewRNG(1), agent, instruments, 1.0))
}
