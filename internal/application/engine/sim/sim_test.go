package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

var simTime = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestSim(seed int64) *Sim {
	cfg := DefaultConfig()
	cfg.Seed = seed
	cfg.Warmup.Cycles = 10
	s := New(cfg, fixedCredit{line: 15_000}, nil, nil)
	s.now = func() time.Time { return simTime }
	return s
}

type fixedCredit struct{ line float64 }

func (c fixedCredit) CreditLine(domain.Agent, map[string]float64) float64 { return c.line }

func TestNew_UniverseShape(t *testing.T) {
	s := newTestSim(1)
	st := s.State()

	assert.Len(t, st.Instruments, 12)
	// jugador + 40 agentes autónomos, jugador primero
	require.Len(t, st.Agents, 41)
	assert.Equal(t, PlayerAgentID, st.Agents[0].ID)
	assert.Equal(t, domain.Archetype(""), st.Agents[0].Settings.Archetype)
	assert.Equal(t, 10_000.0, st.Agents[0].Portfolio.Cash)
	assert.Equal(t, domain.PhaseProsperity, st.Phase.Global)
}

func TestStep_DeterministicWithSameSeed(t *testing.T) {
	a := newTestSim(7)
	b := newTestSim(7)

	for i := 0; i < 30; i++ {
		snapA := a.Step()
		snapB := b.Step()

		require.Len(t, snapB.Instruments, len(snapA.Instruments))
		for j := range snapA.Instruments {
			assert.Equal(t, snapA.Instruments[j].CurrentPrice, snapB.Instruments[j].CurrentPrice)
		}
		// Los IDs de agente son uuids: se compara la secuencia operada.
		require.Len(t, snapB.Events, len(snapA.Events))
		for j := range snapA.Events {
			assert.Equal(t, snapA.Events[j].Symbol, snapB.Events[j].Symbol)
			assert.Equal(t, snapA.Events[j].Side, snapB.Events[j].Side)
			assert.Equal(t, snapA.Events[j].Shares, snapB.Events[j].Shares)
		}
		assert.Equal(t, snapA.Phase.Global, snapB.Phase.Global)
		assert.Equal(t, snapA.Phase.Sentiment, snapB.Phase.Sentiment)
	}
}

func TestStep_DivergesWithDifferentSeed(t *testing.T) {
	a := newTestSim(1)
	b := newTestSim(2)

	diverged := false
	for i := 0; i < 10 && !diverged; i++ {
		snapA, snapB := a.Step(), b.Step()
		for j := range snapA.Instruments {
			if snapA.Instruments[j].CurrentPrice != snapB.Instruments[j].CurrentPrice {
				diverged = true
				break
			}
		}
	}
	assert.True(t, diverged)
}

func TestStep_AdvancesCycleAndHistory(t *testing.T) {
	s := newTestSim(1)

	snap := s.Step()
	assert.Equal(t, 1, snap.Cycle)
	for _, inst := range snap.Instruments {
		assert.Len(t, inst.History, 2) // vela inicial + la del ciclo
	}

	snap = s.Step()
	assert.Equal(t, 2, snap.Cycle)
}

func TestStep_SentimentWithinBounds(t *testing.T) {
	s := newTestSim(3)
	for i := 0; i < 100; i++ {
		snap := s.Step()
		assert.GreaterOrEqual(t, snap.Phase.Sentiment, 0.0)
		assert.LessOrEqual(t, snap.Phase.Sentiment, 100.0)
	}
}

func TestStep_CashNeverNegative(t *testing.T) {
	s := newTestSim(5)
	for i := 0; i < 100; i++ {
		snap := s.Step()
		for _, a := range snap.Agents {
			assert.GreaterOrEqual(t, a.Portfolio.Cash, 0.0,
				"agent %s went negative on cycle %d", a.Name, snap.Cycle)
		}
	}
}

func TestStep_MakersQuoteInsteadOfTrading(t *testing.T) {
	s := newTestSim(1)

	makers := map[string]bool{}
	for _, a := range s.State().Agents {
		if a.Settings.Archetype == domain.ArchetypeMarketMaker {
			makers[a.ID] = true
		}
	}
	require.NotEmpty(t, makers)

	for i := 0; i < 50; i++ {
		snap := s.Step()
		for _, ev := range snap.Events {
			assert.False(t, makers[ev.Agent], "maker traded on cycle %d", snap.Cycle)
		}
	}
}

func TestStep_AgentNeverTradesAndShortsSameCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 4
	cfg.ShortOpenProb = 1.0
	s := New(cfg, fixedCredit{line: 15_000}, nil, nil)
	s.now = func() time.Time { return simTime }

	opens := 0
	for i := 0; i < 80; i++ {
		snap := s.Step()
		traded := map[string]bool{}
		for _, ev := range snap.Events {
			traded[ev.Agent] = true
		}
		for _, d := range snap.ShortDecisions {
			if d.Action != domain.ShortActionOpen {
				continue
			}
			opens++
			assert.False(t, traded[d.AgentID],
				"agent %s traded and opened a short on cycle %d", d.AgentID, snap.Cycle)
		}
	}
	assert.Positive(t, opens, "con prob 1.0 debería abrirse algún corto en 80 ciclos")
}

func TestRunWarmup_PublishedSnapshotsStayImmutable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.Warmup.Cycles = 1
	a := New(cfg, fixedCredit{line: 15_000}, nil, nil)
	a.now = func() time.Time { return simTime }
	b := New(cfg, fixedCredit{line: 15_000}, nil, nil)
	b.now = func() time.Time { return simTime }

	// Un solo ciclo de warmup deja instrumentos sin operar: los trades
	// forzados del cierre deben mover el estado vivo, nunca los snapshots ya
	// devueltos. La réplica ejecuta el mismo ciclo sin cierre de warmup.
	snaps := a.RunWarmup()
	require.Len(t, snaps, 1)
	want := b.Step()

	require.Len(t, snaps[0].Instruments, len(want.Instruments))
	for i := range want.Instruments {
		assert.Equal(t, want.Instruments[i].CurrentPrice, snaps[0].Instruments[i].CurrentPrice,
			"snapshot de %s alterado tras su publicación", want.Instruments[i].Symbol)
	}

	moved := false
	for i, inst := range a.State().Instruments {
		if inst.CurrentPrice != snaps[0].Instruments[i].CurrentPrice {
			moved = true
			break
		}
	}
	assert.True(t, moved, "los trades forzados no movieron ningún precio")
}

func TestRunWarmup_EveryInstrumentTraded(t *testing.T) {
	s := newTestSim(1)
	snaps := s.RunWarmup()
	assert.Len(t, snaps, 10)

	for _, inst := range s.State().Instruments {
		assert.Positive(t, s.warmup.Count(inst.Symbol),
			"instrument %s finished warmup untraded", inst.Symbol)
	}
}

func TestReset_RebuildsIdenticalUniverse(t *testing.T) {
	s := newTestSim(9)
	fresh := newTestSim(9)

	for i := 0; i < 20; i++ {
		s.Step()
	}
	s.Reset()

	st, freshSt := s.State(), fresh.State()
	assert.Equal(t, 0, st.Cycle)
	require.Len(t, st.Instruments, len(freshSt.Instruments))
	for i := range st.Instruments {
		assert.Equal(t, freshSt.Instruments[i].Symbol, st.Instruments[i].Symbol)
		assert.Equal(t, freshSt.Instruments[i].CurrentPrice, st.Instruments[i].CurrentPrice)
		assert.Len(t, st.Instruments[i].History, 1)
	}
	for i := range st.Agents {
		assert.Equal(t, freshSt.Agents[i].Name, st.Agents[i].Name)
		assert.Equal(t, freshSt.Agents[i].Portfolio.Cash, st.Agents[i].Portfolio.Cash)
		assert.Equal(t, freshSt.Agents[i].Settings, st.Agents[i].Settings)
	}
}

func TestPlaceOrder_BuyExecutesWithQuote(t *testing.T) {
	s := newTestSim(1)

	// AXL cotiza a $24: 10 acciones caben de sobra en los $10,000.
	res := s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "AXL", Shares: 10})
	require.True(t, res.Executed)
	assert.Equal(t, 10, res.Quote.Shares)
	assert.Greater(t, res.Quote.Total, 240.0) // spread + slippage + fee

	player := s.State().Agents[0]
	assert.Equal(t, 10, player.Portfolio.Holdings["AXL"].Shares)
	assert.InDelta(t, 10_000-res.Quote.Total, player.Portfolio.Cash, 0.001)
}

func TestPlaceOrder_SellWithoutPosition(t *testing.T) {
	s := newTestSim(1)
	res := s.PlaceOrder(PlayerOrder{Kind: OrderSell, Symbol: "AXL", Shares: 10})
	assert.False(t, res.Executed)
	assert.Nil(t, res.Loan)
}

func TestPlaceOrder_RoundTrip(t *testing.T) {
	s := newTestSim(1)
	buy := s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "AXL", Shares: 10})
	require.True(t, buy.Executed)

	sell := s.PlaceOrder(PlayerOrder{Kind: OrderSell, Symbol: "AXL", Shares: 10})
	require.True(t, sell.Executed)
	// El round-trip paga spread dos veces más fees: siempre pierde dinero.
	assert.Less(t, sell.Quote.Total, buy.Quote.Total)
	_, holds := s.State().Agents[0].Portfolio.Holdings["AXL"]
	assert.False(t, holds)
}

func TestPlaceOrder_LoanDecisionWhenCreditCovers(t *testing.T) {
	s := newTestSim(1)

	// 80 × QNT ($150) ≈ $12,000: sobre los $10,000 de cash pero dentro de
	// la línea de $15,000 → decisión de préstamo, sin ejecutar.
	res := s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "QNT", Shares: 80})
	assert.False(t, res.Executed)
	require.NotNil(t, res.Loan)
	assert.InDelta(t, res.Quote.Total-10_000, res.Loan.Amount, 0.001)
	// El cash no se toca hasta que el caller disponga del préstamo.
	assert.Equal(t, 10_000.0, s.State().Agents[0].Portfolio.Cash)
}

func TestPlaceOrder_RejectedBeyondCreditLine(t *testing.T) {
	s := newTestSim(1)
	res := s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "QNT", Shares: 500})
	assert.False(t, res.Executed)
	assert.Nil(t, res.Loan)
}

func TestPlaceOrder_ShortAndCover(t *testing.T) {
	s := newTestSim(1)

	short := s.PlaceOrder(PlayerOrder{Kind: OrderShort, Symbol: "AXL", Shares: 100})
	require.True(t, short.Executed)
	require.NotNil(t, short.Short)
	assert.Equal(t, domain.ShortActionOpen, short.Short.Action)

	player := s.State().Agents[0]
	require.Len(t, player.Shorts, 1)
	// colateral 100 × 24 × 1.5 = 3,600
	assert.InDelta(t, 10_000-3_600, player.Portfolio.Cash, 0.001)

	cover := s.PlaceOrder(PlayerOrder{Kind: OrderCover, Symbol: "AXL", Shares: 100})
	require.True(t, cover.Executed)
	assert.Equal(t, domain.ShortActionCover, cover.Short.Action)
	assert.Empty(t, s.State().Agents[0].Shorts)
	// Sin movimiento de precio el cierre devuelve el colateral completo.
	assert.InDelta(t, 10_000.0, s.State().Agents[0].Portfolio.Cash, 0.001)
}

func TestPlaceOrder_UnknownSymbolOrMode(t *testing.T) {
	s := newTestSim(1)
	assert.False(t, s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "XXX", Shares: 1}).Executed)
	assert.False(t, s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "AXL", Shares: 1, Mode: "vip"}).Executed)
	assert.False(t, s.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "AXL", Shares: 0}).Executed)
}

func TestPlaceOrder_PremiumModeCheaper(t *testing.T) {
	a := newTestSim(1)
	b := newTestSim(1)

	std := a.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "QNT", Shares: 10})
	prem := b.PlaceOrder(PlayerOrder{Kind: OrderBuy, Symbol: "QNT", Shares: 10, Mode: "premium"})
	require.True(t, std.Executed)
	require.True(t, prem.Executed)
	assert.Less(t, prem.Quote.Total, std.Quote.Total)
}
