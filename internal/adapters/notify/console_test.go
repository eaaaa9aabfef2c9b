package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/bolsasim/internal/adapters/notify"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

func makeSnapshot() domain.Snapshot {
	inst := domain.Instrument{
		Symbol:        "QNT",
		Name:          "Quantix Systems",
		Sector:        domain.SectorTech,
		CurrentPrice:  165,
		Change:        15,
		ChangePercent: 10,
		FairValue:     150,
	}

	agent := domain.Agent{
		ID:          "a1",
		Name:        "Trader Uno",
		InitialCash: 10_000,
		Portfolio:   domain.Portfolio{Cash: 4_000, Holdings: map[string]domain.Holding{}},
		Settings:    domain.AgentSettings{Archetype: domain.ArchetypeBalanced},
	}

	return domain.Snapshot{
		Cycle: 7,
		At:    time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Phase: domain.MarketPhaseState{
			Global:    domain.PhaseProsperity,
			Sentiment: 62,
		},
		Momentum:    map[domain.Sector]domain.SectorMomentum{},
		Instruments: []domain.Instrument{inst},
		Agents:      []domain.Agent{agent},
		Events: []domain.TradeEvent{
			{Symbol: "QNT", Side: domain.SideBuy, Shares: 10, Price: 165, Agent: "a1"},
		},
	}
}

func TestConsole_CompactLine(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.Notify(context.Background(), makeSnapshot()))

	out := buf.String()
	// Una sola línea con ciclo, fase, sentiment y volumen (10 * 165 = 1650).
	assert.Contains(t, out, "c7")
	assert.Contains(t, out, "prosperity")
	assert.Contains(t, out, "sent:62")
	assert.Contains(t, out, "trades:1")
	assert.Contains(t, out, "vol:$1650")
	assert.Contains(t, out, "QNT $165.00 +10.0%")
	assert.NotContains(t, out, "CRASH")
}

func TestConsole_CompactCrashFlag(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	snap := makeSnapshot()
	snap.Crashed = true
	require.NoError(t, c.Notify(context.Background(), snap))

	assert.Contains(t, buf.String(), "*** CRASH ***")
}

func TestConsole_FullTable(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	snap := makeSnapshot()
	snap.Crashed = true
	require.NoError(t, c.Notify(context.Background(), snap))

	out := buf.String()
	assert.Contains(t, out, "cycle 7")
	assert.Contains(t, out, "*** MARKET CRASH THIS CYCLE ***")
	// Tabla de instrumentos y leaderboard.
	assert.Contains(t, out, "QNT")
	assert.Contains(t, out, "tech")
	assert.Contains(t, out, "Trader Uno")
	assert.Contains(t, out, "balanced")
}

func TestConsole_FullShortsSection(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	snap := makeSnapshot()
	snap.Agents[0].Shorts = []domain.ShortPosition{{
		ID:               "s1",
		Symbol:           "QNT",
		Shares:           20,
		EntryPrice:       150,
		CollateralLocked: 4_500,
		MarginCall:       true,
		GraceCyclesLeft:  3,
	}}
	require.NoError(t, c.Notify(context.Background(), snap))

	out := buf.String()
	assert.Contains(t, out, "CALL (3 left)")
	assert.Contains(t, out, "$4500.00")
}

// --- Fanout ---

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(_ context.Context, _ domain.Snapshot) error {
	s.calls++
	return s.err
}

func TestFanout_DeliversToAll(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{}
	f := notify.NewFanout(a, nil, b)

	require.NoError(t, f.Notify(context.Background(), makeSnapshot()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestFanout_CollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &stubNotifier{err: boom}
	b := &stubNotifier{}
	f := notify.NewFanout(a, b)

	err := f.Notify(context.Background(), makeSnapshot())
	assert.ErrorIs(t, err, boom)
	// El error de uno no corta la entrega al resto.
	assert.Equal(t, 1, b.calls)
}
