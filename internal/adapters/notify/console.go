package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	appengine "github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el snapshot del ciclo en el modo configurado.
func (c *Console) Notify(_ context.Context, snap domain.Snapshot) error {
	if c.table {
		c.printFull(snap)
	} else {
		c.printCompact(snap)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(snap domain.Snapshot) {
	now := snap.At.Format("15:04:05")
	summary := snap.Summary()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] c%d %s sent:%.0f trades:%d vol:$%.0f",
		now, snap.Cycle, snap.Phase.Global, snap.Phase.Sentiment,
		summary.Trades, summary.Volume)
	if summary.MarginCalls > 0 {
		fmt.Fprintf(&sb, " calls:%d", summary.MarginCalls)
	}
	if summary.ForcedCovers > 0 {
		fmt.Fprintf(&sb, " covers:%d", summary.ForcedCovers)
	}
	if snap.Crashed {
		sb.WriteString(" *** CRASH ***")
	}

	shown := 0
	for _, inst := range topMovers(snap.Instruments) {
		if shown >= 3 {
			break
		}
		fmt.Fprintf(&sb, " | %s $%.2f %+.1f%%", inst.Symbol, inst.CurrentPrice, inst.ChangePercent)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime el mercado completo, el leaderboard de agentes y los
// cortos con margin call.
func (c *Console) printFull(snap domain.Snapshot) {
	now := snap.At.Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] cycle %d, phase %s, sentiment %.0f/100\n",
		now, snap.Cycle, snap.Phase.Global, snap.Phase.Sentiment)
	if snap.Crashed {
		fmt.Fprintln(c.out, "  *** MARKET CRASH THIS CYCLE ***")
	}

	c.printInstruments(snap)
	c.printLeaderboard(snap)
	c.printShorts(snap)
}

func (c *Console) printInstruments(snap domain.Snapshot) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Sym", "Sector", "Price", "Chg%", "RSI", "Fair", "Momentum")

	for _, inst := range snap.Instruments {
		mom := snap.Momentum[inst.Sector].Momentum
		table.Append(
			inst.Symbol,
			string(inst.Sector),
			fmt.Sprintf("$%.2f", inst.CurrentPrice),
			fmt.Sprintf("%+.2f%%", inst.ChangePercent),
			fmt.Sprintf("%.0f", domain.RSI(inst.History, domain.RSIPeriod)),
			fmt.Sprintf("$%.0f", inst.FairValue),
			fmt.Sprintf("%+.2f", mom),
		)
	}
	table.Render()
}

func (c *Console) printLeaderboard(snap domain.Snapshot) {
	prices := make(map[string]float64, len(snap.Instruments))
	for _, inst := range snap.Instruments {
		prices[inst.Symbol] = inst.CurrentPrice
	}

	ranked := make([]domain.Agent, len(snap.Agents))
	copy(ranked, snap.Agents)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].PortfolioValue(prices) > ranked[j].PortfolioValue(prices)
	})

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Agent", "Archetype", "Cash", "Value", "P&L%", "Shorts")

	for i, a := range ranked {
		if i >= 10 {
			break
		}
		value := a.PortfolioValue(prices)
		pl := 0.0
		if a.InitialCash > 0 {
			pl = 100 * (value - a.InitialCash) / a.InitialCash
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			appengine.TruncateStr(a.Name, 20),
			string(a.Settings.Archetype),
			fmt.Sprintf("$%.0f", a.Portfolio.Cash),
			fmt.Sprintf("$%.0f", value),
			fmt.Sprintf("%+.1f%%", pl),
			fmt.Sprintf("%d", len(a.Shorts)),
		)
	}
	table.Render()
}

func (c *Console) printShorts(snap domain.Snapshot) {
	prices := make(map[string]float64, len(snap.Instruments))
	for _, inst := range snap.Instruments {
		prices[inst.Symbol] = inst.CurrentPrice
	}

	type row struct {
		agent string
		pos   domain.ShortPosition
	}
	var rows []row
	for _, a := range snap.Agents {
		for _, p := range a.Shorts {
			rows = append(rows, row{agent: a.Name, pos: p})
		}
	}
	if len(rows) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Agent", "Sym", "Shares", "Entry", "Now", "Unrlzd P/L", "Collateral", "Call")

	for _, r := range rows {
		call := ""
		if r.pos.MarginCall {
			call = fmt.Sprintf("CALL (%d left)", r.pos.GraceCyclesLeft)
		}
		price := prices[r.pos.Symbol]
		table.Append(
			appengine.TruncateStr(r.agent, 20),
			r.pos.Symbol,
			fmt.Sprintf("%d", r.pos.Shares),
			fmt.Sprintf("$%.2f", r.pos.EntryPrice),
			fmt.Sprintf("$%.2f", price),
			fmt.Sprintf("$%.2f", r.pos.UnrealizedPL(price)),
			fmt.Sprintf("$%.2f", r.pos.CollateralLocked),
			call,
		)
	}
	table.Render()
}

// topMovers ordena por |cambio porcentual| descendente.
func topMovers(instruments []domain.Instrument) []domain.Instrument {
	out := make([]domain.Instrument, len(instruments))
	copy(out, instruments)
	sort.Slice(out, func(i, j int) bool {
		return abs(out[i].ChangePercent) > abs(out[j].ChangePercent)
	})
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
