package domain

import "time"

// MaxTransactionLog acota el log de transacciones por agente.
const MaxTransactionLog = 10

// Archetype is the behavioral family of an autonomous trader.
type Archetype string

const (
	ArchetypeBalanced       Archetype = "balanced"
	ArchetypeMomentum       Archetype = "momentum"
	ArchetypeContrarian     Archetype = "contrarian"
	ArchetypeFundamentalist Archetype = "fundamentalist"
	ArchetypeNoise          Archetype = "noise"
	ArchetypeMarketMaker    Archetype = "market_maker"
)

// archetypeMix define la mezcla de población por bucketing acumulativo.
// El orden importa: los buckets se asignan por índice de agente, no por azar,
// para que la mezcla sea reproducible con cualquier seed.
var archetypeMix = []struct {
	arch Archetype
	pct  float64
}{
	{ArchetypeBalanced, 0.40},
	{ArchetypeMomentum, 0.15},
	{ArchetypeContrarian, 0.15},
	{ArchetypeFundamentalist, 0.10},
	{ArchetypeNoise, 0.15},
	{ArchetypeMarketMaker, 0.05},
}

// ArchetypeFor asigna el arquetipo del agente `index` de una población de
// `total` por porcentaje acumulativo. Determinista e independiente del seed.
func ArchetypeFor(index, total int) Archetype {
	if total <= 0 {
		return ArchetypeBalanced
	}
	frac := float64(index) / float64(total)
	cum := 0.0
	for _, m := range archetypeMix {
		cum += m.pct
		if frac < cum {
			return m.arch
		}
	}
	return archetypeMix[len(archetypeMix)-1].arch
}

// Holding is one owned position inside a portfolio.
// Invariant: Shares > 0 and AvgBuyPrice > 0 while the holding exists.
type Holding struct {
	Shares      int
	AvgBuyPrice float64
}

// Portfolio is an agent's cash plus holdings. Cash never goes negative.
type Portfolio struct {
	Cash     float64
	Holdings map[string]Holding
}

// Transaction is one entry of the bounded per-agent trade log (newest first).
type Transaction struct {
	ID     string
	Symbol string
	Side   Side
	Shares int
	Price  float64
	At     time.Time
}

// AgentSettings controla el comportamiento del agente.
type AgentSettings struct {
	RiskTolerance   int // -100 (averso) .. +100 (agresivo)
	Archetype       Archetype
	TrendThreshold  float64 // momentum: |trend| mínimo para operar
	RSIOversold     float64 // contrarian: compra bajo este RSI
	RSIOverbought   float64 // contrarian: vende sobre este RSI
	FairValueTol    float64 // fundamentalist: desviación mínima
	TradeFrequency  float64 // noise: probabilidad de operar por ciclo
	TargetSpread    float64 // market maker: spread objetivo
	MaxRestingQuote int     // market maker: tope de quotes vivos
}

// Agent is one autonomous trader. Value semantics: cycle steps build new
// snapshots via the Apply* methods, never in-place edits.
type Agent struct {
	ID                  string
	Name                string
	Portfolio           Portfolio
	Transactions        []Transaction // capped, newest first
	Settings            AgentSettings
	Shorts              []ShortPosition
	CyclesSinceInterest int
	InitialCash         float64
}

// NormalizedRisk devuelve RiskTolerance en [-1, 1].
func (a Agent) NormalizedRisk() float64 {
	r := float64(a.Settings.RiskTolerance) / 100
	if r < -1 {
		return -1
	}
	if r > 1 {
		return 1
	}
	return r
}

// HoldingShares devuelve las acciones poseídas de un símbolo (0 si ninguna).
func (a Agent) HoldingShares(symbol string) int {
	return a.Portfolio.Holdings[symbol].Shares
}

// PortfolioValue valora cash + holdings a los precios actuales.
func (a Agent) PortfolioValue(prices map[string]float64) float64 {
	total := a.Portfolio.Cash
	for sym, h := range a.Portfolio.Holdings {
		total += float64(h.Shares) * prices[sym]
	}
	return total
}

// ApplyBuy returns the agent after buying shares at price, recomputing the
// weighted-average cost basis. Returns the agent unchanged when it cannot
// afford the purchase ("cannot act" is never an error).
func (a Agent) ApplyBuy(txID, symbol string, shares int, price float64, at time.Time) (Agent, bool) {
	cost := float64(shares) * price
	if shares <= 0 || price <= 0 || cost > a.Portfolio.Cash {
		return a, false
	}

	holdings := cloneHoldings(a.Portfolio.Holdings)
	h := holdings[symbol]
	newShares := h.Shares + shares
	holdings[symbol] = Holding{
		Shares:      newShares,
		AvgBuyPrice: (float64(h.Shares)*h.AvgBuyPrice + cost) / float64(newShares),
	}

	a.Portfolio = Portfolio{Cash: a.Portfolio.Cash - cost, Holdings: holdings}
	a.Transactions = pushTransaction(a.Transactions, Transaction{
		ID: txID, Symbol: symbol, Side: SideBuy, Shares: shares, Price: price, At: at,
	})
	return a, true
}

// ApplySell returns the agent after selling shares at price. Selling more
// than owned, or an unknown symbol, leaves the agent unchanged.
func (a Agent) ApplySell(txID, symbol string, shares int, price float64, at time.Time) (Agent, bool) {
	h, ok := a.Portfolio.Holdings[symbol]
	if !ok || shares <= 0 || shares > h.Shares || price <= 0 {
		return a, false
	}

	holdings := cloneHoldings(a.Portfolio.Holdings)
	if h.Shares == shares {
		delete(holdings, symbol)
	} else {
		holdings[symbol] = Holding{Shares: h.Shares - shares, AvgBuyPrice: h.AvgBuyPrice}
	}

	a.Portfolio = Portfolio{
		Cash:     a.Portfolio.Cash + float64(shares)*price,
		Holdings: holdings,
	}
	a.Transactions = pushTransaction(a.Transactions, Transaction{
		ID: txID, Symbol: symbol, Side: SideSell, Shares: shares, Price: price, At: at,
	})
	return a, true
}

// ShortPositionFor devuelve la posición corta de un símbolo y su índice,
// o (-1, zero) si no existe.
func (a Agent) ShortPositionFor(symbol string) (int, ShortPosition) {
	for i, p := range a.Shorts {
		if p.Symbol == symbol {
			return i, p
		}
	}
	return -1, ShortPosition{}
}

func cloneHoldings(in map[string]Holding) map[string]Holding {
	out := make(map[string]Holding, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pushTransaction(log []Transaction, tx Transaction) []Transaction {
	out := make([]Transaction, 0, len(log)+1)
	out = append(out, tx)
	out = append(out, log...)
	if len(out) > MaxTransactionLog {
		out = out[:MaxTransactionLog]
	}
	return out
}
