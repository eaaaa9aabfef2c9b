package domain

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Dir devuelve +1 para compras y −1 para ventas.
func (s Side) Dir() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// DecisionFactors is a sealed sum type: every trade intent carries the
// inputs that produced it, tagged by archetype path. Exhaustive switches
// over the concrete types are safe because the marker is unexported.
type DecisionFactors interface {
	decisionFactors()
}

// BuyFactors are the inputs behind a buy intent.
type BuyFactors struct {
	Volatility    float64
	Trend         float64
	Score         float64
	Noise         float64
	RiskTolerance int
	WarmupBonus   float64
}

// SellFactors are the inputs behind a sell intent.
type SellFactors struct {
	Score         float64
	PLPercent     float64
	Trend         float64
	RiskTolerance int
}

// SignalFactors are the inputs behind rule-driven archetypes
// (momentum, contrarian, fundamentalist, noise).
type SignalFactors struct {
	Signal    string // "trend" | "rsi" | "fair_value" | "noise"
	Value     float64
	Threshold float64
}

// MakerFactors are the inputs behind a market-maker quote.
type MakerFactors struct {
	Mid          float64
	TargetSpread float64
}

func (BuyFactors) decisionFactors()    {}
func (SellFactors) decisionFactors()   {}
func (SignalFactors) decisionFactors() {}
func (MakerFactors) decisionFactors()  {}

// TradeIntent is at most one per agent per cycle: the raw desire to trade
// before execution moves the price.
type TradeIntent struct {
	AgentID string
	Symbol  string
	Side    Side
	Shares  int
	Factors DecisionFactors
}

// TradeEvent is an executed trade, emitted for downstream float/inventory
// trackers. This is the engine's only outward-facing trade record.
type TradeEvent struct {
	Symbol string
	Side   Side
	Shares int
	Price  float64
	Agent  string
}

// MakerQuote is a resting bid/ask pair placed by the market-maker agent.
// Quotes are returned to the caller, never matched inside the engine.
type MakerQuote struct {
	AgentID string
	Symbol  string
	Bid     float64
	Ask     float64
	BidSize int
	AskSize int
	Factors MakerFactors
}

// ShortAction clasifica una decisión del subsistema de cortos.
type ShortAction string

const (
	ShortActionOpen        ShortAction = "OPEN"
	ShortActionCover       ShortAction = "COVER"
	ShortActionMarginCall  ShortAction = "MARGIN_CALL"
	ShortActionForcedCover ShortAction = "FORCED_COVER"
)

// ShortDecision is a discrete record of a short-subsystem event, returned to
// the caller rather than applied to any other subsystem.
type ShortDecision struct {
	AgentID string
	Symbol  string
	Action  ShortAction
	Shares  int
	Price   float64
	Reason  string
}

// LoanDecision is returned when an order needs more cash than the agent has
// but fits its credit line. The engine never draws the loan itself: the
// external credit module decides, tops up cash and resubmits.
type LoanDecision struct {
	AgentID string
	Amount  float64
	Reason  string
}
