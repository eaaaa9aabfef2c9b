package domain

import "time"

// MaxCandleHistory es la ventana deslizante de velas por instrumento.
const MaxCandleHistory = 100

// PriceFloor es el precio mínimo absoluto de cualquier instrumento.
const PriceFloor = 0.5

// Sector agrupa instrumentos que comparten régimen económico.
type Sector string

const (
	SectorTech       Sector = "tech"
	SectorFinance    Sector = "finance"
	SectorEnergy     Sector = "energy"
	SectorHealth     Sector = "health"
	SectorConsumer   Sector = "consumer"
	SectorIndustrial Sector = "industrial"
)

// AllSectors devuelve los sectores en orden estable (para folds deterministas).
func AllSectors() []Sector {
	return []Sector{
		SectorTech, SectorFinance, SectorEnergy,
		SectorHealth, SectorConsumer, SectorIndustrial,
	}
}

// Candle is a single OHLC bar in an instrument's price history.
// Invariant: High >= max(Open, Close) and Low <= min(Open, Close).
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Instrument is one tradeable symbol. Mutations are value-semantic: every
// cycle step produces a new snapshot, the previous one is never edited.
type Instrument struct {
	Symbol        string
	Name          string
	Sector        Sector
	CurrentPrice  float64
	History       []Candle // capped at MaxCandleHistory, most recent last
	Change        float64
	ChangePercent float64
	MarketCap     float64
	FloatShares   float64
	FairValue     float64
}

// LastCandle devuelve la vela más reciente, o false si no hay historia.
func (i Instrument) LastCandle() (Candle, bool) {
	if len(i.History) == 0 {
		return Candle{}, false
	}
	return i.History[len(i.History)-1], true
}

// WithHistory appends a candle respecting the sliding window and keeps the
// derived fields (price, change, market cap) in sync with its close.
func (i Instrument) WithHistory(c Candle) Instrument {
	prev := i.CurrentPrice
	hist := make([]Candle, 0, len(i.History)+1)
	hist = append(hist, i.History...)
	hist = append(hist, c)
	if len(hist) > MaxCandleHistory {
		hist = hist[len(hist)-MaxCandleHistory:]
	}
	i.History = hist
	i.CurrentPrice = c.Close
	i.Change = c.Close - prev
	if prev > 0 {
		i.ChangePercent = 100 * (c.Close - prev) / prev
	} else {
		i.ChangePercent = 0
	}
	i.MarketCap = c.Close * i.FloatShares
	return i
}

// Closes devuelve los cierres de la historia (oldest first).
func (i Instrument) Closes() []float64 {
	out := make([]float64, len(i.History))
	for j, c := range i.History {
		out[j] = c.Close
	}
	return out
}

// FairValueDeviation devuelve (precio - fairValue) / fairValue.
// Devuelve 0 si fairValue no está definido.
func (i Instrument) FairValueDeviation() float64 {
	if i.FairValue <= 0 {
		return 0
	}
	return (i.CurrentPrice - i.FairValue) / i.FairValue
}
