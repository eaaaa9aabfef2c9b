package trader

import (
	"math/rand"

	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// maker.go — el agente market-maker no emite trades: coloca un bid y un ask
// en reposo alrededor del mid al spread objetivo. Los quotes se devuelven al
// caller (el engine no los cruza internamente).

// makerMidWindow es la ventana del SMA usado como mid de cotización.
const makerMidWindow = 5

// Quote genera los quotes en reposo de un agente market-maker para este
// ciclo, limitados por su tope de quotes vivos. El spread objetivo se ensancha
// con el spreadModifier de la fase: en pánico se cotiza más defensivo.
func (e *Engine) Quote(
	rng *rand.Rand,
	agent domain.Agent,
	instruments []domain.Instrument,
	spreadModifier float64,
) []domain.MakerQuote {
	if agent.Settings.Archetype != domain.ArchetypeMarketMaker {
		return nil
	}

	targetSpread := agent.Settings.TargetSpread
	if targetSpread <= 0 {
		targetSpread = 0.01
	}
	if spreadModifier > 0 {
		targetSpread *= spreadModifier
	}

	maxQuotes := agent.Settings.MaxRestingQuote
	if maxQuotes <= 0 {
		maxQuotes = 4
	}

	// El presupuesto por lado reparte el cash entre los quotes del ciclo.
	perQuoteCash := agent.Portfolio.Cash / float64(maxQuotes*2)

	quotes := make([]domain.MakerQuote, 0, maxQuotes)
	// Orden aleatorio: que el maker no favorezca siempre los mismos símbolos.
	order := rng.Perm(len(instruments))
	for _, idx := range order {
		if len(quotes) >= maxQuotes {
			break
		}
		inst := instruments[idx]
		// El mid de cotización es el SMA corto, no el último print: el maker
		// no persigue cada tick.
		mid := domain.SMA(inst.History, makerMidWindow)
		if mid <= 0 {
			continue
		}

		bid := mid * (1 - targetSpread/2)
		ask := mid * (1 + targetSpread/2)
		if bid < domain.PriceFloor {
			bid = domain.PriceFloor
		}

		bidSize := int(perQuoteCash / bid)
		askSize := agent.HoldingShares(inst.Symbol) // solo cotiza inventario real
		if bidSize <= 0 && askSize <= 0 {
			continue
		}

		quotes = append(quotes, domain.MakerQuote{
			AgentID: agent.ID,
			Symbol:  inst.Symbol,
			Bid:     bid,
			Ask:     ask,
			BidSize: bidSize,
			AskSize: askSize,
			Factors: domain.MakerFactors{Mid: mid, TargetSpread: targetSpread},
		})
	}
	return quotes
}
