package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/bolsasim/internal/application/engine"
	"github.com/alejandrodnm/bolsasim/internal/domain"
)

// universe.go — bootstrap determinista del universo: con el mismo seed y la
// misma config salen exactamente los mismos instrumentos y agentes.

// InstrumentSpec describe un instrumento del universo inicial.
type InstrumentSpec struct {
	Symbol      string        `yaml:"symbol"`
	Name        string        `yaml:"name"`
	Sector      domain.Sector `yaml:"sector"`
	BasePrice   float64       `yaml:"base_price"`
	FloatShares float64       `yaml:"float_shares"`
	FairValue   float64       `yaml:"fair_value"`
}

// UniverseConfig describe el universo inicial completo.
type UniverseConfig struct {
	Instruments []InstrumentSpec `yaml:"instruments"`
	AgentCount  int              `yaml:"agent_count"`
	CashMin     float64          `yaml:"cash_min"`
	CashMax     float64          `yaml:"cash_max"`
	PlayerCash  float64          `yaml:"player_cash"`
}

// PlayerAgentID identifica al agente del jugador dentro del estado.
const PlayerAgentID = "player"

// DefaultUniverseConfig: doce símbolos repartidos en los seis sectores.
func DefaultUniverseConfig() UniverseConfig {
	return UniverseConfig{
		Instruments: []InstrumentSpec{
			{Symbol: "QNT", Name: "Quantara Systems", Sector: domain.SectorTech, BasePrice: 150, FloatShares: 2_000_000, FairValue: 155},
			{Symbol: "NBL", Name: "Nebulix Software", Sector: domain.SectorTech, BasePrice: 85, FloatShares: 3_500_000, FairValue: 80},
			{Symbol: "MRD", Name: "Meridian Trust", Sector: domain.SectorFinance, BasePrice: 62, FloatShares: 5_000_000, FairValue: 66},
			{Symbol: "ARG", Name: "Argent Holdings", Sector: domain.SectorFinance, BasePrice: 110, FloatShares: 1_800_000, FairValue: 108},
			{Symbol: "HLX", Name: "Heliox Energy", Sector: domain.SectorEnergy, BasePrice: 45, FloatShares: 6_000_000, FairValue: 48},
			{Symbol: "PTR", Name: "Petrarch Fuels", Sector: domain.SectorEnergy, BasePrice: 28, FloatShares: 8_000_000, FairValue: 26},
			{Symbol: "VIT", Name: "Vitalis Pharma", Sector: domain.SectorHealth, BasePrice: 95, FloatShares: 2_500_000, FairValue: 92},
			{Symbol: "GEN", Name: "Genoma Labs", Sector: domain.SectorHealth, BasePrice: 130, FloatShares: 1_500_000, FairValue: 140},
			{Symbol: "LUX", Name: "Luxor Retail", Sector: domain.SectorConsumer, BasePrice: 38, FloatShares: 7_000_000, FairValue: 36},
			{Symbol: "CMS", Name: "Comestia Foods", Sector: domain.SectorConsumer, BasePrice: 52, FloatShares: 4_500_000, FairValue: 54},
			{Symbol: "FRG", Name: "Forgia Steel", Sector: domain.SectorIndustrial, BasePrice: 71, FloatShares: 3_000_000, FairValue: 69},
			{Symbol: "AXL", Name: "Axleron Motors", Sector: domain.SectorIndustrial, BasePrice: 24, FloatShares: 9_000_000, FairValue: 27},
		},
		AgentCount: 40,
		CashMin:    5_000,
		CashMax:    50_000,
		PlayerCash: 10_000,
	}
}

// BuildUniverse construye instrumentos y agentes iniciales. El jugador es el
// primer agente de la lista, con ID fijo y sin arquetipo autónomo activo
// (el motor de decisión lo ignora: sus órdenes entran por PlaceOrder).
func BuildUniverse(rng *rand.Rand, cfg UniverseConfig, now time.Time) ([]domain.Instrument, []domain.Agent) {
	instruments := make([]domain.Instrument, 0, len(cfg.Instruments))
	for _, spec := range cfg.Instruments {
		instruments = append(instruments, domain.Instrument{
			Symbol:       spec.Symbol,
			Name:         spec.Name,
			Sector:       spec.Sector,
			CurrentPrice: spec.BasePrice,
			FloatShares:  spec.FloatShares,
			FairValue:    spec.FairValue,
			MarketCap:    spec.BasePrice * spec.FloatShares,
			History: []domain.Candle{{
				Time: now, Open: spec.BasePrice, High: spec.BasePrice,
				Low: spec.BasePrice, Close: spec.BasePrice,
			}},
		})
	}

	agents := make([]domain.Agent, 0, cfg.AgentCount+1)
	if cfg.PlayerCash > 0 {
		agents = append(agents, domain.Agent{
			ID:          PlayerAgentID,
			Name:        "Player",
			Portfolio:   domain.Portfolio{Cash: cfg.PlayerCash, Holdings: map[string]domain.Holding{}},
			InitialCash: cfg.PlayerCash,
		})
	}

	for i := 0; i < cfg.AgentCount; i++ {
		arch := domain.ArchetypeFor(i, cfg.AgentCount)
		cash := engine.Uniform(rng, cfg.CashMin, cfg.CashMax)
		agents = append(agents, domain.Agent{
			ID:          uuid.New().String(),
			Name:        fmt.Sprintf("%s-%02d", arch, i),
			Portfolio:   domain.Portfolio{Cash: cash, Holdings: map[string]domain.Holding{}},
			InitialCash: cash,
			Settings: domain.AgentSettings{
				RiskTolerance:   rng.Intn(201) - 100,
				Archetype:       arch,
				TrendThreshold:  engine.Uniform(rng, 0.015, 0.035),
				RSIOversold:     engine.Uniform(rng, 25, 35),
				RSIOverbought:   engine.Uniform(rng, 65, 75),
				FairValueTol:    engine.Uniform(rng, 0.06, 0.15),
				TradeFrequency:  engine.Uniform(rng, 0.15, 0.45),
				TargetSpread:    engine.Uniform(rng, 0.006, 0.015),
				MaxRestingQuote: 3 + rng.Intn(3),
			},
		})
	}

	return instruments, agents
}
