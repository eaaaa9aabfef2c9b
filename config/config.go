package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del simulador. Los valores en cero se
// sustituyen por los defaults del engine al construir la simulación.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Universe   UniverseConfig   `yaml:"universe"`
	Phases     PhasesConfig     `yaml:"phases"`
	Short      ShortConfig      `yaml:"short"`
	Modes      map[string]Mode  `yaml:"modes"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controla el loop de ciclos y el warmup.
type SimulationConfig struct {
	Seed            int64   `yaml:"seed"`
	IntervalMS      int     `yaml:"interval_ms"`
	WarmupCycles    int     `yaml:"warmup_cycles"`
	WarmupMinTrades int     `yaml:"warmup_min_trades"`
	WarmupBonusFrac float64 `yaml:"warmup_bonus_fraction"`
	ShortOpenProb   float64 `yaml:"short_open_prob"`
	DefaultMode     string  `yaml:"default_mode"`
	CreditPercent   float64 `yaml:"credit_percent"` // fracción del capital inicial aceptada como colateral
}

// UniverseConfig controla el universo inicial.
type UniverseConfig struct {
	AgentCount int     `yaml:"agent_count"`
	CashMin    float64 `yaml:"cash_min"`
	CashMax    float64 `yaml:"cash_max"`
	PlayerCash float64 `yaml:"player_cash"`
}

// PhasesConfig controla la máquina de fases y el mecanismo de crash.
type PhasesConfig struct {
	OverheatLookback      int     `yaml:"overheat_lookback"`
	OverheatThreshold     float64 `yaml:"overheat_threshold"`
	CrashProbPerCycle     float64 `yaml:"crash_prob_per_cycle"`
	CrashProbCap          float64 `yaml:"crash_prob_cap"`
	CrashShockMin         float64 `yaml:"crash_shock_min"`
	CrashShockMax         float64 `yaml:"crash_shock_max"`
	CorrelationThreshold  float64 `yaml:"correlation_threshold"`
	InteractionMultiplier float64 `yaml:"interaction_multiplier"`
	MomentumDecay         float64 `yaml:"momentum_decay"`
	MomentumUpdateRate    float64 `yaml:"momentum_update_rate"`
	InfluenceStrength     float64 `yaml:"influence_strength"`
	MaxInfluence          float64 `yaml:"max_influence"`
	TrendLookback         int     `yaml:"trend_lookback"`
}

// ShortConfig controla el subsistema de cortos.
type ShortConfig struct {
	InitialMarginPercent     float64 `yaml:"initial_margin_percent"`
	MaintenanceMarginPercent float64 `yaml:"maintenance_margin_percent"`
	BaseFeeRate              float64 `yaml:"base_fee_rate"`
	HardToBorrowMultiplier   float64 `yaml:"hard_to_borrow_multiplier"`
	GraceCycles              int     `yaml:"grace_cycles"`
	MaxShortPctOfFloat       float64 `yaml:"max_short_pct_of_float"`
}

// Mode son los parámetros de ejecución de un modo de juego.
type Mode struct {
	SpreadPercent    float64 `yaml:"spread_percent"`
	SlippagePerShare float64 `yaml:"slippage_per_share"`
	MaxSlippage      float64 `yaml:"max_slippage"`
	FeePercent       float64 `yaml:"fee_percent"`
	MinFee           float64 `yaml:"min_fee"`
}

// StorageConfig controla dónde se graban ciclos y trades.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, ":memory:", o vacío para no grabar
}

// MetricsConfig controla el endpoint de métricas Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // p.ej. ":9109"; vacío = desactivado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los valores del .env sobreescriben los del YAML para las keys que
// correspondan. Sin archivo se devuelven solo los defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// CycleInterval devuelve el intervalo de ciclo como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Simulation.IntervalMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Simulation.Seed = seed
		}
	}
	if v := os.Getenv("SIM_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SIM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
// Los knobs finos del engine (fases, cortos, modos) se quedan en cero aquí:
// el default real vive junto al código que lo usa.
func setDefaults(cfg *Config) {
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = 1
	}
	if cfg.Simulation.IntervalMS <= 0 {
		cfg.Simulation.IntervalMS = 2000
	}
	if cfg.Simulation.CreditPercent <= 0 {
		cfg.Simulation.CreditPercent = 0.5
	}
	if cfg.Simulation.DefaultMode == "" {
		cfg.Simulation.DefaultMode = "standard"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
