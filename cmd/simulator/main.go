package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/bolsasim/config"
	"github.com/alejandrodnm/bolsasim/internal/adapters/credit"
	"github.com/alejandrodnm/bolsasim/internal/adapters/metrics"
	"github.com/alejandrodnm/bolsasim/internal/adapters/notify"
	"github.com/alejandrodnm/bolsasim/internal/adapters/storage"
	"github.com/alejandrodnm/bolsasim/internal/application/engine/sim"
	"github.com/alejandrodnm/bolsasim/internal/domain"
	"github.com/alejandrodnm/bolsasim/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	cycles := flag.Int("cycles", 0, "stop after N cycles (0 = run until interrupted)")
	seed := flag.Int64("seed", 0, "RNG seed (overrides config)")
	table := flag.Bool("table", false, "print full tables per cycle (default: compact 1-line)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	simCfg := buildSimConfig(cfg)
	if *seed != 0 {
		simCfg.Seed = *seed
	}

	slog.Info("bolsasim starting",
		"config", *configPath,
		"seed", simCfg.Seed,
		"interval", simCfg.CycleInterval,
		"agents", simCfg.Universe.AgentCount,
		"instruments", len(simCfg.Universe.Instruments),
		"cycles", *cycles,
	)

	var recorder ports.Recorder
	if cfg.Storage.DSN != "" {
		store, err := storage.NewSQLiteRecorder(cfg.Storage.DSN, uuid.NewString())
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		recorder = store
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*table)
	var notifier ports.Notifier = console
	if cfg.Metrics.Addr != "" {
		exporter, handler := metrics.NewExporter()
		notifier = notify.NewFanout(console, exporter)
		go serveMetrics(ctx, cfg.Metrics.Addr, handler)
	}

	creditLine := credit.NewFixedPercent(cfg.Simulation.CreditPercent)

	s := sim.New(simCfg, creditLine, recorder, notifier)
	s.RunWarmup()

	if err := s.Run(ctx, *cycles); err != nil {
		slog.Error("simulator exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("bolsasim stopped cleanly")
}

// buildSimConfig parte de los defaults del engine y pisa solo lo que la
// config declara. Un cero en el YAML significa "default del engine".
func buildSimConfig(cfg *config.Config) sim.Config {
	c := sim.DefaultConfig()

	if cfg.Simulation.Seed != 0 {
		c.Seed = cfg.Simulation.Seed
	}
	c.CycleInterval = cfg.CycleInterval()
	if cfg.Simulation.WarmupCycles > 0 {
		c.Warmup.Cycles = cfg.Simulation.WarmupCycles
	}
	if cfg.Simulation.WarmupMinTrades > 0 {
		c.Warmup.MinTrades = cfg.Simulation.WarmupMinTrades
	}
	if cfg.Simulation.WarmupBonusFrac > 0 {
		c.Warmup.BonusFraction = cfg.Simulation.WarmupBonusFrac
	}
	if cfg.Simulation.ShortOpenProb > 0 {
		c.ShortOpenProb = cfg.Simulation.ShortOpenProb
	}
	if cfg.Simulation.DefaultMode != "" {
		c.DefaultMode = cfg.Simulation.DefaultMode
	}

	if cfg.Universe.AgentCount > 0 {
		c.Universe.AgentCount = cfg.Universe.AgentCount
	}
	if cfg.Universe.CashMin > 0 {
		c.Universe.CashMin = cfg.Universe.CashMin
	}
	if cfg.Universe.CashMax > 0 {
		c.Universe.CashMax = cfg.Universe.CashMax
	}
	if cfg.Universe.PlayerCash > 0 {
		c.Universe.PlayerCash = cfg.Universe.PlayerCash
	}

	p := cfg.Phases
	if p.OverheatLookback > 0 {
		c.Phase.OverheatLookback = p.OverheatLookback
	}
	if p.OverheatThreshold > 0 {
		c.Phase.OverheatThreshold = p.OverheatThreshold
	}
	if p.CrashProbPerCycle > 0 {
		c.Phase.CrashProbPerCycle = p.CrashProbPerCycle
	}
	if p.CrashProbCap > 0 {
		c.Phase.CrashProbCap = p.CrashProbCap
	}
	if p.CrashShockMin != 0 {
		c.Phase.CrashShockMin = p.CrashShockMin
	}
	if p.CrashShockMax != 0 {
		c.Phase.CrashShockMax = p.CrashShockMax
	}
	if p.CorrelationThreshold > 0 {
		c.Phase.CorrelationThreshold = p.CorrelationThreshold
	}
	if p.InteractionMultiplier > 0 {
		c.Phase.InteractionMultiplier = p.InteractionMultiplier
	}
	if p.MomentumDecay > 0 {
		c.Phase.MomentumDecay = p.MomentumDecay
	}
	if p.MomentumUpdateRate > 0 {
		c.Phase.MomentumUpdateRate = p.MomentumUpdateRate
	}
	if p.InfluenceStrength > 0 {
		c.Phase.InfluenceStrength = p.InfluenceStrength
	}
	if p.MaxInfluence > 0 {
		c.Phase.MaxInfluence = p.MaxInfluence
	}
	if p.TrendLookback > 0 {
		c.Phase.TrendLookback = p.TrendLookback
	}

	sh := cfg.Short
	if sh.InitialMarginPercent > 0 {
		c.Margin.InitialMarginPercent = sh.InitialMarginPercent
	}
	if sh.MaintenanceMarginPercent > 0 {
		c.Margin.MaintenanceMarginPercent = sh.MaintenanceMarginPercent
	}
	if sh.BaseFeeRate > 0 {
		c.Margin.BaseFeeRate = sh.BaseFeeRate
	}
	if sh.HardToBorrowMultiplier > 0 {
		c.Margin.HardToBorrowMultiplier = sh.HardToBorrowMultiplier
	}
	if sh.GraceCycles > 0 {
		c.Margin.GraceCycles = sh.GraceCycles
	}
	if sh.MaxShortPctOfFloat > 0 {
		c.Margin.MaxShortPctOfFloat = sh.MaxShortPctOfFloat
	}

	if len(cfg.Modes) > 0 {
		c.Modes = make(map[string]domain.ExecutionParams, len(cfg.Modes))
		for name, m := range cfg.Modes {
			c.Modes[name] = domain.ExecutionParams{
				SpreadPercent:    m.SpreadPercent,
				SlippagePerShare: m.SlippagePerShare,
				MaxSlippage:      m.MaxSlippage,
				FeePercent:       m.FeePercent,
				MinFee:           m.MinFee,
			}
		}
	}

	return c
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Warn("metrics server error", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
