// Package main is the entry point for the algoTradingAgent decision engine.
//
// The engine:
//  1. Loads configuration
//  2. Initializes all components (broker, storage, calendar, cache, strategies)
//  3. Drives the fixed-cadence tick loop: fetch bars, evaluate strategies,
//     classify regime, blend an ensemble decision, gate and size it, manage
//     position lifecycle, execute fills, and persist every step.
//  4. Logs every action for auditability.
//
// Modes:
//   - "run":    Start the continuous tick loop until terminated.
//   - "status": Print current market/calendar status and exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/broker"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engine"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engineerr"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/eventbus"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/market"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/storage"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	mode := flag.String("mode", "run", "run mode: run | status")
	marketDataDir := flag.String("market-data-dir", "market_data", "directory of per-symbol CSV bar history")
	confirmLive := flag.Bool("confirm-live", false, "required safety flag to run in live trading mode")
	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("failed to load config: %v", err)
		os.Exit(engineerr.ExitCode(engineerr.ErrConfig))
	}
	logger.Printf("config loaded: mode=%s symbols=%d interval=%s", cfg.TradingMode, len(cfg.Symbols), cfg.Interval)

	if cfg.TradingMode == config.ModeLive {
		envConfirmed := os.Getenv("ALGO_LIVE_CONFIRMED") == "true"
		if !*confirmLive || !envConfirmed {
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "  LIVE MODE BLOCKED — two explicit confirmations are required:")
			fmt.Fprintln(os.Stderr, "    1. CLI flag:  --confirm-live")
			fmt.Fprintln(os.Stderr, "    2. Env var:   ALGO_LIVE_CONFIRMED=true")
			fmt.Fprintln(os.Stderr, "")
			if !*confirmLive {
				fmt.Fprintln(os.Stderr, "  MISSING: --confirm-live flag")
			}
			if !envConfirmed {
				fmt.Fprintln(os.Stderr, "  MISSING: ALGO_LIVE_CONFIRMED=true environment variable")
			}
			fmt.Fprintln(os.Stderr, "")
			os.Exit(engineerr.ExitCode(engineerr.ErrConfig))
		}
		logger.Println("LIVE MODE ACTIVE — stricter risk guardrails apply (no live broker is wired; orders still route through the paper broker)")
	} else {
		logger.Println("PAPER MODE — simulated orders only, no real money at risk")
	}

	cal, err := market.NewCalendar(cfg.MarketCalendarPath)
	if err != nil {
		logger.Printf("failed to load market calendar: %v", err)
		os.Exit(engineerr.ExitCode(engineerr.ErrConfig))
	}

	if *mode == "status" {
		runStatus(logger, cal, cfg)
		return
	}
	if *mode != "run" {
		logger.Printf("unknown mode: %s (expected: run, status)", *mode)
		os.Exit(engineerr.ExitCode(engineerr.ErrConfig))
	}

	dataPort, err := market.LoadCSVReplayPort(*marketDataDir, cfg.Symbols)
	if err != nil {
		logger.Printf("failed to load market data: %v", err)
		os.Exit(engineerr.ExitCode(engineerr.ErrDataUnavailable))
	}

	cache := indicator.NewCache(len(cfg.Symbols)*4, cfg.Interval, 64, indicator.DefaultPeriods())
	strategies := strategy.DefaultRegistry()
	logger.Printf("loaded %d strategies", len(strategies))

	activeBroker := broker.NewPaperBroker(cfg.StartCash, cfg.Broker)

	repo, closeRepo := buildRepository(cfg, logger)
	defer closeRepo()

	eng := engine.New(*cfg, dataPort, cache, strategies, cal, activeBroker, repo, logger)

	bus := eventbus.New(logger)
	go bus.Run()
	defer bus.Shutdown()
	eng.SetEventBus(bus)
	go logFills(bus, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Bootstrap(ctx); err != nil {
		logger.Printf("bootstrap failed: %v", err)
		os.Exit(engineerr.ExitCode(err))
	}

	if err := eng.Run(ctx); err != nil {
		logger.Printf("engine stopped: %v", err)
		os.Exit(engineerr.ExitCode(err))
	}
	logger.Println("engine shut down cleanly")
}

// buildRepository wires a durable Postgres-backed Repository when a
// database_url is configured, falling back to an in-memory store — the
// engine works without a database, degrading gracefully instead of
// refusing to start.
func buildRepository(cfg *config.Config, logger *log.Logger) (storage.Repository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Println("no database_url configured — using in-memory store (no durability across restarts)")
		return storage.NewMemoryStore(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("WARNING: database not available: %v — falling back to in-memory store", err)
		return storage.NewMemoryStore(), func() {}
	}
	logger.Println("database connected — durable persistence enabled")
	return store, store.Close
}

// logFills subscribes to the engine's event bus and logs every fill, the
// one event kind an operator watching the console cares about most.
func logFills(bus *eventbus.Bus, logger *log.Logger) {
	sub := bus.Subscribe(64)
	defer bus.Unsubscribe(sub)
	for ev := range sub.Events() {
		if ev.Kind != eventbus.KindFill {
			continue
		}
		if fill, ok := ev.Data.(storage.FillRecord); ok {
			logger.Printf("[fill] %s %s qty=%d price=%.2f fee=%.2f", fill.Symbol, fill.Side, fill.Qty, fill.Price, fill.Fee)
		}
	}
}

// runStatus prints the current state of the market calendar and exits.
func runStatus(logger *log.Logger, cal *market.Calendar, cfg *config.Config) {
	now := time.Now()
	logger.Println("=== System Status ===")
	logger.Printf("Time: %s", now.Format("2006-01-02 15:04:05 MST"))
	logger.Printf("Trading day: %v", cal.IsTradingDay(now))
	logger.Printf("Market open: %v", cal.IsMarketOpen(now))
	logger.Printf("Next session in: %v", cal.TimeUntilNextSession(now).Round(time.Minute))
	logger.Printf("Mode: %s", cfg.TradingMode)
	logger.Printf("Symbols: %v", cfg.Symbols)

	if reason := cal.HolidayReason(now); reason != "" {
		logger.Printf("Holiday: %s", reason)
	}
}
