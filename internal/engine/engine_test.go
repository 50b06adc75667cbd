package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"testing"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/broker"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/clock"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engineerr"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/eventbus"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/market"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/storage"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

func testLogger() *log.Logger {
	return log.New(log.Writer(), "", 0)
}

// syntheticSeries builds a deterministic uptrend-with-oscillation series,
// long enough to satisfy every indicator's lookback and the regime
// detector's baseline window.
func syntheticSeries(n int, base time.Time) bar.Series {
	out := make(bar.Series, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price = 100.0 + float64(i)*0.05 + 2*math.Sin(float64(i)/10.0)
		out[i] = bar.Bar{
			Ts:     base.Add(time.Duration(i) * time.Minute),
			Open:   price - 0.1,
			High:   price + 0.3,
			Low:    price - 0.3,
			Close:  price,
			Volume: 1000 + int64(i),
		}
	}
	return out
}

func testConfig(symbols []string) config.Config {
	cfg := config.Default()
	cfg.Symbols = symbols
	cfg.IgnoreMarketHours = true
	cfg.Runtime.SnapshotEveryK = 2
	return cfg
}

func buildEngine(symbols []string, series map[bar.Symbol]bar.Series, repo storage.Repository) *Engine {
	cfg := testConfig(symbols)
	cache := indicator.NewCache(50, time.Minute, 64, indicator.DefaultPeriods())
	port := market.NewReplayPort(series)
	brk := broker.NewPaperBroker(cfg.StartCash, cfg.Broker)
	return New(cfg, port, cache, strategy.DefaultRegistry(), nil, brk, repo, testLogger())
}

func replaySeries(symbols []string, n int) map[bar.Symbol]bar.Series {
	base := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)
	out := make(map[bar.Symbol]bar.Series, len(symbols))
	for _, s := range symbols {
		out[bar.Symbol(s).Normalize()] = syntheticSeries(n, base)
	}
	return out
}

func runTicks(t *testing.T, e *Engine, n int) {
	t.Helper()
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		tick := clock.Tick{Seq: i, At: base.Add(time.Duration(i) * time.Minute)}
		if err := e.Step(context.Background(), tick); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
}

func TestStepIsDeterministicAcrossIndependentEngines(t *testing.T) {
	symbols := []string{"AAA", "BBB"}
	series := replaySeries(symbols, 300)

	repoA := storage.NewMemoryStore()
	repoB := storage.NewMemoryStore()

	engineA := buildEngine(symbols, series, repoA)
	engineB := buildEngine(symbols, series, repoB)

	runTicks(t, engineA, 5)
	runTicks(t, engineB, 5)

	decA := repoA.Decisions()
	decB := repoB.Decisions()

	if len(decA) != len(decB) {
		t.Fatalf("expected identical decision counts, got %d vs %d", len(decA), len(decB))
	}
	for i := range decA {
		if decA[i] != decB[i] {
			t.Fatalf("decision %d diverged between independent engines:\n%+v\n%+v", i, decA[i], decB[i])
		}
	}
}

type fatalOnFillRepo struct {
	*storage.MemoryStore
	fillAttempts int
}

func (f *fatalOnFillRepo) LogFill(ctx context.Context, rec storage.FillRecord) error {
	f.fillAttempts++
	return fmt.Errorf("fills: %w", engineerr.ErrPersistenceFatal)
}

func TestStepHaltsOnFatalFillPersistenceError(t *testing.T) {
	symbols := []string{"AAA"}
	series := replaySeries(symbols, 300)
	repo := &fatalOnFillRepo{MemoryStore: storage.NewMemoryStore()}

	e := buildEngine(symbols, series, repo)

	// Run enough ticks over a steady uptrend that the ensemble eventually
	// confirms a Buy and the PositionManager submits an order; the first
	// fill attempt should halt the engine since every attempt fails fatally.
	var lastErr error
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 200; i++ {
		tick := clock.Tick{Seq: i, At: base.Add(time.Duration(i) * time.Minute)}
		lastErr = e.Step(context.Background(), tick)
		if lastErr != nil {
			break
		}
	}

	if repo.fillAttempts == 0 {
		t.Skip("synthetic series never produced a confirmed fill within 200 ticks")
	}
	if !errors.Is(lastErr, engineerr.ErrPersistenceFatal) {
		t.Fatalf("expected the first fill attempt to halt the engine with a fatal persistence error, got %v", lastErr)
	}
}

func TestBootstrapLoadsPersistedEnsembleWeights(t *testing.T) {
	symbols := []string{"AAA"}
	series := replaySeries(symbols, 300)
	repo := storage.NewMemoryStore()

	weightsJSON, _ := storage.EncodeWeights(map[string]float64{"breakout_v1": 5.0})
	if err := repo.SaveLearningState(context.Background(), storage.LearningStateRecord{WeightsJSON: weightsJSON, UpdateCount: 7}); err != nil {
		t.Fatalf("SaveLearningState: %v", err)
	}

	e := buildEngine(symbols, series, repo)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	weights, updateCount := e.ensemble.Snapshot()
	if updateCount != 7 {
		t.Fatalf("expected bootstrapped update_count=7, got %d", updateCount)
	}
	if weights["breakout_v1"] != 5.0 {
		t.Fatalf("expected bootstrapped weight for breakout_v1, got %v", weights["breakout_v1"])
	}
}

func TestStepSkipsAndWarnsOnceForMissingSymbol(t *testing.T) {
	symbols := []string{"AAA", "ZZZ"}
	series := replaySeries([]string{"AAA"}, 300) // ZZZ never supplied by the port
	repo := storage.NewMemoryStore()

	e := buildEngine(symbols, series, repo)
	runTicks(t, e, 2)

	if !e.warnedInsufficientData["ZZZ"] {
		t.Fatal("expected ZZZ to be flagged as insufficient data")
	}
	for _, rec := range repo.Decisions() {
		if rec.Symbol == "ZZZ" {
			t.Fatal("expected no decisions logged for a symbol with no data")
		}
	}
}

func TestStepPublishesDecisionsToEventBus(t *testing.T) {
	symbols := []string{"AAA"}
	series := replaySeries(symbols, 300)
	repo := storage.NewMemoryStore()

	e := buildEngine(symbols, series, repo)

	bus := eventbus.New(testLogger())
	go bus.Run()
	defer bus.Shutdown()
	e.SetEventBus(bus)

	sub := bus.Subscribe(16)
	defer bus.Unsubscribe(sub)

	runTicks(t, e, 1)

	// The detector starts at Unknown, so the first tick's classification is
	// a regime change, published before the tick's decisions.
	for {
		select {
		case ev := <-sub.Events():
			if ev.Kind == eventbus.KindRegimeChange {
				continue
			}
			if ev.Kind != eventbus.KindDecision {
				t.Fatalf("expected the first non-regime event to be a decision, got %v", ev.Kind)
			}
			return
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a published decision event")
		}
	}
}

func TestStepProducesPeriodicSnapshots(t *testing.T) {
	symbols := []string{"AAA"}
	series := replaySeries(symbols, 300)
	repo := storage.NewMemoryStore()

	e := buildEngine(symbols, series, repo)
	runTicks(t, e, 4) // SnapshotEveryK=2 -> 2 snapshots

	if len(repo.Snapshots()) != 2 {
		t.Fatalf("expected 2 snapshots after 4 ticks at K=2, got %d", len(repo.Snapshots()))
	}
}
