package runner

import (
	"context"
	"testing"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

type fixedStrategy struct {
	id  string
	out strategy.StrategyOutput
}

func (f fixedStrategy) ID() string { return f.id }
func (f fixedStrategy) Evaluate(bars bar.Series, set indicator.Set) strategy.StrategyOutput {
	return f.out
}

type sleepyStrategy struct {
	id    string
	sleep time.Duration
}

func (s sleepyStrategy) ID() string { return s.id }
func (s sleepyStrategy) Evaluate(bars bar.Series, set indicator.Set) strategy.StrategyOutput {
	time.Sleep(s.sleep)
	return strategy.StrategyOutput{Signal: strategy.Buy, Confidence: 1}
}

type panickyStrategy struct{ id string }

func (p panickyStrategy) ID() string { return p.id }
func (p panickyStrategy) Evaluate(bars bar.Series, set indicator.Set) strategy.StrategyOutput {
	panic("boom")
}

func inputsFor(symbols ...string) map[string]SymbolInput {
	out := make(map[string]SymbolInput, len(symbols))
	for _, s := range symbols {
		out[s] = SymbolInput{Bars: bar.Series{}, Set: indicator.Set{}}
	}
	return out
}

func TestRunAssemblesAllSymbolsAndStrategies(t *testing.T) {
	strategies := []strategy.Strategy{
		fixedStrategy{id: "a", out: strategy.StrategyOutput{Signal: strategy.Buy, Confidence: 0.7}},
		fixedStrategy{id: "b", out: strategy.StrategyOutput{Signal: strategy.Hold, Confidence: 0}},
	}
	r := New(strategies, 4, time.Second, nil)
	out := r.Run(context.Background(), inputsFor("X", "Y"))

	if len(out) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(out))
	}
	if out["X"]["a"].Signal != strategy.Buy {
		t.Fatalf("expected Buy for X/a, got %v", out["X"]["a"].Signal)
	}
}

func TestRunCoercesTimeoutToHold(t *testing.T) {
	strategies := []strategy.Strategy{sleepyStrategy{id: "slow", sleep: 50 * time.Millisecond}}
	r := New(strategies, 2, 5*time.Millisecond, nil)
	out := r.Run(context.Background(), inputsFor("X"))

	if out["X"]["slow"].Signal != strategy.Hold || out["X"]["slow"].Confidence != 0 {
		t.Fatalf("expected Hold/0 on timeout, got %+v", out["X"]["slow"])
	}
}

func TestRunIsolatesPanickingStrategy(t *testing.T) {
	strategies := []strategy.Strategy{
		panickyStrategy{id: "bad"},
		fixedStrategy{id: "good", out: strategy.StrategyOutput{Signal: strategy.Sell, Confidence: 0.5}},
	}
	r := New(strategies, 2, time.Second, nil)
	out := r.Run(context.Background(), inputsFor("X"))

	if out["X"]["bad"].Signal != strategy.Hold {
		t.Fatalf("expected panicking strategy coerced to Hold, got %+v", out["X"]["bad"])
	}
	if out["X"]["good"].Signal != strategy.Sell {
		t.Fatalf("expected sibling strategy unaffected, got %+v", out["X"]["good"])
	}
}
