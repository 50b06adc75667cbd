package ensemble

import (
	"math"
	"testing"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/regime"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

func TestWeightsStartEqualAndNormalized(t *testing.T) {
	e := New(DefaultConfig(), []string{"a", "b", "c"})
	w := e.normalizedWeights(regime.Unknown)
	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("normalized weights sum = %v, want 1", sum)
	}
	for _, v := range w {
		if math.Abs(v-1.0/3) > 1e-9 {
			t.Fatalf("expected equal weights, got %v", v)
		}
	}
}

func TestDecideThresholds(t *testing.T) {
	e := New(DefaultConfig(), []string{"a", "b"})
	outputs := map[string]strategy.StrategyOutput{
		"a": {Signal: strategy.Buy, Confidence: 0.9},
		"b": {Signal: strategy.Buy, Confidence: 0.9},
	}
	d := e.Decide(outputs, regime.Unknown)
	if d.Signal != strategy.Buy {
		t.Fatalf("expected Buy, got %v (score=%v)", d.Signal, d.Score)
	}
}

func TestDecideHoldBelowThreshold(t *testing.T) {
	e := New(DefaultConfig(), []string{"a", "b"})
	outputs := map[string]strategy.StrategyOutput{
		"a": {Signal: strategy.Buy, Confidence: 0.1},
		"b": {Signal: strategy.Sell, Confidence: 0.1},
	}
	d := e.Decide(outputs, regime.Unknown)
	if d.Signal != strategy.Hold {
		t.Fatalf("expected Hold, got %v", d.Signal)
	}
}

func TestUpdateStaysWithinBounds(t *testing.T) {
	e := New(DefaultConfig(), []string{"a", "b"})
	for i := 0; i < 5000; i++ {
		e.Update(map[string]float64{"a": 1.0, "b": 0.0})
	}
	weights, _ := e.Snapshot()
	if weights["a"] > DefaultConfig().WMax {
		t.Fatalf("a weight exceeded WMax: %v", weights["a"])
	}
	if weights["b"] < DefaultConfig().WMin {
		t.Fatalf("b weight below WMin: %v", weights["b"])
	}
}

func TestEtaDecayMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg, []string{"a"})

	etaAt := func(updateCount int) float64 {
		return cfg.Eta0 / (1 + float64(updateCount)/cfg.EtaDecayDenom)
	}

	prev := etaAt(e.updateCount)
	for i := 0; i < 50; i++ {
		e.Update(map[string]float64{"a": 0.6})
		cur := etaAt(e.updateCount)
		if cur > prev {
			t.Fatalf("eta increased: %v -> %v", prev, cur)
		}
		prev = cur
	}
}

func TestNormalizedCacheInvalidatedOnUpdate(t *testing.T) {
	e := New(DefaultConfig(), []string{"a", "b"})
	w1 := e.normalizedWeights(regime.Unknown)
	e.Update(map[string]float64{"a": 1.0, "b": 0.0})
	w2 := e.normalizedWeights(regime.Unknown)
	if w1["a"] == w2["a"] {
		t.Fatalf("expected weights to change after update")
	}
}

func TestRewardBoundedAndHoldIsNeutral(t *testing.T) {
	r := Reward(0.05, strategy.Buy, 8)
	if r < 0 || r > 1 {
		t.Fatalf("reward out of [0,1]: %v", r)
	}
	if Reward(0.05, strategy.Hold, 8) != 0.5 {
		t.Fatalf("expected neutral reward for Hold vote")
	}
}

func TestDeterministicUpdateGivenSameRewards(t *testing.T) {
	e1 := New(DefaultConfig(), []string{"a", "b"})
	e2 := New(DefaultConfig(), []string{"a", "b"})

	rewards := map[string]float64{"a": 0.7, "b": 0.3}
	for i := 0; i < 10; i++ {
		e1.Update(rewards)
		e2.Update(rewards)
	}

	w1, c1 := e1.Snapshot()
	w2, c2 := e2.Snapshot()
	if c1 != c2 {
		t.Fatalf("update counts diverged: %d != %d", c1, c2)
	}
	for k := range w1 {
		if w1[k] != w2[k] {
			t.Fatalf("weights diverged for %s: %v != %v", k, w1[k], w2[k])
		}
	}
}
