// Package ensemble blends per-strategy StrategyOutputs into a single
// per-symbol decision and learns which strategies to trust via an online,
// regime-biased softmax weighting scheme.
//
// Design rules:
//   - Weights live here and nowhere else; the engine constructs one
//     Ensemble and owns it for the process lifetime.
//   - Normalized weights are memoized until the next update call — first
//     read after an update is O(n), every read after that is O(1).
//   - The reward mapping from next-tick return to a bounded [0,1] reward
//     is sigmoid(return * sign(vote) * K) with K=8, the one deterministic
//     mapping this package commits to.
package ensemble

import (
	"math"
	"sort"
	"sync"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/regime"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

// Decision is the Ensemble's per-symbol blended output.
type Decision struct {
	Signal     strategy.Signal
	Score      float64 // S, in roughly [-1,1]
	Confidence float64 // C, in [0,1]
}

// Config parameterizes the blending and learning rules.
type Config struct {
	ThetaEnter    float64            // default 0.3
	Eta0          float64            // default 0.3
	EtaDecayDenom float64            // default 1000
	WMin, WMax    float64            // defaults 1e-3, 1e3
	RewardK       float64            // default 8, sigmoid steepness for reward mapping
	BiasTable     map[regime.Regime]map[string]float64
}

// DefaultBiasTable favors breakout in TrendUp, disfavors mean-reversion
// in TrendUp, and mirrors that bias for TrendDown.
func DefaultBiasTable() map[regime.Regime]map[string]float64 {
	return map[regime.Regime]map[string]float64{
		regime.TrendUp: {
			"breakout_v1":        0.4,
			"momentum_v1":        0.2,
			"trend_follow_v1":    0.3,
			"mean_reversion_v1":  -0.4,
			"pullback_v1":        0.1,
		},
		regime.TrendDown: {
			"breakout_v1":        0.4,
			"momentum_v1":        0.2,
			"trend_follow_v1":    0.3,
			"mean_reversion_v1":  -0.4,
			"pullback_v1":        0.1,
		},
		regime.Range: {
			"mean_reversion_v1": 0.4,
			"bollinger_v1":      0.3,
			"vwap_v1":           0.2,
			"breakout_v1":       -0.3,
		},
		regime.Volatile: {
			"breakout_v1":       -0.2,
			"momentum_v1":       -0.2,
		},
	}
}

// DefaultConfig returns the standard blending/learning parameters.
func DefaultConfig() Config {
	return Config{
		ThetaEnter:    0.3,
		Eta0:          0.3,
		EtaDecayDenom: 1000,
		WMin:          1e-3,
		WMax:          1e3,
		RewardK:       8,
		BiasTable:     DefaultBiasTable(),
	}
}

// Ensemble holds per-strategy weights and blends decisions.
type Ensemble struct {
	mu           sync.Mutex
	cfg          Config
	weights      map[string]float64
	updateCount  int
	normCache    map[string]float64
	normCacheSet bool
	normCacheReg regime.Regime
}

// New builds an Ensemble with every registered strategy starting at equal
// weight 1.0.
func New(cfg Config, strategyIDs []string) *Ensemble {
	w := make(map[string]float64, len(strategyIDs))
	for _, id := range strategyIDs {
		w[id] = 1.0
	}
	return &Ensemble{cfg: cfg, weights: w}
}

// LoadWeights seeds the ensemble from persisted learning_state, used on
// startup bootstrap. Unknown strategy IDs in the saved state are ignored;
// strategies missing from it start at 1.0 (same as New).
func (e *Ensemble) LoadWeights(weights map[string]float64, updateCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, w := range weights {
		if _, ok := e.weights[id]; ok {
			e.weights[id] = w
		}
	}
	e.updateCount = updateCount
	e.invalidateCacheLocked()
}

// directionalScore maps a Signal to {-1,0,+1}.
func directionalScore(sig strategy.Signal) float64 {
	switch sig {
	case strategy.Buy:
		return 1
	case strategy.Sell:
		return -1
	default:
		return 0
	}
}

// normalizedWeights returns softmax(log W_k + bias_k(regime)) for the
// registered strategies, recomputing on a cache miss.
func (e *Ensemble) normalizedWeights(r regime.Regime) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.normCacheSet && e.normCacheReg == r {
		return e.normCache
	}

	bias := e.cfg.BiasTable[r]

	ids := make([]string, 0, len(e.weights))
	for id := range e.weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	logits := make([]float64, len(ids))
	maxLogit := math.Inf(-1)
	for i, id := range ids {
		logit := math.Log(e.weights[id]) + bias[id]
		logits[i] = logit
		if logit > maxLogit {
			maxLogit = logit
		}
	}

	var sum float64
	exps := make([]float64, len(ids))
	for i, logit := range logits {
		exps[i] = math.Exp(logit - maxLogit)
		sum += exps[i]
	}

	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		if sum > 0 {
			out[id] = exps[i] / sum
		} else {
			out[id] = 1.0 / float64(len(ids))
		}
	}

	e.normCache = out
	e.normCacheSet = true
	e.normCacheReg = r
	return out
}

// Decide blends strategy outputs for one symbol into a Decision.
func (e *Ensemble) Decide(outputs map[string]strategy.StrategyOutput, r regime.Regime) Decision {
	w := e.normalizedWeights(r)

	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Summed in sorted strategy-ID order: map iteration order is randomized
	// and float addition isn't associative, so an unsorted range here would
	// make Score/Confidence depend on iteration order instead of inputs.
	var score, confidence float64
	for _, id := range ids {
		out := outputs[id]
		x := directionalScore(out.Signal)
		score += w[id] * out.Confidence * x
		confidence += w[id] * out.Confidence
	}

	sig := strategy.Hold
	switch {
	case score >= e.cfg.ThetaEnter:
		sig = strategy.Buy
	case score <= -e.cfg.ThetaEnter:
		sig = strategy.Sell
	}

	return Decision{Signal: sig, Score: score, Confidence: confidence}
}

// Reward maps a next-tick log return and a strategy's vote into a bounded
// [0,1] reward via sigmoid(return * sign(vote) * K). A Hold vote (x=0)
// always rewards 0.5 — neither confirmed nor contradicted.
func Reward(nextReturn float64, vote strategy.Signal, k float64) float64 {
	x := directionalScore(vote)
	if x == 0 {
		return 0.5
	}
	z := nextReturn * x * k
	return 1 / (1 + math.Exp(-z))
}

// Update applies the multiplicative online weight update for the given
// per-strategy rewards, then clamps and invalidates the normalized-weight
// cache. Strategies absent from rewards are left unchanged — e.g. a
// strategy that voted Hold for every symbol this tick has no reward to
// apply.
func (e *Ensemble) Update(rewards map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	eta := e.cfg.Eta0 / (1 + float64(e.updateCount)/e.cfg.EtaDecayDenom)

	for id, r := range rewards {
		cur, ok := e.weights[id]
		if !ok {
			continue
		}
		updated := cur * math.Exp(eta*(r-0.5))
		if updated < e.cfg.WMin {
			updated = e.cfg.WMin
		}
		if updated > e.cfg.WMax {
			updated = e.cfg.WMax
		}
		e.weights[id] = updated
	}

	e.updateCount++
	e.invalidateCacheLocked()
}

func (e *Ensemble) invalidateCacheLocked() {
	e.normCache = nil
	e.normCacheSet = false
}

// RewardK returns the configured sigmoid steepness used by Reward, so
// callers scoring a previous tick's votes don't need to thread Config
// through separately.
func (e *Ensemble) RewardK() float64 {
	return e.cfg.RewardK
}

// Snapshot returns a copy of the current raw weights and update count, for
// persistence to the learning_state table.
func (e *Ensemble) Snapshot() (weights map[string]float64, updateCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.weights))
	for k, v := range e.weights {
		out[k] = v
	}
	return out, e.updateCount
}
