// Package strategy - pullback.go implements a trend-pullback strategy: an
// additional registrable strategy.
//
// In an established uptrend (fast SMA above slow SMA), buys when price
// dips back down near the fast SMA without breaking the slow SMA —  a
// pullback within the trend rather than a reversal. Mirror rule for
// downtrends. Confidence scales with how tight the pullback sits to the
// fast SMA.
package strategy

import (
	"math"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// PullbackStrategy implements a trend-pullback entry rule.
type PullbackStrategy struct {
	MinBars        int     // default 20
	ProximityBand  float64 // default 0.01 (1% of price)
}

// NewPullbackStrategy creates a pullback strategy with a 1% proximity band.
func NewPullbackStrategy() *PullbackStrategy {
	return &PullbackStrategy{MinBars: 20, ProximityBand: 0.01}
}

func (s *PullbackStrategy) ID() string { return "pullback_v1" }

// Evaluate applies the trend-pullback rule.
func (s *PullbackStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.SMASlow <= 0 {
		return holdOutput()
	}

	ind := map[string]float64{
		"sma_fast": set.SMAFast,
		"sma_slow": set.SMASlow,
	}

	last := bars[len(bars)-1].Close
	distance := math.Abs(last-set.SMAFast) / set.SMAFast
	proximity := clampConfidence(1 - distance/s.ProximityBand)

	switch {
	case set.SMAFast > set.SMASlow && last <= set.SMAFast && last > set.SMASlow && distance <= s.ProximityBand:
		return StrategyOutput{Signal: Buy, Confidence: proximity, Indicators: ind}

	case set.SMAFast < set.SMASlow && last >= set.SMAFast && last < set.SMASlow && distance <= s.ProximityBand:
		return StrategyOutput{Signal: Sell, Confidence: proximity, Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}
