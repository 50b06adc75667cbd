// Package strategy - trend_follow.go implements a trend-following
// strategy: an additional registrable strategy alongside the three
// reference strategies.
//
// Buys when the fast SMA sits above the slow SMA and price closes at or
// above the fast SMA (a trend in motion); sells the mirror condition. Confidence scales
// with the normalized spread between the two moving averages.
package strategy

import (
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// TrendFollowStrategy implements a dual-SMA trend-following rule.
type TrendFollowStrategy struct {
	MinBars int // default 20
}

// NewTrendFollowStrategy creates a trend-following strategy.
func NewTrendFollowStrategy() *TrendFollowStrategy {
	return &TrendFollowStrategy{MinBars: 20}
}

func (s *TrendFollowStrategy) ID() string { return "trend_follow_v1" }

// Evaluate applies the dual-SMA trend rule.
func (s *TrendFollowStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.SMASlow <= 0 {
		return holdOutput()
	}

	ind := map[string]float64{
		"sma_fast": set.SMAFast,
		"sma_slow": set.SMASlow,
	}

	spread := (set.SMAFast - set.SMASlow) / set.SMASlow
	last := bars[len(bars)-1].Close

	switch {
	case set.SMAFast > set.SMASlow && last >= set.SMAFast:
		return StrategyOutput{Signal: Buy, Confidence: clampConfidence(spread * 10), Indicators: ind}

	case set.SMAFast < set.SMASlow && last <= set.SMAFast:
		return StrategyOutput{Signal: Sell, Confidence: clampConfidence(-spread * 10), Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}
