// Package strategy - mean_reversion.go implements an RSI mean-reversion
// strategy, one of the three reference strategies.
//
// Buys when RSI is oversold and price sits below its fast SMA (expecting a
// snap back toward the mean); sells the mirror condition. Confidence scales
// with how far RSI sits past its threshold, since a barely-oversold reading
// is a much weaker signal than a deeply oversold one.
package strategy

import (
	"math"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// MeanReversionStrategy implements RSI-based mean reversion.
type MeanReversionStrategy struct {
	Oversold   float64 // default 30
	Overbought float64 // default 70
	MinBars    int     // default 20
}

// NewMeanReversionStrategy creates a mean-reversion strategy with the
// standard RSI thresholds.
func NewMeanReversionStrategy() *MeanReversionStrategy {
	return &MeanReversionStrategy{Oversold: 30, Overbought: 70, MinBars: 20}
}

func (s *MeanReversionStrategy) ID() string { return "mean_reversion_v1" }

// Evaluate applies the RSI mean-reversion rule.
func (s *MeanReversionStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars {
		return holdOutput()
	}

	ind := map[string]float64{
		"rsi":      set.RSI,
		"sma_fast": set.SMAFast,
	}

	last := bars[len(bars)-1].Close

	switch {
	case set.RSI <= s.Oversold && last < set.SMAFast:
		depth := (s.Oversold - set.RSI) / s.Oversold
		return StrategyOutput{Signal: Buy, Confidence: clampConfidence(depth), Indicators: ind}

	case set.RSI >= s.Overbought && last > set.SMAFast:
		depth := (set.RSI - s.Overbought) / (100 - s.Overbought)
		return StrategyOutput{Signal: Sell, Confidence: clampConfidence(depth), Indicators: ind}

	default:
		// Weak confidence hold: distance from the nearest threshold, so the
		// ensemble still sees a gradient rather than a flat zero everywhere
		// in the neutral band.
		distToOversold := math.Abs(set.RSI - s.Oversold)
		distToOverbought := math.Abs(set.RSI - s.Overbought)
		nearest := math.Min(distToOversold, distToOverbought)
		conf := clampConfidence(1 - nearest/50)
		return StrategyOutput{Signal: Hold, Confidence: conf, Indicators: ind}
	}
}
