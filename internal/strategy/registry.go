package strategy

// DefaultRegistry returns the strategy set wired in by default: the three
// reference strategies (mean reversion, breakout, momentum) plus the
// additional registrable strategies built from the same indicator set.
// Order is stable and used only for deterministic iteration; the
// StrategyRunner sorts its output by (symbol, strategy ID) regardless.
func DefaultRegistry() []Strategy {
	return []Strategy{
		NewMeanReversionStrategy(),
		NewBreakoutStrategy(),
		NewMomentumStrategy(),
		NewTrendFollowStrategy(),
		NewBollingerStrategy(),
		NewPullbackStrategy(),
		NewVWAPStrategy(),
	}
}
