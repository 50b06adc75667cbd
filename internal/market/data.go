// Package market - data.go defines the MarketDataPort external contract.
//
// Design rules:
//   - Market data ≠ broker API.
//   - No strategy uses live broker candles.
//   - All strategies use the bars this port returns.
//   - The underlying vendor transport is an external collaborator; only
//     the contract is specified here.
package market

import (
	"context"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engineerr"
)

// DataPort is the MarketDataPort external contract.
// Bars per symbol must be sorted by ts ascending, end at or before the
// call time, and contain at least L_min entries; fewer means the symbol is
// skipped for the tick. Implementations fail a single symbol with
// engineerr.ErrDataUnavailable without failing the whole call; the core
// tolerates partial results and proceeds with the subset that succeeded.
type DataPort interface {
	Fetch(ctx context.Context, symbols []bar.Symbol, lookback time.Duration) (map[bar.Symbol]bar.Series, error)
}

// UnavailableSymbolError reports that a single symbol could not be fetched
// this tick; Fetch implementations collect these without aborting other
// symbols.
type UnavailableSymbolError struct {
	Symbol bar.Symbol
	Cause  error
}

func (e *UnavailableSymbolError) Error() string {
	if e.Cause != nil {
		return "market: " + string(e.Symbol) + ": " + e.Cause.Error()
	}
	return "market: " + string(e.Symbol) + ": data unavailable"
}

func (e *UnavailableSymbolError) Unwrap() error { return engineerr.ErrDataUnavailable }

// ReplayPort is a deterministic, in-memory DataPort backed by
// pre-loaded series, used in scenario tests and in place of a live vendor
// transport. It never blocks and never fails a symbol unless that symbol
// is simply absent from its map.
type ReplayPort struct {
	Series map[bar.Symbol]bar.Series
}

// NewReplayPort builds a ReplayPort from a fixed set of series.
func NewReplayPort(series map[bar.Symbol]bar.Series) *ReplayPort {
	return &ReplayPort{Series: series}
}

// Fetch returns each requested symbol's full pre-loaded series; `lookback`
// is not applied, so no trimming to a window takes place. It tolerates
// missing symbols by omitting them
// from the result (the caller observes this as a partial result, exactly
// as a real vendor gap would look).
func (p *ReplayPort) Fetch(ctx context.Context, symbols []bar.Symbol, lookback time.Duration) (map[bar.Symbol]bar.Series, error) {
	out := make(map[bar.Symbol]bar.Series, len(symbols))
	for _, sym := range symbols {
		series, ok := p.Series[sym.Normalize()]
		if !ok || len(series) == 0 {
			continue
		}
		out[sym.Normalize()] = series
	}
	return out, nil
}
