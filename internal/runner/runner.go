// Package runner implements the StrategyRunner (C5): it fans a tick's
// registered strategies out across a bounded worker pool, one task per
// (symbol, strategy) pair, and assembles a deterministic result map.
//
// Design rules:
//   - Evaluations for distinct (symbol, strategy_id) pairs are independent
//     and may run concurrently on a worker pool of size W.
//   - A per-task timeout coerces a slow strategy to Hold/0 and logs an
//     ExecutionTimeout event; it never blocks the tick indefinitely.
//   - A panicking strategy never takes down the runner or its siblings —
//     isolated, coerced to Hold/0, logged.
//   - The result map is assembled in (symbol, strategy_id) sort order
//     before being handed to the Ensemble, so downstream tie-breaks are
//     reproducible regardless of goroutine completion order.
package runner

import (
	"context"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

// SymbolInput bundles the bars and indicator set a strategy evaluates.
type SymbolInput struct {
	Bars bar.Series
	Set  indicator.Set
}

// Runner executes the registered strategies against a tick's symbol data
// on a bounded worker pool.
type Runner struct {
	strategies []strategy.Strategy
	workers    int64
	timeout    time.Duration
	logger     *log.Logger
}

// New builds a Runner. workers<=0 and timeout<=0 fall back to the default
// bounds (min(NumCPU,8) workers, 5s per-task timeout).
func New(strategies []strategy.Strategy, workers int, timeout time.Duration, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(log.Writer(), "[runner] ", log.LstdFlags)
	}
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 8)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{strategies: strategies, workers: int64(workers), timeout: timeout, logger: logger}
}

// result is one (symbol, strategy) evaluation, carried through the
// worker pool before final sorted assembly.
type result struct {
	symbol     string
	strategyID string
	output     strategy.StrategyOutput
}

// Run evaluates every registered strategy against every symbol in inputs
// and returns a deterministic map<symbol, map<strategy_id, StrategyOutput>>.
// A task that times out or panics is coerced to Hold/0 and never fails the
// group. Run returns no error; a task that cannot get a worker slot
// because ctx is cancelled is likewise recorded as Hold/0.
func (r *Runner) Run(ctx context.Context, inputs map[string]SymbolInput) map[string]map[string]strategy.StrategyOutput {
	sem := semaphore.NewWeighted(r.workers)
	results := make(chan result, len(inputs)*len(r.strategies))

	g, gctx := errgroup.WithContext(ctx)

	for symbol, in := range inputs {
		symbol, in := symbol, in
		for _, s := range r.strategies {
			s := s
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					results <- result{symbol: symbol, strategyID: s.ID(), output: holdZero()}
					return nil
				}
				defer sem.Release(1)

				out := r.evaluateOne(gctx, s, symbol, in)
				results <- result{symbol: symbol, strategyID: s.ID(), output: out}
				return nil
			})
		}
	}

	// errgroup tasks never return non-nil errors (isolation contract), so
	// the wait is purely a join point.
	_ = g.Wait()
	close(results)

	out := make(map[string]map[string]strategy.StrategyOutput, len(inputs))
	collected := make([]result, 0, len(inputs)*len(r.strategies))
	for res := range results {
		collected = append(collected, res)
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].symbol != collected[j].symbol {
			return collected[i].symbol < collected[j].symbol
		}
		return collected[i].strategyID < collected[j].strategyID
	})

	for _, res := range collected {
		if out[res.symbol] == nil {
			out[res.symbol] = make(map[string]strategy.StrategyOutput)
		}
		out[res.symbol][res.strategyID] = res.output
	}
	return out
}

// evaluateOne runs a single strategy against a single symbol's input,
// enforcing the per-task timeout and recovering from a panic.
func (r *Runner) evaluateOne(ctx context.Context, s strategy.Strategy, symbol string, in SymbolInput) (out strategy.StrategyOutput) {
	done := make(chan strategy.StrategyOutput, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Printf("strategy %s panicked on %s: %v", s.ID(), symbol, rec)
				done <- holdZero()
			}
		}()
		done <- s.Evaluate(in.Bars, in.Set)
	}()

	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	select {
	case res := <-done:
		return res
	case <-taskCtx.Done():
		r.logger.Printf("ExecutionTimeout: strategy=%s symbol=%s timeout=%s", s.ID(), symbol, r.timeout)
		return holdZero()
	}
}

func holdZero() strategy.StrategyOutput {
	return strategy.StrategyOutput{Signal: strategy.Hold, Confidence: 0, Indicators: map[string]float64{}}
}
