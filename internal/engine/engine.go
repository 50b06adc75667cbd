// Package engine wires every component into the single-loop orchestrator
// (C12): one sequential step per tick, fanning strategy evaluation out
// across a bounded worker pool but never running two ticks concurrently.
//
// Design rules:
//   - step(tick) order: bars -> indicators -> strategy outputs -> regime
//     classify -> ensemble.observe_rewards -> ensemble.decide -> per-symbol
//     (RiskGate.size -> PositionManager.on_tick -> Broker.execute) ->
//     Repository.log -> periodic Repository.snapshot.
//   - Only Repository-fatal and Broker-fatal errors escape the step loop;
//     everything else is logged and the tick continues.
//   - A tick is never partially applied: cancellation is observed only at
//     tick boundaries.
package engine

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/broker"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/clock"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engineerr"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/ensemble"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/eventbus"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/market"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/position"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/regime"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/risk"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/runner"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/storage"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

// voteMemo is the previous tick's strategy outputs and close, kept just
// long enough to score next-tick returns for the ensemble's reward update.
type voteMemo struct {
	outputs map[string]strategy.StrategyOutput // strategyID -> output
	close   float64
}

// Engine owns every component for the process lifetime and drives the
// sequential step loop.
type Engine struct {
	cfg config.Config

	dataPort market.DataPort
	cache    *indicator.Cache
	runner   *runner.Runner
	detector *regime.Detector
	ensemble *ensemble.Ensemble
	gate     *risk.Gate
	posMgr   *position.Manager
	broker   broker.Broker
	repo     storage.Repository
	logger   *log.Logger
	bus      *eventbus.Bus // optional; nil means no subscriber fan-out

	regimeSymbol bar.Symbol
	symbols      []bar.Symbol

	day *dayState

	tickCount int
	lastPrevious map[string]voteMemo // symbol -> previous tick's votes/close

	warnedInsufficientData map[string]bool
}

// New builds an Engine from its fully-constructed collaborators. Strategies
// is the registered strategy set shared between the Runner and the
// Ensemble's weight keys.
func New(
	cfg config.Config,
	dataPort market.DataPort,
	cache *indicator.Cache,
	strategies []strategy.Strategy,
	calendar *market.Calendar,
	brk broker.Broker,
	repo storage.Repository,
	logger *log.Logger,
) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}

	ids := make([]string, len(strategies))
	for i, s := range strategies {
		ids[i] = s.ID()
	}

	ensCfg := ensemble.DefaultConfig()
	ensCfg.ThetaEnter = cfg.Ensemble.ThetaEnter
	ensCfg.Eta0 = cfg.Ensemble.Eta0
	ensCfg.EtaDecayDenom = cfg.Ensemble.EtaDecayDenom

	regimeSym := cfg.RegimeSymbol
	if regimeSym == "" && len(cfg.Symbols) > 0 {
		regimeSym = cfg.Symbols[0]
	}

	symbols := make([]bar.Symbol, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		symbols[i] = bar.Symbol(s).Normalize()
	}

	return &Engine{
		cfg:          cfg,
		dataPort:     dataPort,
		cache:        cache,
		runner:       runner.New(strategies, cfg.Runtime.Workers, cfg.Runtime.StrategyTimeout, logger),
		detector:     regime.NewDetector(regime.DefaultConfig()),
		ensemble:     ensemble.New(ensCfg, ids),
		gate:         risk.New(cfg.Risk, cfg.Sizing, calendar, cfg.IgnoreMarketHours),
		posMgr:       position.NewManager(cfg.Sizing),
		broker:       brk,
		repo:         repo,
		logger:       logger,
		regimeSymbol: bar.Symbol(regimeSym).Normalize(),
		symbols:      symbols,
		day:          newDayState(),
		lastPrevious: make(map[string]voteMemo),
		warnedInsufficientData: make(map[string]bool),
	}
}

// SetEventBus attaches an eventbus.Bus that every persisted record is
// published to as it's logged. Optional — a nil or never-set bus means
// Step runs exactly as it would otherwise; Publish is skipped entirely.
func (e *Engine) SetEventBus(bus *eventbus.Bus) {
	e.bus = bus
}

func (e *Engine) publish(kind eventbus.Kind, data interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Kind: kind, Data: data})
}

// Bootstrap seeds the ensemble's weights from the Repository's last saved
// learning_state, if any. Call once before Run.
func (e *Engine) Bootstrap(ctx context.Context) error {
	weights, updateCount, err := e.repo.LatestLearningState(ctx)
	if err != nil {
		return err
	}
	if weights != nil {
		e.ensemble.LoadWeights(weights, updateCount)
	}
	return nil
}

// Run drives the sequential step loop off a Clock's tick stream until ctx
// is cancelled. Cancellation is observed only between ticks — the current
// step always completes before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	ticks := clock.New(e.cfg.Interval, e.logger).Start(ctx)

	for tick := range ticks {
		if err := e.Step(ctx, tick); err != nil {
			return err
		}
	}
	return e.flush(context.Background())
}

// Step executes one full orchestration pass for a single tick. It returns
// an error only for the two fatal kinds (engineerr.ErrBrokerFatal,
// engineerr.ErrPersistenceFatal wrapped from the fill-log path) — every
// other failure is logged and absorbed so the tick still completes.
func (e *Engine) Step(ctx context.Context, tick clock.Tick) error {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.Runtime.FetchTimeout)
	bars, err := e.dataPort.Fetch(fetchCtx, e.symbols, e.cfg.Lookback)
	cancel()
	if err != nil {
		e.logger.Printf("tick %d: fetch error: %v", tick.Seq, err)
	}

	inputs := make(map[string]runner.SymbolInput, len(bars))
	for sym, series := range bars {
		if len(series) == 0 {
			continue
		}
		inputs[string(sym)] = runner.SymbolInput{Bars: series, Set: e.cache.Get(series)}
	}

	for _, sym := range e.symbols {
		if _, ok := bars[sym]; !ok && !e.warnedInsufficientData[string(sym)] {
			e.logger.Printf("tick %d: %s: %v", tick.Seq, sym, engineerr.ErrInsufficientData)
			e.warnedInsufficientData[string(sym)] = true
		}
	}

	outputs := e.runner.Run(ctx, inputs)

	regimeClass, changed := e.classifyRegime(bars)
	if changed {
		rec := storage.RegimeHistoryRecord{TS: tick.At, Regime: string(regimeClass.Regime), Confidence: regimeClass.Confidence}
		if err := e.repo.LogRegimeChange(ctx, rec); err != nil {
			e.logger.Printf("tick %d: regime log: %v", tick.Seq, err)
		}
		e.publish(eventbus.KindRegimeChange, rec)
	}

	e.observeRewards(inputs)

	snapshot := e.portfolioSnapshot()
	dayPnLPct, drawdownPct := e.day.observe(tick.At, snapshot.Equity)
	snapshot.DayPnLPct = dayPnLPct
	snapshot.DrawdownPct = drawdownPct

	symbols := make([]string, 0, len(outputs))
	for sym := range outputs {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	nextPrevious := make(map[string]voteMemo, len(inputs))

	for _, sym := range symbols {
		out := outputs[sym]
		in := inputs[sym]
		if len(in.Bars) == 0 {
			continue
		}
		mark := in.Bars[len(in.Bars)-1].Close

		decision := e.ensemble.Decide(out, regimeClass.Regime)

		weightsJSON, _ := storage.EncodeWeights(e.currentWeights())
		decisionRec := storage.DecisionRecord{
			TS: tick.At, Symbol: sym, Action: string(decision.Signal),
			Confidence: decision.Confidence, WeightsJSON: weightsJSON, Regime: string(regimeClass.Regime),
		}
		if err := e.repo.LogDecision(ctx, decisionRec); err != nil {
			e.logger.Printf("tick %d: %s: decision log: %v", tick.Seq, sym, err)
		}
		e.publish(eventbus.KindDecision, decisionRec)

		vol := regimeClass.VolRatio
		atr := indicator.ATR(in.Bars, 14)

		var candidate *risk.Order
		order, rejection := e.gate.Size(sym, decision, regimeClass.Regime, vol, atr, mark, snapshot, tick.At)
		if rejection != nil {
			rejRec := storage.RejectionRecord{TS: tick.At, Symbol: sym, Reason: rejection.Reason}
			if err := e.repo.LogRejection(ctx, rejRec); err != nil {
				e.logger.Printf("tick %d: %s: rejection log: %v", tick.Seq, sym, err)
			}
			e.publish(eventbus.KindRejection, rejRec)
		} else if order.Symbol != "" {
			candidate = &order
		}

		if brokerOrder := e.posMgr.OnTick(sym, decision.Signal, candidate, mark); brokerOrder != nil {
			fill, rej := e.broker.Execute(*brokerOrder, mark)
			if rej != nil {
				rejRec := storage.RejectionRecord{TS: tick.At, Symbol: sym, Reason: rej.Reason}
				if err := e.repo.LogRejection(ctx, rejRec); err != nil {
					e.logger.Printf("tick %d: %s: rejection log: %v", tick.Seq, sym, err)
				}
				e.publish(eventbus.KindRejection, rejRec)
			} else {
				e.posMgr.ApplyFill(sym, fill, tick.At)
				fillRec := storage.FillRecord{
					TS: tick.At, Symbol: sym, Side: string(fill.Side), Qty: fill.Qty,
					Price: fill.Price.InexactFloat64(), Fee: fill.Fee.InexactFloat64(),
					Slippage: fill.Slippage.InexactFloat64(),
				}
				if err := e.repo.LogFill(ctx, fillRec); err != nil {
					if engineerr.IsPersistenceFatal(err) {
						return err
					}
					e.logger.Printf("tick %d: %s: fill log: %v", tick.Seq, sym, err)
				}
				e.publish(eventbus.KindFill, fillRec)
			}
		}

		nextPrevious[sym] = voteMemo{outputs: out, close: mark}
	}

	e.lastPrevious = nextPrevious
	e.tickCount++

	if e.cfg.Runtime.SnapshotEveryK > 0 && e.tickCount%e.cfg.Runtime.SnapshotEveryK == 0 {
		if err := e.snapshot(ctx, tick.At); err != nil {
			e.logger.Printf("tick %d: snapshot: %v", tick.Seq, err)
		}
	}

	return nil
}

// classifyRegime runs the RegimeDetector against the configured reference
// symbol, or reports Unknown/0 if that symbol's bars weren't fetched.
func (e *Engine) classifyRegime(bars map[bar.Symbol]bar.Series) (regime.Classification, bool) {
	series, ok := bars[e.regimeSymbol]
	if !ok {
		return e.detector.Classify(nil)
	}
	return e.detector.Classify(series)
}

// observeRewards scores the previous tick's votes against this tick's
// prices and applies the resulting online update, before this tick's own
// decisions are made.
func (e *Engine) observeRewards(inputs map[string]runner.SymbolInput) {
	if len(e.lastPrevious) == 0 {
		return
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)

	prevSymbols := make([]string, 0, len(e.lastPrevious))
	for sym := range e.lastPrevious {
		prevSymbols = append(prevSymbols, sym)
	}
	sort.Strings(prevSymbols)

	for _, sym := range prevSymbols {
		memo := e.lastPrevious[sym]
		in, ok := inputs[sym]
		if !ok || len(in.Bars) == 0 || memo.close == 0 {
			continue
		}
		curClose := in.Bars[len(in.Bars)-1].Close
		nextReturn := math.Log(curClose / memo.close)

		for stratID, out := range memo.outputs {
			if out.Signal == strategy.Hold {
				continue
			}
			sums[stratID] += ensemble.Reward(nextReturn, out.Signal, e.ensemble.RewardK())
			counts[stratID]++
		}
	}

	if len(sums) == 0 {
		return
	}

	rewards := make(map[string]float64, len(sums))
	for id, sum := range sums {
		rewards[id] = sum / float64(counts[id])
	}
	e.ensemble.Update(rewards)
}

func (e *Engine) currentWeights() map[string]float64 {
	weights, _ := e.ensemble.Snapshot()
	return weights
}

func (e *Engine) portfolioSnapshot() risk.PortfolioSnapshot {
	marks := make(map[string]float64)
	for sym, memo := range e.lastPrevious {
		marks[sym] = memo.close
	}
	snap := e.broker.Portfolio(marks)

	positions := make(map[string]risk.PositionSnapshot, len(snap.Positions))
	for sym, pos := range snap.Positions {
		positions[sym] = risk.PositionSnapshot{Qty: pos.Qty, AvgEntry: pos.AvgEntry.InexactFloat64()}
	}

	return risk.PortfolioSnapshot{
		Cash:      snap.Cash.InexactFloat64(),
		Equity:    snap.Equity.InexactFloat64(),
		Positions: positions,
	}
}

func (e *Engine) snapshot(ctx context.Context, at time.Time) error {
	snap := e.broker.Portfolio(e.marksFromMemo())
	positionsJSON, err := encodePositions(snap.Positions)
	if err != nil {
		return err
	}
	snapRec := storage.SnapshotRecord{
		TS: at, Cash: snap.Cash.InexactFloat64(), Equity: snap.Equity.InexactFloat64(), PositionsJSON: positionsJSON,
	}
	if err := e.repo.SaveSnapshot(ctx, snapRec); err != nil {
		return err
	}
	e.publish(eventbus.KindSnapshot, snapRec)

	weights, updateCount := e.ensemble.Snapshot()
	weightsJSON, err := storage.EncodeWeights(weights)
	if err != nil {
		return err
	}
	return e.repo.SaveLearningState(ctx, storage.LearningStateRecord{TS: at, WeightsJSON: weightsJSON, UpdateCount: updateCount})
}

func (e *Engine) marksFromMemo() map[string]float64 {
	marks := make(map[string]float64, len(e.lastPrevious))
	for sym, memo := range e.lastPrevious {
		marks[sym] = memo.close
	}
	return marks
}

// flush persists a final snapshot on shutdown so the next startup's
// equity/learning-state bootstrap reflects the last completed tick.
func (e *Engine) flush(ctx context.Context) error {
	return e.snapshot(ctx, time.Now())
}
