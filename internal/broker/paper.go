// Package broker - paper.go implements the PaperBroker (C10).
//
// Maintains cash and a mirror of filled positions. Market orders fill at
// mark·(1±slippage_bps) within the tick; commission is
// max(min_fee, commission_bps·notional). A fill that would drive cash
// negative is rejected rather than applied.
package broker

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
)

// PaperBroker simulates order execution against live mark prices, applying
// a slippage/commission fill model. Thread safety: single-writer
// (the engine loop) + many readers; readers see a consistent snapshot.
type PaperBroker struct {
	mu         sync.Mutex
	cash       decimal.Decimal
	positions  map[string]Position
	commission decimal.Decimal // fraction, e.g. 0.0005 for 5 bps
	slippage   decimal.Decimal
	minFee     decimal.Decimal
}

// NewPaperBroker creates a broker seeded with startCash, using the
// commission/slippage/min-fee knobs from cfg.
func NewPaperBroker(startCash float64, cfg config.BrokerConfig) *PaperBroker {
	return &PaperBroker{
		cash:       decimal.NewFromFloat(startCash),
		positions:  make(map[string]Position),
		commission: decimal.NewFromFloat(cfg.CommissionBps).Div(decimal.NewFromInt(10000)),
		slippage:   decimal.NewFromFloat(cfg.SlippageBps).Div(decimal.NewFromInt(10000)),
		minFee:     decimal.NewFromFloat(cfg.MinFee),
	}
}

// Execute fills order at mark, applying slippage and commission, and
// mutates cash/positions on success. Returns a Rejection instead if the
// fill would drive cash below zero.
func (pb *PaperBroker) Execute(order Order, mark float64) (Fill, *Rejection) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if order.Qty <= 0 {
		return Fill{}, &Rejection{Symbol: order.Symbol, Reason: "qty must be positive"}
	}

	markD := decimal.NewFromFloat(mark)
	qtyD := decimal.NewFromInt(int64(order.Qty))
	one := decimal.NewFromInt(1)

	var fillPrice decimal.Decimal
	if order.Side == SideBuy {
		fillPrice = markD.Mul(one.Add(pb.slippage))
	} else {
		fillPrice = markD.Mul(one.Sub(pb.slippage))
	}

	notional := fillPrice.Mul(qtyD)
	fee := pb.commission.Mul(notional)
	if fee.LessThan(pb.minFee) {
		fee = pb.minFee
	}
	slippageCost := markD.Sub(fillPrice).Abs().Mul(qtyD)

	var cashDelta decimal.Decimal
	if order.Side == SideBuy {
		cashDelta = notional.Add(fee).Neg()
	} else {
		cashDelta = notional.Sub(fee)
	}

	newCash := pb.cash.Add(cashDelta)
	if newCash.IsNegative() {
		return Fill{}, &Rejection{Symbol: order.Symbol, Reason: InsufficientCash}
	}

	pb.cash = newCash
	pb.applyFill(order, fillPrice)

	return Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Qty:      order.Qty,
		Price:    fillPrice,
		Fee:      fee,
		Slippage: slippageCost,
	}, nil
}

func (pb *PaperBroker) applyFill(order Order, fillPrice decimal.Decimal) {
	signedQty := order.Qty
	if order.Side == SideSell {
		signedQty = -signedQty
	}

	pos, exists := pb.positions[order.Symbol]
	if !exists {
		pb.positions[order.Symbol] = Position{Qty: signedQty, AvgEntry: fillPrice}
		return
	}

	newQty := pos.Qty + signedQty
	if newQty == 0 {
		delete(pb.positions, order.Symbol)
		return
	}

	// Widening an existing directional position re-averages entry price;
	// crossing through zero to the other side resets entry at the fill
	// price, since that's a fresh position in the opposite direction.
	sameDirection := (pos.Qty > 0) == (signedQty > 0)
	flipped := (pos.Qty > 0) != (newQty > 0)
	switch {
	case sameDirection:
		totalCost := pos.AvgEntry.Mul(decimal.NewFromInt(int64(pos.Qty))).
			Add(fillPrice.Mul(decimal.NewFromInt(int64(signedQty))))
		pos.AvgEntry = totalCost.Div(decimal.NewFromInt(int64(newQty)))
		pos.Qty = newQty
	case flipped:
		pos.AvgEntry = fillPrice
		pos.Qty = newQty
	default:
		pos.Qty = newQty
	}

	pb.positions[order.Symbol] = pos
}

// Positions returns a copy of the current position map.
func (pb *PaperBroker) Positions() map[string]Position {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	out := make(map[string]Position, len(pb.positions))
	for k, v := range pb.positions {
		out[k] = v
	}
	return out
}

// Cash returns the current available cash.
func (pb *PaperBroker) Cash() decimal.Decimal {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.cash
}

// Portfolio returns a consistent snapshot of cash, positions, and equity
// marked against the given last-known prices. Symbols without a mark use
// their average entry price (stale mark, better than dropping the position
// from equity entirely).
func (pb *PaperBroker) Portfolio(marks map[string]float64) Snapshot {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	equity := pb.cash
	positions := make(map[string]Position, len(pb.positions))
	for symbol, pos := range pb.positions {
		positions[symbol] = pos

		mark := pos.AvgEntry
		if m, ok := marks[symbol]; ok {
			mark = decimal.NewFromFloat(m)
		}
		equity = equity.Add(mark.Mul(decimal.NewFromInt(int64(pos.Qty))))
	}

	return Snapshot{Cash: pb.cash, Equity: equity, Positions: positions}
}
