// Package broker defines the broker abstraction layer.
//
// Design rules:
//   - Only one broker is active at a time.
//   - No strategy or ensemble logic lives here — the broker only fills
//     orders and tracks cash/positions.
//   - Position is the single authoritative copy of per-symbol qty; callers
//     query it but mutate it only via Execute.
//   - Broker APIs are used only for execution and account state.
package broker

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the order's direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Kind is the order type; only Market orders are supported.
type Kind string

const MarketOrder Kind = "market"

// Order is a request to transact qty shares of symbol at the current mark.
type Order struct {
	Symbol string
	Side   Side
	Qty    int
	Kind   Kind
}

// Fill records a completed execution.
type Fill struct {
	Symbol   string
	Side     Side
	Qty      int
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Slippage decimal.Decimal
}

// Rejection explains why an order did not fill.
type Rejection struct {
	Symbol string
	Reason string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("broker rejected %s: %s", r.Symbol, r.Reason)
}

// InsufficientCash is the reason string used when a fill would drive cash
// negative, named so callers can match on it without string-matching
// free-form text.
const InsufficientCash = "insufficient cash"

// Position is one symbol's current holding. Qty is negative for a short.
type Position struct {
	Qty      int
	AvgEntry decimal.Decimal
}

// Snapshot is a point-in-time view of cash, positions, and mark-to-market
// equity, used by the RiskGate and Repository.
type Snapshot struct {
	Cash      decimal.Decimal
	Equity    decimal.Decimal
	Positions map[string]Position
}

// Broker defines the contract the engine drives; PaperBroker is the only
// implementation today, but a live broker would satisfy the same shape.
type Broker interface {
	Execute(order Order, mark float64) (Fill, *Rejection)
	Positions() map[string]Position
	Cash() decimal.Decimal
	Portfolio(marks map[string]float64) Snapshot
}
