package engine

import (
	"encoding/json"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/broker"
)

// positionRow is the JSON shape written into the snapshots table's
// positions_json column — broker.Position itself carries a decimal.Decimal,
// which marshals as a JSON number via its own MarshalJSON, so this is a
// plain reshape rather than a custom codec.
type positionRow struct {
	Qty      int     `json:"qty"`
	AvgEntry float64 `json:"avg_entry"`
}

func encodePositions(positions map[string]broker.Position) (string, error) {
	rows := make(map[string]positionRow, len(positions))
	for sym, pos := range positions {
		rows[sym] = positionRow{Qty: pos.Qty, AvgEntry: pos.AvgEntry.InexactFloat64()}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
