package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
)

// LoadCSVSeries reads one symbol's bar history from a CSV file in the
// market_data_dir format: a header row followed by
// date,open,high,low,close,volume rows, date as YYYY-MM-DD.
func LoadCSVSeries(path string) (bar.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("market: parse %s: %w", path, err)
	}

	series := make(bar.Series, 0, len(records))
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) < 6 {
			continue
		}
		ts, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(rec[1], 64)
		high, _ := strconv.ParseFloat(rec[2], 64)
		low, _ := strconv.ParseFloat(rec[3], 64)
		closeP, _ := strconv.ParseFloat(rec[4], 64)
		volume, _ := strconv.ParseInt(rec[5], 10, 64)

		series = append(series, bar.Bar{
			Ts:     ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: volume,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Ts.Before(series[j].Ts) })
	return series, nil
}

// LoadCSVReplayPort builds a ReplayPort from a directory of per-symbol CSV
// files (dir/<symbol>.csv) in place of a live vendor transport. A symbol
// with no file on disk is simply absent from the resulting map — DataPort
// callers already tolerate partial results.
func LoadCSVReplayPort(dir string, symbols []string) (*ReplayPort, error) {
	series := make(map[bar.Symbol]bar.Series, len(symbols))
	for _, s := range symbols {
		sym := bar.Symbol(s).Normalize()
		path := filepath.Join(dir, s+".csv")
		ser, err := LoadCSVSeries(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		series[sym] = ser
	}
	return NewReplayPort(series), nil
}
