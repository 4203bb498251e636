package backtest

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"apexsim/internal/models"
)

// csvCandle is the CSV row layout for daily candle files.
type csvCandle struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// Accepted layouts for the date column.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "20060102"}

// LoadCandles reads a candle CSV file (columns date, open, high, low,
// close, volume) and returns the candles sorted by timestamp.
func LoadCandles(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candle file: %w", err)
	}
	defer f.Close()

	var rows []*csvCandle
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing candle file %s: %w", path, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if row.Close <= 0 || row.High < row.Low {
			return nil, fmt.Errorf("row %d: invalid candle %+v", i+1, *row)
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// csvTick is the CSV row layout for tick replay files.
type csvTick struct {
	Timestamp string  `csv:"timestamp"`
	Symbol    string  `csv:"symbol"`
	Last      float64 `csv:"last"`
	Bid       float64 `csv:"bid"`
	Ask       float64 `csv:"ask"`
	Volume    int64   `csv:"volume"`
	PrevClose float64 `csv:"prev_close"`
}

// LoadTicks reads a tick CSV file (columns timestamp, symbol, last, bid,
// ask, volume, prev_close) in file order, for replay into the exchange.
func LoadTicks(path string) ([]models.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening tick file: %w", err)
	}
	defer f.Close()

	var rows []*csvTick
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing tick file %s: %w", path, err)
	}

	ticks := make([]models.Tick, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if row.Symbol == "" {
			return nil, fmt.Errorf("row %d: missing symbol", i+1)
		}
		ticks = append(ticks, models.Tick{
			Symbol:    row.Symbol,
			LastPrice: row.Last,
			BidPrice:  row.Bid,
			AskPrice:  row.Ask,
			Volume:    row.Volume,
			PrevClose: row.PrevClose,
			Timestamp: ts,
		})
	}
	return ticks, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
