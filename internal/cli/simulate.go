package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"apexsim/internal/backtest"
	"apexsim/internal/exchange"
	"apexsim/internal/logging"
	"apexsim/internal/models"
	"apexsim/internal/session"
	"apexsim/internal/store"
	"apexsim/pkg/utils"
)

// scriptedOrder is one CSV row of the order script replayed alongside
// the tick feed.
type scriptedOrder struct {
	Time   string  `csv:"time"`
	Symbol string  `csv:"symbol"`
	Side   string  `csv:"side"`   // BUY or SELL
	Type   string  `csv:"type"`   // MARKET or LIMIT
	Price  float64 `csv:"price"`  // 0 for market orders
	Volume int64   `csv:"volume"`

	at time.Time
}

func newSimulateCmd(app *App) *cobra.Command {
	var ticksPath, ordersPath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a tick feed against scripted orders",
		Long: `Replays recorded ticks through the exchange while submitting orders
from a script file. Each order is submitted at the first tick at or
after its scheduled time; fills, rejections and limit-queue moves are
logged and journaled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, app, ticksPath, ordersPath)
		},
	}

	cmd.Flags().StringVar(&ticksPath, "ticks", "", "tick CSV file (required)")
	cmd.Flags().StringVar(&ordersPath, "orders", "", "order script CSV file (required)")
	cmd.MarkFlagRequired("ticks")
	cmd.MarkFlagRequired("orders")
	return cmd
}

func runSimulate(cmd *cobra.Command, app *App, ticksPath, ordersPath string) error {
	output := NewOutput(cmd)
	cfg := app.Config

	ticks, err := backtest.LoadTicks(ticksPath)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return fmt.Errorf("tick file %s is empty", ticksPath)
	}

	script, err := loadOrderScript(ordersPath)
	if err != nil {
		return err
	}

	cal := session.NewCalendar()
	for _, h := range cfg.Session.Holidays {
		d, err := time.Parse("2006-01-02", h)
		if err != nil {
			return fmt.Errorf("bad holiday %q in config: %w", h, err)
		}
		cal.AddHoliday(d)
	}

	statuses := session.NewStatusManager(0, nil)
	for _, sym := range cfg.Session.Suspended {
		statuses.MarkSuspended(sym)
	}

	ex, err := exchange.New(exchange.Config{
		AccountID:      cfg.Account.ID,
		InitialCapital: cfg.Account.InitialCapital,
		SlippageRate:   cfg.Matching.SlippageRate,
		CommissionRate: cfg.Matching.CommissionRate,
		StampTaxRate:   cfg.Matching.StampTaxRate,
		Seed:           cfg.Matching.Seed,
	}, app.Logger)
	if err != nil {
		return err
	}

	var journal *store.Journal
	if cfg.Store.Path != "" {
		journal, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var currentDate int64
	next := 0
	for _, tick := range ticks {
		if date := models.DateKey(tick.Timestamp); date != currentDate {
			if currentDate != 0 && journal != nil {
				if err := snapshotEquity(ctx, journal, ex, currentDate); err != nil {
					return err
				}
			}
			currentDate = date
			ex.UpdateDaily(date)
		}

		// Submit every scripted order that has come due.
		for next < len(script) && !script[next].at.After(tick.Timestamp) {
			so := script[next]
			next++
			if !cal.IsTradingTime(so.at) {
				symLogger := logging.WithSymbol(app.Logger, so.Symbol)
				symLogger.Warn().Time("at", so.at).
					Msg("scripted order outside trading session, skipped")
				continue
			}
			if !statuses.IsTradable(so.Symbol) {
				symLogger := logging.WithSymbol(app.Logger, so.Symbol)
				symLogger.Warn().
					Msg("symbol suspended, order skipped")
				continue
			}
			if _, err := ex.SubmitOrder(exchange.OrderRequest{
				Symbol: so.Symbol,
				Side:   models.OrderSide(strings.ToUpper(so.Side)),
				Type:   models.OrderType(strings.ToUpper(so.Type)),
				Price:  so.Price,
				Volume: so.Volume,
			}); err != nil {
				output.Warning("order rejected: %s %s x%d: %v", so.Side, so.Symbol, so.Volume, err)
			}
		}

		ex.OnTick(tick)
	}

	if journal != nil {
		if err := snapshotEquity(ctx, journal, ex, currentDate); err != nil {
			return err
		}
		for _, order := range ex.Orders() {
			if err := journal.SaveOrder(ctx, order); err != nil {
				return err
			}
		}
		if err := journal.SaveTrades(ctx, ex.TradeHistory()); err != nil {
			return err
		}
	}

	return printAccountSummary(output, ex)
}

func loadOrderScript(path string) ([]scriptedOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening order script: %w", err)
	}
	defer f.Close()

	var rows []*scriptedOrder
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing order script %s: %w", path, err)
	}

	script := make([]scriptedOrder, 0, len(rows))
	for i, row := range rows {
		at, err := parseScriptTime(row.Time)
		if err != nil {
			return nil, fmt.Errorf("order script row %d: %w", i+1, err)
		}
		row.at = at
		script = append(script, *row)
	}
	sort.SliceStable(script, func(i, j int) bool {
		return script[i].at.Before(script[j].at)
	})
	return script, nil
}

func parseScriptTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func snapshotEquity(ctx context.Context, journal *store.Journal, ex *exchange.Exchange, date int64) error {
	acct := ex.Account()
	return journal.SaveEquitySnapshot(ctx, store.EquitySnapshot{
		Date:          date,
		TotalAssets:   ex.TotalAssets(),
		AvailableCash: ex.AvailableCash(),
		FrozenCash:    ex.FrozenCash(),
		RealizedPnL:   acct.RealizedPnL(),
	})
}

func printAccountSummary(output *Output, ex *exchange.Exchange) error {
	positions := ex.AllPositions()

	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"total_assets":   ex.TotalAssets(),
			"available_cash": ex.AvailableCash(),
			"frozen_cash":    ex.FrozenCash(),
			"positions":      positions,
			"trades":         len(ex.TradeHistory()),
		})
	}

	output.Println()
	output.Printf("Total assets:    %s\n", utils.FormatCNY(ex.TotalAssets()))
	output.Printf("Available cash:  %s\n", utils.FormatCNY(ex.AvailableCash()))
	output.Printf("Frozen cash:     %s\n", utils.FormatCNY(ex.FrozenCash()))
	output.Printf("Trades executed: %d\n", len(ex.TradeHistory()))
	if len(positions) > 0 {
		output.Println()
		output.Printf("%-10s %10s %10s %12s %12s\n", "SYMBOL", "TOTAL", "AVAIL", "AVG COST", "UPL")
		for _, p := range positions {
			output.Printf("%-10s %10s %10s %12s %12s\n",
				p.Symbol, utils.FormatVolume(p.TotalVolume), utils.FormatVolume(p.AvailableVolume),
				utils.FormatCNY(p.AvgCost), utils.FormatPnL(p.UnrealizedPnL))
		}
	}
	return nil
}
