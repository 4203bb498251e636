package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apexsim/internal/backtest"
	"apexsim/internal/models"
	"apexsim/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	var (
		candlesPath string
		symbol      string
		strategy    string
		fast, slow  int
		optimize    bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a bar-driven strategy backtest",
		Long: `Runs a strategy over a daily candle CSV file and prints the
performance summary. With --optimize, sweeps the SMA crossover periods
concurrently and ranks the parameter sets by Sharpe ratio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, app, candlesPath, symbol, strategy, fast, slow, optimize)
		},
	}

	cmd.Flags().StringVar(&candlesPath, "candles", "", "candle CSV file (required)")
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol under test (required)")
	cmd.Flags().StringVar(&strategy, "strategy", "sma-cross", "strategy: sma-cross or buy-and-hold")
	cmd.Flags().IntVar(&fast, "fast", 5, "fast SMA period")
	cmd.Flags().IntVar(&slow, "slow", 20, "slow SMA period")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "sweep SMA periods and rank by Sharpe")
	cmd.MarkFlagRequired("candles")
	cmd.MarkFlagRequired("symbol")
	return cmd
}

func runBacktest(cmd *cobra.Command, app *App, candlesPath, symbol, strategy string, fast, slow int, optimize bool) error {
	output := NewOutput(cmd)
	bt := app.Config.Backtest

	candles, err := backtest.LoadCandles(candlesPath)
	if err != nil {
		return err
	}

	cfg := backtest.Config{
		InitialCapital:     bt.InitialCapital,
		CommissionRate:     bt.CommissionRate,
		MinCommission:      bt.MinCommission,
		SlippageRate:       bt.SlippageRate,
		EnableMarketImpact: bt.EnableMarketImpact,
		MarketImpactCoef:   bt.MarketImpactCoef,
	}

	if optimize {
		return runOptimize(cmd, output, cfg, symbol, candles)
	}

	var strat backtest.Strategy
	switch strategy {
	case "sma-cross":
		strat = backtest.NewSMACross(fast, slow)
	case "buy-and-hold":
		strat = &backtest.BuyAndHold{}
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	engine := backtest.NewEngine(cfg)
	result, err := engine.Run(symbol, candles, strat)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(result)
	}
	printBacktestResult(output, strat.Name(), symbol, result)
	return nil
}

func runOptimize(cmd *cobra.Command, output *Output, cfg backtest.Config, symbol string, candles []models.Candle) error {
	factory := func(params map[string]float64) backtest.Strategy {
		fast, slow := int(params["fast"]), int(params["slow"])
		if fast <= 0 || slow <= fast {
			return nil
		}
		return backtest.NewSMACross(fast, slow)
	}

	opt := backtest.NewOptimizer(cfg, factory, 0)
	if err := opt.AddParamRange("fast", 3, 15, 3); err != nil {
		return err
	}
	if err := opt.AddParamRange("slow", 10, 40, 10); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results, err := opt.Run(ctx, symbol, candles)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(results)
	}

	output.Println()
	output.Printf("%-6s %-6s %10s %12s %10s\n", "FAST", "SLOW", "SHARPE", "RETURN", "MAXDD")
	shown := 0
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		s := r.Result.Summary
		output.Printf("%-6d %-6d %10.2f %12s %10s\n",
			int(r.Params["fast"]), int(r.Params["slow"]),
			s.SharpeRatio, utils.FormatPercent(s.TotalReturn), utils.FormatPercent(-s.MaxDrawdown))
		shown++
		if shown >= 10 {
			break
		}
	}
	if shown == 0 {
		output.Warning("no parameter set produced a valid run")
	}
	return nil
}

func printBacktestResult(output *Output, strategy, symbol string, result *backtest.Result) {
	s := result.Summary
	output.Println()
	output.Printf("Strategy %s on %s, %d bars\n", strategy, symbol, len(result.EquityCurve))
	output.Println()
	output.Printf("Final equity:     %s\n", utils.FormatCNY(result.FinalEquity))
	output.Printf("Total return:     %s\n", utils.FormatPercent(s.TotalReturn))
	output.Printf("Annual return:    %s\n", utils.FormatPercent(s.AnnualReturn))
	output.Printf("Max drawdown:     %s\n", utils.FormatPercent(-s.MaxDrawdown))
	output.Printf("Sharpe ratio:     %.2f\n", s.SharpeRatio)
	output.Printf("Sortino ratio:    %.2f\n", s.SortinoRatio)
	output.Printf("Win rate:         %s\n", utils.FormatPercent(s.WinRate))
	output.Printf("Trades:           %d\n", len(result.Trades))
	output.Printf("Commission paid:  %s\n", utils.FormatCNY(result.TotalCommission))
	output.Printf("Slippage cost:    %s\n", utils.FormatCNY(result.TotalSlippage))
}
