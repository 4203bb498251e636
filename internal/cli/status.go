package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"apexsim/internal/store"
	"apexsim/pkg/utils"
)

func newStatusCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show account status from the journal",
		Long: `Reads the journal database and prints the latest equity snapshot,
recent orders and recent trades.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, app, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent orders to show")
	return cmd
}

func runStatus(cmd *cobra.Command, app *App, limit int) error {
	output := NewOutput(cmd)

	if app.Config.Store.Path == "" {
		return fmt.Errorf("no journal configured; set store.path in config.toml")
	}
	journal, err := store.Open(app.Config.Store.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	curve, err := journal.EquityCurve(ctx)
	if err != nil {
		return err
	}
	orders, err := journal.Orders(ctx, "", limit)
	if err != nil {
		return err
	}
	trades, err := journal.Trades(ctx, "")
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"equity_curve": curve,
			"orders":       orders,
			"trades":       trades,
		})
	}

	if len(curve) == 0 {
		output.Warning("journal is empty, run a simulation first")
		return nil
	}

	latest := curve[len(curve)-1]
	output.Println()
	output.Printf("As of %d\n", latest.Date)
	output.Printf("Total assets:    %s\n", utils.FormatCNY(latest.TotalAssets))
	output.Printf("Available cash:  %s\n", utils.FormatCNY(latest.AvailableCash))
	output.Printf("Frozen cash:     %s\n", utils.FormatCNY(latest.FrozenCash))
	output.Printf("Realized PnL:    %s\n", utils.FormatPnL(latest.RealizedPnL))

	if len(orders) > 0 {
		output.Println()
		output.Printf("Recent orders:\n")
		output.Printf("%-32s %-8s %-5s %-7s %10s %10s %-10s\n",
			"ID", "SYMBOL", "SIDE", "TYPE", "PRICE", "VOLUME", "STATUS")
		for _, o := range orders {
			output.Printf("%-32s %-8s %-5s %-7s %10.2f %10s %-10s\n",
				o.ID, o.Symbol, o.Side, o.Type, o.Price, utils.FormatVolume(o.Volume), o.Status)
		}
	}

	if len(trades) > 0 {
		n := len(trades)
		if n > limit {
			trades = trades[n-limit:]
		}
		output.Println()
		output.Printf("Recent trades:\n")
		output.Printf("%-28s %-8s %-5s %10s %10s %12s\n",
			"ID", "SYMBOL", "SIDE", "PRICE", "VOLUME", "PNL")
		for _, t := range trades {
			output.Printf("%-28s %-8s %-5s %10.2f %10s %12s\n",
				t.TradeID, t.Symbol, t.Side, t.Price, utils.FormatVolume(t.Volume), utils.FormatPnL(t.RealizedPnL))
		}
	}
	return nil
}
