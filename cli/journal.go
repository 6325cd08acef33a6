package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lzjiangjeff/automated-trader/journal"
)

var (
	journalDBPath string
	journalRunID  string
	journalLimit  int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query persisted backtest runs and trades",
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()

		runs, err := j.ListRuns(journalLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "run_id\tcreated\tsymbol\tstrategy\tfinal_equity\treturn%")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
				r.RunID, r.Created.Format(time.RFC3339), r.Symbol, r.Strategy,
				r.FinalEquity, r.Metrics["total_return"])
		}
		return w.Flush()
	},
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List the trades of one run in close order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if journalRunID == "" {
			return fmt.Errorf("--run is required")
		}
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()

		trades, err := j.ListTradesByRun(journalRunID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "trade_id\tstrategy\tside\tshares\tentry\texit\tpnl\tr\treason")
		for _, t := range trades {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
				t.TradeID, t.Strategy, t.Side, t.Shares,
				t.EntryPrice, t.ExitPrice, t.PnL, t.RMultiple, t.ExitReason)
		}
		return w.Flush()
	},
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Print the equity curve of one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if journalRunID == "" {
			return fmt.Errorf("--run is required")
		}
		j, err := journal.NewSQLite(journalDBPath)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer j.Close()

		curve, err := j.EquityCurve(journalRunID)
		if err != nil {
			return err
		}
		for _, p := range curve {
			fmt.Printf("%s\t%.2f\n", p.Time.Format("2006-01-02"), p.Equity)
		}
		return nil
	},
}

func init() {
	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "./trader.sqlite", "SQLite journal database")
	journalCmd.PersistentFlags().StringVar(&journalRunID, "run", "", "run id")
	journalRunsCmd.Flags().IntVar(&journalLimit, "limit", 20, "maximum runs to list")

	journalCmd.AddCommand(journalRunsCmd, journalTradesCmd, journalEquityCmd)
	rootCmd.AddCommand(journalCmd)
}
