package cli

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lzjiangjeff/automated-trader/backtest"
	"github.com/lzjiangjeff/automated-trader/telemetry"
)

var sweepMetricsAddr string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the configured parameter sweep and rank the results",
	Long: `Sweep runs every cell of the configured risk grid (per-trade risk percent
crossed with stop multiplier) in parallel and prints the results ranked by
Sharpe ratio. When --metrics-addr is set, Prometheus metrics for the sweep
are served there while it runs.

Example:
  trader sweep --config configs/spy.yaml --metrics-addr :9100`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepMetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9100)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Sweep.RiskPcts) == 0 || len(cfg.Sweep.StopMults) == 0 {
		return fmt.Errorf("sweep grid is empty: set sweep.risk_pcts and sweep.stop_mults")
	}

	table, ctx, err := loadTables(cfg)
	if err != nil {
		return err
	}

	var reg *telemetry.Registry
	if sweepMetricsAddr != "" {
		reg = telemetry.NewRegistry()
		go func() {
			if err := http.ListenAndServe(sweepMetricsAddr, reg.Handler()); err != nil {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	reg.SweepStarted()
	start := time.Now()
	results := backtest.RunSweep(cfg.Risk, cfg.Costs, cfg.Strategies, table, ctx, cfg.Sweep, log)
	reg.SweepFinished()

	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "error"
			reg.RecordRun(status, 0, 0)
			continue
		}
		reg.RecordRun(status, time.Since(start).Seconds(), len(r.Result.Equity))
		for _, t := range r.Result.Trades {
			reg.RecordTradeClosed(t.ExitReason)
		}
	}

	ranked := make([]backtest.SweepResult, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.Metrics.Sharpe > ranked[j].Result.Metrics.Sharpe
	})

	fmt.Printf("%-10s %-10s %12s %10s %10s %8s\n",
		"risk_pct", "stop_mult", "final_equity", "return%", "max_dd%", "sharpe")
	for _, r := range ranked {
		m := r.Result.Metrics
		fmt.Printf("%-10.2f %-10.2f %12.2f %10.2f %10.2f %8.2f\n",
			r.Point.PerTradeRiskPct, r.Point.StopATRMult,
			r.Result.FinalEquity(), m.TotalReturn, m.MaxDrawdown, m.Sharpe)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("failed: risk_pct=%.2f stop_mult=%.2f: %v\n",
				r.Point.PerTradeRiskPct, r.Point.StopATRMult, r.Err)
		}
	}
	return nil
}
