package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lzjiangjeff/automated-trader/backtest"
	"github.com/lzjiangjeff/automated-trader/config"
	"github.com/lzjiangjeff/automated-trader/journal"
	"github.com/lzjiangjeff/automated-trader/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one backtest from the config and print its metrics",
	Long: `Backtest loads the configured bar CSVs, runs the enabled strategies over
them and prints the resulting metrics. Results are persisted through the
configured journal; a journal failure is logged but never discards the run.

Example:
  trader backtest --config configs/spy.yaml`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	table, ctx, err := loadTables(cfg)
	if err != nil {
		return err
	}

	eng := backtest.New(cfg.Risk, cfg.Costs, cfg.Strategies, log)
	res, err := eng.Run(table, ctx)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	run, trades, equity := journal.FromResult(cfg.Symbol.Primary, strategyLabel(cfg), rawConfig(), res)
	persistResult(cfg, run, trades, equity)

	fmt.Printf("run %s  %s  %d bars  %d trades\n\n",
		run.RunID, cfg.Symbol.Primary, len(res.Equity), len(res.Trades))
	printMetrics(res.Metrics.Map())
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(cfgPath)
}

func loadTables(cfg *config.Config) (*market.Table, market.Context, error) {
	table, err := market.LoadCSV(cfg.Data.Primary)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", cfg.Data.Primary, err)
	}

	var ctx market.Context
	for _, sym := range cfg.Symbol.Context {
		path := cfg.Data.Context[sym]
		t, err := market.LoadCSV(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load context %s: %w", sym, err)
		}
		if ctx == nil {
			ctx = market.Context{}
		}
		ctx[sym] = t
	}
	return table, ctx, nil
}

func strategyLabel(cfg *config.Config) string {
	if cfg.Strategies.Ensemble.Enabled {
		return "ensemble"
	}
	var names []string
	if cfg.Strategies.TrendEMA.Enabled {
		names = append(names, "trend_ema")
	}
	if cfg.Strategies.BreakoutMomentum.Enabled {
		names = append(names, "breakout_momentum")
	}
	if cfg.Strategies.MeanReversion.Enabled {
		names = append(names, "mean_reversion")
	}
	return strings.Join(names, ",")
}

// rawConfig rereads the config file verbatim so the journal stores exactly
// what the user ran with, defaults excluded.
func rawConfig() []byte {
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil
	}
	return raw
}

// persistResult writes the run through the configured journal. The in-memory
// result stands regardless of journal failures.
func persistResult(cfg *config.Config, run journal.RunRecord, trades []journal.TradeRecord, equity []journal.EquityRecord) {
	var j journal.Journal
	var err error

	switch cfg.Journal.Type {
	case "", "none":
		return
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	}
	if err != nil {
		log.Warn("journal unavailable, results not persisted", zap.Error(err))
		return
	}
	defer j.Close()

	if err := j.RecordRun(run); err != nil {
		log.Warn("journal write failed", zap.String("run_id", run.RunID), zap.Error(err))
		return
	}
	for _, t := range trades {
		if err := j.RecordTrade(t); err != nil {
			log.Warn("journal trade write failed", zap.String("trade_id", t.TradeID), zap.Error(err))
		}
	}
	for _, e := range equity {
		if err := j.RecordEquity(e); err != nil {
			log.Warn("journal equity write failed", zap.Error(err))
			break
		}
	}

	if cfg.Journal.OrgPath != "" {
		if err := run.WriteOrg(cfg.Journal.OrgPath, trades); err != nil {
			log.Warn("org report write failed", zap.Error(err))
		}
	}
}

func printMetrics(metrics map[string]float64) {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%.4f\n", k, metrics[k])
	}
	w.Flush()
}
