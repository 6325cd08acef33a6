package journal

import (
	"time"

	"github.com/lzjiangjeff/automated-trader/backtest"
	"github.com/lzjiangjeff/automated-trader/internal/id"
)

// RunRecord mirrors the runs table: one row per completed backtest.
type RunRecord struct {
	RunID   string
	Created time.Time

	Symbol     string
	Strategy   string
	ConfigYAML []byte

	Start time.Time
	End   time.Time

	InitialCapital float64
	FinalEquity    float64

	Metrics map[string]float64
}

// TradeRecord mirrors the trades table: one closed, cost-adjusted trade.
type TradeRecord struct {
	TradeID string
	RunID   string

	Strategy  string
	Side      string
	Shares    int
	IsPyramid bool

	EntryPrice float64
	ExitPrice  float64
	StopPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time

	PnL        float64
	RMultiple  float64
	BarsHeld   int
	ExitReason string
}

// EquityRecord is one point of a run's equity curve.
type EquityRecord struct {
	RunID  string
	Time   time.Time
	Equity float64
}

type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// FromResult flattens a backtest result into journal records under a fresh
// run id. The caller persists them; a persistence failure never invalidates
// the in-memory result.
func FromResult(symbol, strategy string, cfgYAML []byte, res *backtest.Result) (RunRecord, []TradeRecord, []EquityRecord) {
	run := RunRecord{
		RunID:          id.New(),
		Created:        time.Now().UTC(),
		Symbol:         symbol,
		Strategy:       strategy,
		ConfigYAML:     cfgYAML,
		InitialCapital: res.InitialCapital,
		FinalEquity:    res.FinalEquity(),
		Metrics:        res.Metrics.Map(),
	}
	if len(res.Times) > 0 {
		run.Start = res.Times[0]
		run.End = res.Times[len(res.Times)-1]
	}

	trades := make([]TradeRecord, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, TradeRecord{
			TradeID:    t.ID,
			RunID:      run.RunID,
			Strategy:   t.Strategy,
			Side:       t.Side(),
			Shares:     t.Shares,
			IsPyramid:  t.IsPyramid,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			StopPrice:  t.StopPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			PnL:        t.PnL(t.ExitPrice),
			RMultiple:  t.RealizedRMultiple(),
			BarsHeld:   t.BarsHeld,
			ExitReason: t.ExitReason,
		})
	}

	equity := make([]EquityRecord, 0, len(res.Equity))
	for i, v := range res.Equity {
		equity = append(equity, EquityRecord{RunID: run.RunID, Time: res.Times[i], Equity: v})
	}

	return run, trades, equity
}
