package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func sampleRun() RunRecord {
	return RunRecord{
		RunID:          "01J0000000000000000000RUN1",
		Created:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Symbol:         "SPY",
		Strategy:       "trend_ema",
		ConfigYAML:     []byte("symbol:\n  primary: SPY\n"),
		Start:          time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		InitialCapital: 100000,
		FinalEquity:    112500,
		Metrics:        map[string]float64{"total_return": 12.5, "sharpe": 1.4, "max_drawdown": 6.2},
	}
}

func sampleTrade(runID, tradeID string, exit time.Time) TradeRecord {
	return TradeRecord{
		TradeID:    tradeID,
		RunID:      runID,
		Strategy:   "trend_ema",
		Side:       "long",
		Shares:     200,
		EntryPrice: 100.1,
		ExitPrice:  105.0,
		StopPrice:  95.7,
		EntryTime:  exit.AddDate(0, 0, -10),
		ExitTime:   exit,
		PnL:        980,
		RMultiple:  1.11,
		BarsHeld:   10,
		ExitReason: "trend_break",
	}
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	run := sampleRun()
	require.NoError(t, j.RecordRun(run))

	got, err := j.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.Symbol, got.Symbol)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.InDelta(t, run.FinalEquity, got.FinalEquity, 1e-9)
	assert.InDelta(t, 12.5, got.Metrics["total_return"], 1e-9)
	assert.Equal(t, run.ConfigYAML, got.ConfigYAML)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	_, err := j.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListTradesByRun(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	run := sampleRun()
	require.NoError(t, j.RecordRun(run))

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade(run.RunID, "T2", base.AddDate(0, 0, 5))))
	require.NoError(t, j.RecordTrade(sampleTrade(run.RunID, "T1", base)))
	require.NoError(t, j.RecordTrade(sampleTrade("other-run", "T3", base)))

	trades, err := j.ListTradesByRun(run.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "T1", trades[0].TradeID, "ordered by exit time")
	assert.Equal(t, "T2", trades[1].TradeID)
	assert.Equal(t, 200, trades[0].Shares)
}

func TestSQLiteListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("r", "IN", base)))
	require.NoError(t, j.RecordTrade(sampleTrade("r", "OUT", base.AddDate(0, 1, 0))))

	trades, err := j.ListTradesClosedBetween(base.AddDate(0, 0, -1), base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "IN", trades[0].TradeID)
}

func TestSQLiteEquityCurve(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.RecordEquity(EquityRecord{
			RunID:  "r1",
			Time:   base.AddDate(0, 0, i),
			Equity: 100000 + float64(i)*500,
		}))
	}

	curve, err := j.EquityCurve("r1")
	require.NoError(t, err)
	require.Len(t, curve, 3)
	assert.InDelta(t, 100000, curve[0].Equity, 1e-9)
	assert.InDelta(t, 101000, curve[2].Equity, 1e-9)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()

	j := newTestSQLite(t)
	a := sampleRun()
	b := sampleRun()
	b.RunID = "01J0000000000000000000RUN2"
	b.Created = a.Created.Add(time.Hour)
	require.NoError(t, j.RecordRun(a))
	require.NoError(t, j.RecordRun(b))

	runs, err := j.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.RunID, runs[0].RunID, "newest first")
}

func TestWriteOrgReport(t *testing.T) {
	t.Parallel()

	run := sampleRun()
	trade := sampleTrade(run.RunID, "T1", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "run.org")

	require.NoError(t, run.WriteOrg(path, []TradeRecord{trade}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.Contains(body, run.RunID))
	assert.True(t, strings.Contains(body, "trend_ema"))
	assert.True(t, strings.Contains(body, "12.50"))
}
