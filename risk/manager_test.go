package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits(mutate func(*Limits)) Limits {
	l := DefaultLimits()
	if mutate != nil {
		mutate(&l)
	}
	return l
}

func bar(day int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func TestManagerStopLossExit(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	assert.InDelta(t, 95.0, tr.StopPrice, 1e-9)

	// Bar low pierces the stop; exit fills at the stop price.
	closed := m.UpdatePositions(bar(1), 96, 2.0, 97, 94)
	require.Len(t, closed, 1)
	assert.Equal(t, "stop_loss", closed[0].ExitReason)
	assert.InDelta(t, 95.0, closed[0].ExitPrice, 1e-9)
	assert.InDelta(t, 100000-500, m.Equity(), 1e-9)
	assert.Empty(t, m.OpenTrades())
}

func TestManagerTimeStop(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) { l.TimeStopBars = 3 }), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)

	// Flat price, stop never touched. The third bar with non-positive pnl
	// triggers the time stop.
	for day := 1; day <= 2; day++ {
		closed := m.UpdatePositions(bar(day), 100, 2.0, 101, 99)
		assert.Empty(t, closed)
	}
	closed := m.UpdatePositions(bar(3), 100, 2.0, 101, 99)
	require.Len(t, closed, 1)
	assert.Equal(t, "time_stop", closed[0].ExitReason)
}

func TestManagerTimeStopSparesWinners(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) { l.TimeStopBars = 2 }), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)

	m.UpdatePositions(bar(1), 101, 2.0, 102, 100)
	closed := m.UpdatePositions(bar(2), 101, 2.0, 102, 100)
	assert.Empty(t, closed, "profitable position should outlive the time stop")
}

func TestManagerTrailingEscalation(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	initial := tr.TrailingStop

	// +1.5R crosses the first tier and drags the stop up.
	m.UpdatePositions(bar(1), 107.5, 2.0, 108, 106)
	assert.InDelta(t, 1.5, tr.TrailingMult, 1e-9)
	assert.Greater(t, tr.TrailingStop, initial)

	// +2.5R crosses the middle tier, tightening further.
	m.UpdatePositions(bar(2), 112.5, 2.0, 113, 111)
	assert.InDelta(t, 1.0, tr.TrailingMult, 1e-9)

	// +4R and beyond uses the tightest multiplier.
	m.UpdatePositions(bar(3), 121, 2.0, 122, 120)
	assert.InDelta(t, 0.8, tr.TrailingMult, 1e-9)
}

func TestManagerDailyPauseAtRollover(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	m.ForceExit(tr, bar(0), 70, "stop_loss") // -3000, beyond the 2.5% daily cap

	// Intraday, further entries are blocked by the loss accumulator.
	assert.False(t, m.CanEnter(1, 100, 2.0))
	assert.False(t, m.Paused())

	// The rollover evaluates the day just closed, so the pause lands on the
	// next day rather than being reset away.
	m.EndOfDay(bar(1))
	assert.True(t, m.Paused())
	assert.False(t, m.CanEnter(1, 100, 2.0))

	// A clean day lifts the pause.
	m.EndOfDay(bar(2))
	assert.False(t, m.Paused())
	assert.True(t, m.CanEnter(1, 100, 2.0))
}

func TestManagerDrawdownThrottleAndRestore(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) { l.RecoveryRestore = true }), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 1000, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	tr2 := m.Enter(bar(0), 100, 1, 2.0, 1000, "breakout_momentum", 2.5, 1.5, false)
	require.NotNil(t, tr2)
	m.ForceExit(tr, bar(0), 80, "stop_loss") // -20000, 20% drawdown

	assert.InDelta(t, 20.0, m.Drawdown(), 1e-9)
	assert.False(t, m.CanEnter(1, 100, 2.0), "entries blocked beyond the drawdown cap")

	m.EndOfDay(bar(1))
	assert.InDelta(t, 0.4, m.RiskPct(), 1e-9)

	// Still underwater: the throttle compounds.
	m.EndOfDay(bar(2))
	assert.InDelta(t, 0.16, m.RiskPct(), 1e-9)

	// Recover past the limit and the base risk comes back.
	m.ForceExit(tr2, bar(3), 125, "trend_break") // +25000, new equity high
	m.EndOfDay(bar(4))
	assert.InDelta(t, 1.0, m.RiskPct(), 1e-9)
}

func TestManagerThrottleRatchetWithoutRestore(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) { l.RecoveryRestore = false }), CostModel{})

	tr := m.Enter(bar(0), 100, 1, 2.0, 1000, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	tr2 := m.Enter(bar(0), 100, 1, 2.0, 1000, "breakout_momentum", 2.5, 1.5, false)
	require.NotNil(t, tr2)
	m.ForceExit(tr, bar(0), 80, "stop_loss")
	m.EndOfDay(bar(1))
	assert.InDelta(t, 0.4, m.RiskPct(), 1e-9)

	m.ForceExit(tr2, bar(2), 125, "trend_break")
	m.EndOfDay(bar(3))
	assert.InDelta(t, 0.4, m.RiskPct(), 1e-9, "one-way ratchet holds after recovery")
}

func TestManagerExposureCaps(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) {
		l.MaxNetExposure = 0.5
		l.MaxGrossExposure = 1.0
	}), CostModel{})

	// 60k notional on 100k equity puts net at 0.6, over the 0.5 cap.
	tr := m.Enter(bar(0), 100, 1, 2.0, 600, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)

	net, gross := m.Exposure()
	assert.InDelta(t, 0.6, net, 1e-9)
	assert.InDelta(t, 0.6, gross, 1e-9)

	assert.False(t, m.CanEnter(1, 100, 2.0), "long side is full")
	assert.True(t, m.CanEnter(-1, 100, 2.0), "short side still has room")

	// A short brings gross to the cap and blocks everything.
	sh := m.Enter(bar(0), 100, -1, 2.0, 400, "breakout_momentum", 2.5, 1.5, false)
	require.NotNil(t, sh)
	_, gross = m.Exposure()
	assert.InDelta(t, 1.0, gross, 1e-9)
	assert.False(t, m.CanEnter(-1, 100, 2.0))
}

func TestManagerExitCostsInEquity(t *testing.T) {
	t.Parallel()

	costs := CostModel{CommissionPerShare: 0.01, SlippageBps: 10}
	m := NewManager(testLimits(nil), costs)

	tr := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, tr)
	m.ForceExit(tr, bar(1), 100, "trend_break")

	// Exit fill is 100 - 0.01 - 100*0.001 = 99.89, so 100 shares lose 11.
	assert.InDelta(t, 99.89, tr.ExitPrice, 1e-9)
	assert.InDelta(t, 100000-11, m.Equity(), 1e-9)
}

func TestManagerMarkEquityReconciles(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	a := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, a)
	b := m.Enter(bar(0), 100, 1, 2.0, 50, "breakout_momentum", 2.5, 1.5, false)
	require.NotNil(t, b)

	m.ForceExit(a, bar(1), 110, "trend_break") // +1000 realized

	// 100000 + 1000 realized + 50 shares * +5 unrealized.
	assert.InDelta(t, 101250.0, m.MarkEquity(105), 1e-9)
}

func TestManagerExitStrategyTrades(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	require.NotNil(t, m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false))
	require.NotNil(t, m.Enter(bar(0), 100, 1, 2.0, 100, "breakout_momentum", 2.5, 1.5, false))

	closed := m.ExitStrategyTrades(bar(1), 101, "trend_ema", "trend_break")
	require.Len(t, closed, 1)
	assert.Equal(t, "trend_ema", closed[0].Strategy)
	assert.Len(t, m.OpenTrades(), 1)
}

func TestManagerCloseAll(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})

	require.NotNil(t, m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false))
	require.NotNil(t, m.Enter(bar(0), 100, -1, 2.0, 100, "breakout_momentum", 2.5, 1.5, false))

	closed := m.CloseAll(bar(5), 102, "end_of_backtest")
	assert.Len(t, closed, 2)
	assert.Empty(t, m.OpenTrades())
	for _, tr := range closed {
		assert.Equal(t, "end_of_backtest", tr.ExitReason)
	}
}

func TestManagerPyramiding(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(func(l *Limits) {
		l.PyramidEnabled = true
		l.PyramidMaxAdds = 2
		l.PyramidAddThresholds = []float64{1.0, 2.0}
		l.PyramidAddScale = 0.5
	}), CostModel{})

	base := m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false)
	require.NotNil(t, base)

	_, _, ok := m.CanPyramid(1, "trend_ema")
	assert.False(t, ok, "no add before the first threshold")

	// +1.2R clears the first threshold.
	m.UpdatePositions(bar(1), 106, 2.0, 107, 105)
	got, threshold, ok := m.CanPyramid(1, "trend_ema")
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.InDelta(t, 1.0, threshold, 1e-9)
	assert.InDelta(t, 0.5, m.PyramidScale(), 1e-9)

	add := m.Enter(bar(1), 106, 1, 2.0, 50, "trend_ema", 2.5, 1.5, true)
	require.NotNil(t, add)

	// The second add waits on the 2R threshold.
	_, _, ok = m.CanPyramid(1, "trend_ema")
	assert.False(t, ok)

	m.UpdatePositions(bar(2), 112, 2.0, 113, 111)
	_, threshold, ok = m.CanPyramid(1, "trend_ema")
	require.True(t, ok)
	assert.InDelta(t, 2.0, threshold, 1e-9)

	add2 := m.Enter(bar(2), 112, 1, 2.0, 25, "trend_ema", 2.5, 1.5, true)
	require.NotNil(t, add2)

	// Max adds reached.
	m.UpdatePositions(bar(3), 120, 2.0, 121, 119)
	_, _, ok = m.CanPyramid(1, "trend_ema")
	assert.False(t, ok)
}

func TestManagerPyramidDisabled(t *testing.T) {
	t.Parallel()

	m := NewManager(testLimits(nil), CostModel{})
	require.NotNil(t, m.Enter(bar(0), 100, 1, 2.0, 100, "trend_ema", 2.5, 1.5, false))
	m.UpdatePositions(bar(1), 120, 2.0, 121, 119)

	_, _, ok := m.CanPyramid(1, "trend_ema")
	assert.False(t, ok)
}
