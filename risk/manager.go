package risk

import (
	"math"
	"time"

	"github.com/lzjiangjeff/automated-trader/internal/id"
)

// Limits is the trading-wide risk configuration the Manager enforces.
type Limits struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	PerTradeRiskPct float64 `yaml:"per_trade_risk_pct"`

	MaxNetExposure   float64 `yaml:"max_net_exposure"`
	MinNetExposure   float64 `yaml:"min_net_exposure"`
	MaxGrossExposure float64 `yaml:"max_gross_exposure"`

	StopATRMult         float64 `yaml:"stop_atr_mult"`
	TrailingStopATRMult float64 `yaml:"trailing_stop_atr_mult"`

	// Trailing-stop escalation tiers: as the open R-multiple crosses each
	// threshold the trailing multiplier steps down, tightening the stop.
	TrailingStartR    float64 `yaml:"trailing_start_r"`
	TrailingMidR      float64 `yaml:"trailing_mid_r"`
	TrailingEndR      float64 `yaml:"trailing_end_r"`
	TrailingStartMult float64 `yaml:"trailing_start_mult"`
	TrailingMidMult   float64 `yaml:"trailing_mid_mult"`
	TrailingEndMult   float64 `yaml:"trailing_end_mult"`

	TimeStopBars      int     `yaml:"time_stop_bars"`
	DailyLossLimitPct float64 `yaml:"daily_loss_limit_pct"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`

	// DrawdownRecoveryScale shrinks the per-trade risk percentage at each
	// day rollover spent beyond the drawdown limit. With RecoveryRestore the
	// base risk comes back once the drawdown heals; without it the throttle
	// is a one-way ratchet.
	DrawdownRecoveryScale float64 `yaml:"drawdown_recovery_scale"`
	RecoveryRestore       bool    `yaml:"recovery_restore"`

	PyramidEnabled       bool      `yaml:"pyramid_enabled"`
	PyramidMaxAdds       int       `yaml:"pyramid_max_adds"`
	PyramidAddThresholds []float64 `yaml:"pyramid_add_thresholds"`
	PyramidAddScale      float64   `yaml:"pyramid_add_scale"`
}

// DefaultLimits returns conservative limits for a 100k account.
func DefaultLimits() Limits {
	return Limits{
		InitialCapital:        100000,
		PerTradeRiskPct:       1.0,
		MaxNetExposure:        1.5,
		MinNetExposure:        -1.0,
		MaxGrossExposure:      2.0,
		StopATRMult:           2.5,
		TrailingStopATRMult:   1.5,
		TrailingStartR:        1.0,
		TrailingMidR:          2.0,
		TrailingEndR:          4.0,
		TrailingStartMult:     1.5,
		TrailingMidMult:       1.0,
		TrailingEndMult:       0.8,
		TimeStopBars:          20,
		DailyLossLimitPct:     2.5,
		MaxDrawdownPct:        18.0,
		DrawdownRecoveryScale: 0.4,
		RecoveryRestore:       true,
		PyramidAddScale:       0.5,
	}
}

// Manager owns the open trade set and every trading-wide limit: exposure
// caps, drawdown caps, the daily loss circuit breaker, and pyramiding rules.
// It is the sole mutator of open Trades; the engine only reads snapshots.
type Manager struct {
	limits Limits
	costs  CostModel

	equity     float64
	peakEquity float64
	riskPct    float64
	throttled  bool

	dailyPnL float64
	paused   bool

	open   []*Trade
	closed []*Trade
}

// NewManager creates a fresh manager. Each backtest run gets its own; state
// is never shared across runs.
func NewManager(limits Limits, costs CostModel) *Manager {
	return &Manager{
		limits:     limits,
		costs:      costs,
		equity:     limits.InitialCapital,
		peakEquity: limits.InitialCapital,
		riskPct:    limits.PerTradeRiskPct,
	}
}

func (m *Manager) InitialCapital() float64 { return m.limits.InitialCapital }
func (m *Manager) Equity() float64         { return m.equity }
func (m *Manager) PeakEquity() float64     { return m.peakEquity }
func (m *Manager) Paused() bool            { return m.paused }

// RiskPct is the current per-trade risk percentage, possibly throttled
// during drawdown recovery.
func (m *Manager) RiskPct() float64 { return m.riskPct }

// OpenTrades returns a snapshot of the open set. Callers must not mutate the
// trades; the Manager owns them.
func (m *Manager) OpenTrades() []*Trade {
	out := make([]*Trade, len(m.open))
	copy(out, m.open)
	return out
}

// ClosedTrades returns the closed-trade ledger in close order.
func (m *Manager) ClosedTrades() []*Trade {
	out := make([]*Trade, len(m.closed))
	copy(out, m.closed)
	return out
}

// Exposure recomputes net and gross exposure from the open set.
func (m *Manager) Exposure() (net, gross float64) {
	if m.equity <= 0 {
		return 0, 0
	}
	var long, short float64
	for _, t := range m.open {
		if t.Signal > 0 {
			long += t.Notional()
		} else {
			short += t.Notional()
		}
	}
	return (long - short) / m.equity, (long + short) / m.equity
}

// Drawdown is the percentage decline from peak equity, >= 0.
func (m *Manager) Drawdown() float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	dd := (m.peakEquity - m.equity) / m.peakEquity * 100.0
	return math.Max(dd, 0)
}

// CanEnter checks every entry gate: pause flag, drawdown cap, per-side net
// exposure, gross exposure, and the intraday loss limit.
func (m *Manager) CanEnter(signal int, price, atr float64) bool {
	if m.paused {
		return false
	}
	if m.Drawdown() > m.limits.MaxDrawdownPct {
		return false
	}
	net, gross := m.Exposure()
	if signal > 0 && net >= m.limits.MaxNetExposure {
		return false
	}
	if signal < 0 && net <= m.limits.MinNetExposure {
		return false
	}
	if gross >= m.limits.MaxGrossExposure {
		return false
	}
	if m.dailyPnL < -(m.equity * m.limits.DailyLossLimitPct / 100.0) {
		return false
	}
	return true
}

// Enter opens a trade if every gate passes, placing the initial stop
// atr*stopMult away from entry. Returns nil when entry is not allowed.
func (m *Manager) Enter(now time.Time, price float64, signal int, atr float64, shares int, strategy string, stopMult, trailingMult float64, isPyramid bool) *Trade {
	if shares <= 0 || !m.CanEnter(signal, price, atr) {
		return nil
	}
	if stopMult <= 0 {
		stopMult = m.limits.StopATRMult
	}
	if trailingMult <= 0 {
		trailingMult = m.limits.TrailingStopATRMult
	}
	stop := price - float64(signal)*atr*stopMult
	t := newTrade(id.New(), now, price, shares, signal, stop, strategy, stopMult, trailingMult, isPyramid)
	m.open = append(m.open, t)
	return t
}

// UpdatePositions advances every open trade one bar: bars-held, R-multiple,
// trailing-stop escalation, excursions, then stop and time-stop triggers.
// Returns the trades closed this bar.
func (m *Manager) UpdatePositions(now time.Time, closePrice, atr, high, low float64) []*Trade {
	var closedNow []*Trade
	for _, t := range m.OpenTrades() {
		t.BarsHeld++

		var gain float64
		if t.Signal > 0 {
			gain = closePrice - t.EntryPrice
		} else {
			gain = t.EntryPrice - closePrice
		}
		t.CurrentRMultiple = gain / t.InitialRiskPerShare

		// Tighten the trail as the trade earns R.
		switch {
		case t.CurrentRMultiple >= m.limits.TrailingEndR:
			t.TrailingMult = math.Max(m.limits.TrailingEndMult, 0.1)
			t.UpdateTrailingStop(closePrice, atr, m.limits.TrailingStopATRMult)
		case t.CurrentRMultiple >= m.limits.TrailingMidR:
			t.TrailingMult = math.Max(m.limits.TrailingMidMult, 0.1)
			t.UpdateTrailingStop(closePrice, atr, m.limits.TrailingStopATRMult)
		case t.CurrentRMultiple >= m.limits.TrailingStartR:
			t.TrailingMult = math.Max(m.limits.TrailingStartMult, 0.1)
			t.UpdateTrailingStop(closePrice, atr, m.limits.TrailingStopATRMult)
		}

		pnl := t.PnL(closePrice)
		if pnl < t.MaxAdverseExcursion {
			t.MaxAdverseExcursion = pnl
		}
		if pnl > t.MaxFavorableExcursion {
			t.MaxFavorableExcursion = pnl
		}

		exitReason := ""
		exitPrice := closePrice
		if t.Signal > 0 {
			if low <= t.TrailingStop {
				exitReason = "stop_loss"
				exitPrice = t.TrailingStop
			}
		} else {
			if high >= t.TrailingStop {
				exitReason = "stop_loss"
				exitPrice = t.TrailingStop
			}
		}
		if exitReason == "" && m.limits.TimeStopBars > 0 && t.BarsHeld >= m.limits.TimeStopBars && pnl <= 0 {
			exitReason = "time_stop"
		}

		if exitReason != "" {
			m.ForceExit(t, now, exitPrice, exitReason)
			closedNow = append(closedNow, t)
		}
	}
	return closedNow
}

// ForceExit closes a trade at the given raw price (exit costs applied),
// realizes its P&L into equity and moves it to the closed ledger. A trade
// closes exactly once.
func (m *Manager) ForceExit(t *Trade, now time.Time, rawPrice float64, reason string) {
	if t.Closed {
		return
	}
	exitPrice := m.costs.ExitPrice(rawPrice, t.Signal)
	t.ExitTime = now
	t.ExitPrice = exitPrice
	t.ExitReason = reason
	t.Closed = true

	pnl := t.PnL(exitPrice)
	m.equity += pnl
	m.dailyPnL += pnl

	for i, o := range m.open {
		if o == t {
			m.open = append(m.open[:i], m.open[i+1:]...)
			break
		}
	}
	m.closed = append(m.closed, t)

	if m.equity > m.peakEquity {
		m.peakEquity = m.equity
	}
}

// ExitStrategyTrades force-closes every open trade belonging to a strategy
// (a trend-break veto). Returns the trades closed.
func (m *Manager) ExitStrategyTrades(now time.Time, rawPrice float64, strategy, reason string) []*Trade {
	var closedNow []*Trade
	for _, t := range m.OpenTrades() {
		if t.Strategy == strategy {
			m.ForceExit(t, now, rawPrice, reason)
			closedNow = append(closedNow, t)
		}
	}
	return closedNow
}

// CloseAll liquidates every open trade, e.g. at the end of a simulation.
func (m *Manager) CloseAll(now time.Time, rawPrice float64, reason string) []*Trade {
	var closedNow []*Trade
	for _, t := range m.OpenTrades() {
		m.ForceExit(t, now, rawPrice, reason)
		closedNow = append(closedNow, t)
	}
	return closedNow
}

// MarkEquity values the book at the bar's close: initial capital plus
// realized P&L plus unrealized P&L of the open set.
func (m *Manager) MarkEquity(closePrice float64) float64 {
	equity := m.equity
	for _, t := range m.open {
		equity += t.PnL(closePrice)
	}
	return equity
}

// EndOfDay handles the calendar-day rollover: the pause flag is recomputed
// from the day being closed, the daily accumulator resets, and the risk
// throttle is applied or restored depending on drawdown.
func (m *Manager) EndOfDay(now time.Time) {
	closedDayPnL := m.dailyPnL
	m.dailyPnL = 0
	m.paused = closedDayPnL < -(m.equity * m.limits.DailyLossLimitPct / 100.0)

	if m.Drawdown() > m.limits.MaxDrawdownPct {
		m.riskPct *= m.limits.DrawdownRecoveryScale
		m.throttled = true
	} else if m.throttled && m.limits.RecoveryRestore {
		m.riskPct = m.limits.PerTradeRiskPct
		m.throttled = false
	}
}

// OpenSameDirection counts open trades matching a signal direction and
// strategy.
func (m *Manager) OpenSameDirection(signal int, strategy string) int {
	n := 0
	for _, t := range m.open {
		if t.Signal == signal && t.Strategy == strategy {
			n++
		}
	}
	return n
}

// CanPyramid decides whether a fresh same-direction signal may add to an
// existing position. The base trade's R-multiple must have crossed the next
// configured threshold; the last threshold extrapolates when the add count
// outruns the list.
func (m *Manager) CanPyramid(signal int, strategy string) (*Trade, float64, bool) {
	if !m.limits.PyramidEnabled {
		return nil, 0, false
	}
	var same []*Trade
	for _, t := range m.open {
		if t.Signal == signal && t.Strategy == strategy {
			same = append(same, t)
		}
	}
	if len(same) == 0 {
		return nil, 0, false
	}
	base := same[0]
	addCount := len(same) - 1
	if addCount >= m.limits.PyramidMaxAdds {
		return nil, 0, false
	}

	var threshold float64
	if n := len(m.limits.PyramidAddThresholds); n > 0 {
		i := addCount
		if i >= n {
			i = n - 1
		}
		threshold = m.limits.PyramidAddThresholds[i]
	} else {
		threshold = 1.5 * float64(addCount+1)
	}

	if base.CurrentRMultiple >= threshold {
		return base, threshold, true
	}
	return nil, 0, false
}

// PyramidScale is the extra size scale-down applied to approved adds.
func (m *Manager) PyramidScale() float64 {
	return math.Max(m.limits.PyramidAddScale, 0.1)
}
