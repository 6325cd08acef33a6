package backtest

import (
	"math"
)

const tradingDaysPerYear = 252

// Metrics summarizes a run. Return-like figures are percentages; ratios
// (Sharpe, Sortino, Calmar, profit factor) are unitless. Drawdowns are
// positive magnitudes.
type Metrics struct {
	TotalReturn float64
	CAGR        float64
	Sharpe      float64
	Sortino     float64
	Calmar      float64
	MaxDrawdown float64
	AvgDrawdown float64
	Volatility  float64

	WinRate      float64
	ProfitFactor float64
	TradeCount   int
	AvgRMultiple float64

	NetExposure   float64
	GrossExposure float64
	Turnover      float64

	BestDay  float64
	WorstDay float64
	Skew     float64
	Kurtosis float64
}

// Compute derives all metrics from a finished run. It never mutates the
// result and is safe to call on degenerate runs (no trades, flat curve).
func Compute(r *Result) Metrics {
	var m Metrics
	if len(r.Equity) < 2 {
		return m
	}

	first := r.Equity[0]
	last := r.Equity[len(r.Equity)-1]
	returns := r.Returns()

	if first != 0 {
		m.TotalReturn = (last - first) / first * 100
	}

	years := r.Times[len(r.Times)-1].Sub(r.Times[0]).Hours() / 24 / 365.25
	cagr := 0.0
	if years > 0 && first > 0 && last > 0 {
		cagr = math.Pow(last/first, 1/years) - 1
	}
	m.CAGR = cagr * 100

	mean := meanOf(returns)
	std := stdOf(returns, mean)
	if std > 0 {
		m.Sharpe = mean * tradingDaysPerYear / (std * math.Sqrt(tradingDaysPerYear))
	}
	m.Volatility = std * math.Sqrt(tradingDaysPerYear) * 100

	var downside []float64
	for _, v := range returns {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	if ds := stdOf(downside, meanOf(downside)); ds > 0 {
		m.Sortino = mean * tradingDaysPerYear / (ds * math.Sqrt(tradingDaysPerYear))
	}

	maxDD, avgDD := drawdowns(r.Equity)
	m.MaxDrawdown = maxDD * 100
	m.AvgDrawdown = avgDD * 100
	if maxDD > 0 {
		m.Calmar = cagr / maxDD
	}

	m.TradeCount = len(r.Trades)
	if m.TradeCount > 0 {
		var wins int
		var grossProfit, grossLoss, rSum, volume float64
		for _, t := range r.Trades {
			pnl := t.PnL(t.ExitPrice)
			if pnl > 0 {
				wins++
				grossProfit += pnl
			} else if pnl < 0 {
				grossLoss += -pnl
			}
			rSum += t.RealizedRMultiple()
			volume += math.Abs(float64(t.Shares) * t.EntryPrice)
		}
		m.WinRate = float64(wins) / float64(m.TradeCount) * 100
		if grossLoss > 0 {
			m.ProfitFactor = grossProfit / grossLoss
		}
		m.AvgRMultiple = rSum / float64(m.TradeCount)
		if r.InitialCapital > 0 {
			m.Turnover = volume / (r.InitialCapital * float64(len(r.Equity)))
		}
	}

	m.NetExposure = r.AvgNetExposure * 100
	m.GrossExposure = r.AvgGrossExposure * 100

	if len(returns) > 0 {
		best, worst := returns[0], returns[0]
		for _, v := range returns[1:] {
			best = math.Max(best, v)
			worst = math.Min(worst, v)
		}
		m.BestDay = best * 100
		m.WorstDay = worst * 100
	}

	if len(returns) > 3 && std > 0 {
		var m3, m4 float64
		for _, v := range returns {
			z := (v - mean) / std
			m3 += z * z * z
			m4 += z * z * z * z
		}
		n := float64(len(returns))
		m.Skew = m3 / n
		m.Kurtosis = m4/n - 3.0
	}

	return m
}

// Map flattens the metrics for journaling and reporting; keys are stable.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"total_return":   m.TotalReturn,
		"cagr":           m.CAGR,
		"sharpe":         m.Sharpe,
		"sortino":        m.Sortino,
		"calmar":         m.Calmar,
		"max_drawdown":   m.MaxDrawdown,
		"avg_drawdown":   m.AvgDrawdown,
		"volatility":     m.Volatility,
		"win_rate":       m.WinRate,
		"profit_factor":  m.ProfitFactor,
		"trade_count":    float64(m.TradeCount),
		"avg_r_multiple": m.AvgRMultiple,
		"net_exposure":   m.NetExposure,
		"gross_exposure": m.GrossExposure,
		"turnover":       m.Turnover,
		"best_day":       m.BestDay,
		"worst_day":      m.WorstDay,
		"skew":           m.Skew,
		"kurtosis":       m.Kurtosis,
	}
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// stdOf is the sample standard deviation.
func stdOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// drawdowns returns the maximum and average decline from the running peak,
// both as positive fractions.
func drawdowns(equity []float64) (maxDD, avgDD float64) {
	peak := equity[0]
	var sum float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
		sum += dd
	}
	return maxDD, sum / float64(len(equity))
}
