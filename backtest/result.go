package backtest

import (
	"time"

	"github.com/lzjiangjeff/automated-trader/risk"
)

// Result is the complete outcome of one simulation: the post-warm-up equity
// curve, the cost-adjusted closed-trade log and the derived metrics.
type Result struct {
	InitialCapital float64

	Times  []time.Time
	Equity []float64
	Trades []*risk.Trade

	// Time-averaged exposure over the traded portion of the run.
	AvgNetExposure   float64
	AvgGrossExposure float64

	Metrics Metrics
}

// FinalEquity is the last point of the equity curve, after the end-of-run
// liquidation and its exit costs.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.InitialCapital
	}
	return r.Equity[len(r.Equity)-1]
}

// Returns is the bar-over-bar percentage change of the equity curve, one
// element shorter than the curve itself.
func (r *Result) Returns() []float64 {
	if len(r.Equity) < 2 {
		return nil
	}
	out := make([]float64, len(r.Equity)-1)
	for i := 1; i < len(r.Equity); i++ {
		prev := r.Equity[i-1]
		if prev != 0 {
			out[i-1] = (r.Equity[i] - prev) / prev
		}
	}
	return out
}
