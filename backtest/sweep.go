package backtest

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/lzjiangjeff/automated-trader/market"
	"github.com/lzjiangjeff/automated-trader/risk"
	"github.com/lzjiangjeff/automated-trader/strategies"
)

// SweepGrid is the parameter grid for a risk sweep: every per-trade risk
// percentage crossed with every stop multiplier.
type SweepGrid struct {
	RiskPcts  []float64 `yaml:"risk_pcts"`
	StopMults []float64 `yaml:"stop_mults"`
	Workers   int       `yaml:"workers"`
}

// SweepPoint identifies one cell of the grid.
type SweepPoint struct {
	PerTradeRiskPct float64
	StopATRMult     float64
}

// SweepResult pairs a grid point with its run outcome.
type SweepResult struct {
	Point  SweepPoint
	Result *Result
	Err    error
}

// RunSweep fans the grid out over a worker pool. Runs are independent; each
// gets its own Engine and risk manager, reading the shared immutable table.
// Results come back in grid order regardless of completion order.
func RunSweep(limits risk.Limits, costs risk.CostModel, strats strategies.Config, t *market.Table, ctx market.Context, grid SweepGrid, log *zap.Logger) []SweepResult {
	if log == nil {
		log = zap.NewNop()
	}

	points := make([]SweepPoint, 0, len(grid.RiskPcts)*len(grid.StopMults))
	for _, riskPct := range grid.RiskPcts {
		for _, stopMult := range grid.StopMults {
			points = append(points, SweepPoint{PerTradeRiskPct: riskPct, StopATRMult: stopMult})
		}
	}

	workers := grid.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(points) {
		workers = len(points)
	}

	results := make([]SweepResult, len(points))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				p := points[idx]
				l := limits
				l.PerTradeRiskPct = p.PerTradeRiskPct
				l.StopATRMult = p.StopATRMult

				res, err := New(l, costs, strats, log).Run(t, ctx)
				results[idx] = SweepResult{Point: p, Result: res, Err: err}
				if err != nil {
					log.Warn("sweep run failed",
						zap.Float64("risk_pct", p.PerTradeRiskPct),
						zap.Float64("stop_mult", p.StopATRMult),
						zap.Error(err))
				}
			}
		}()
	}

	for idx := range points {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}
