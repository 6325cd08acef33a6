package backtest

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lzjiangjeff/automated-trader/market"
	"github.com/lzjiangjeff/automated-trader/risk"
	"github.com/lzjiangjeff/automated-trader/strategies"
)

// warmupBars is the minimum lookback before any trading decision; the
// longest indicator windows need this many bars to settle.
const warmupBars = 50

// Engine drives one simulation over a bar table. It is cheap to construct
// and safe to reuse: Run builds a fresh risk manager every time, so no state
// leaks between runs.
type Engine struct {
	limits risk.Limits
	costs  risk.CostModel
	strats strategies.Config
	log    *zap.Logger
}

func New(limits risk.Limits, costs risk.CostModel, strats strategies.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{limits: limits, costs: costs, strats: strats, log: log}
}

// Run walks the table bar by bar after the warm-up period. Per bar the order
// is: advance open positions, trend-break exits, consume signals (pyramid
// classification, regime exposure, eligibility, volatility-adaptive stops,
// sizing, entry costs, entry), then mark equity. The final bar force-closes
// everything at the last price.
func (e *Engine) Run(t *market.Table, ctx market.Context) (*Result, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	n := t.Len()
	if n <= warmupBars {
		return nil, fmt.Errorf("backtest: need more than %d bars, got %d", warmupBars, n)
	}

	core, volOverlay, regime, err := e.selectStrategies()
	if err != nil {
		return nil, err
	}

	// Every rule is causal, so precomputing the full series once per
	// strategy is equivalent to re-evaluating on each bar prefix.
	signals := make(map[string][]strategies.Signal, len(core))
	for _, s := range core {
		sigs, err := s.GenerateSignals(t, ctx)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
		signals[s.Name()] = sigs
	}

	var volMults, regimeMults []float64
	if volOverlay != nil {
		volMults = volOverlay.GetSizeMultiplier(t)
	}
	if regime != nil {
		regimeMults = regime.GetExposureMultiplier(t, ctx)
	}

	atrSeries, hasATR := t.Feature("atr")
	atrAt := func(i int) float64 {
		if hasATR && !math.IsNaN(atrSeries[i]) && atrSeries[i] > 0 {
			return atrSeries[i]
		}
		return t.Close[i] * 0.02
	}

	manager := risk.NewManager(e.limits, e.costs)
	sizer := risk.Sizer{PerTradeRiskPct: e.limits.PerTradeRiskPct, StopATRMult: e.limits.StopATRMult}

	res := &Result{InitialCapital: manager.InitialCapital()}
	var netSum, grossSum float64

	for i := warmupBars; i < n; i++ {
		now := t.Times[i]
		closePrice := t.Close[i]
		atr := atrAt(i)

		closedNow := manager.UpdatePositions(now, closePrice, atr, t.High[i], t.Low[i])

		for _, s := range core {
			checker, ok := s.(strategies.ExitChecker)
			if !ok || len(manager.OpenTrades()) == 0 {
				continue
			}
			if checker.ShouldExit(t, i) {
				closedNow = append(closedNow, manager.ExitStrategyTrades(now, closePrice, s.Name(), "trend_break")...)
			}
		}

		for _, s := range core {
			sig := int(signals[s.Name()][i])
			if sig == 0 {
				continue
			}

			// A same-direction position already on means this signal is
			// either an approved pyramid add or nothing.
			isPyramid := false
			trigger := 0.0
			if manager.OpenSameDirection(sig, s.Name()) > 0 {
				_, thr, ok := manager.CanPyramid(sig, s.Name())
				if !ok {
					continue
				}
				isPyramid, trigger = true, thr
			}

			exposureMult := 1.0
			if regime != nil {
				v := regimeMults[i]
				if math.IsNaN(v) || v <= 0 {
					e.log.Debug("invalid regime exposure multiplier, clamping",
						zap.Time("bar", now), zap.Float64("value", v))
					exposureMult = 0.1
				} else {
					exposureMult = v
				}
			}

			if !manager.CanEnter(sig, closePrice, atr) {
				continue
			}

			p := 0.5
			if hasATR {
				p = market.PercentRankLast(atrSeries, i, warmupBars, warmupBars)
			}
			stopMult := market.Clip(1.8+(1.0-p)*0.8, 1.8, 2.6)
			trailingMult := market.Clip(1.0+(1.0-p)*0.2, 0.8, 1.2)

			sizeMult := 1.0
			if volOverlay != nil {
				v := volMults[i]
				if math.IsNaN(v) || v <= 0 {
					e.log.Debug("invalid overlay size multiplier, using neutral",
						zap.Time("bar", now), zap.Float64("value", v))
				} else {
					sizeMult = v
				}
			}
			sizeMult *= exposureMult
			if isPyramid {
				sizeMult *= manager.PyramidScale()
			}
			sizeMult = math.Max(sizeMult, 0.2)

			// Pick up any drawdown throttle before sizing.
			sizer.PerTradeRiskPct = manager.RiskPct()
			shares := sizer.Size(closePrice, atr, manager.Equity(), sizeMult, stopMult)
			if shares <= 0 {
				continue
			}

			entryPrice := e.costs.EntryPrice(closePrice, sig)
			tr := manager.Enter(now, entryPrice, sig, atr, shares, s.Name(), stopMult, trailingMult, isPyramid)
			if tr != nil && isPyramid {
				tr.PyramidTrigger = trigger
			}
		}

		if i == n-1 {
			closedNow = append(closedNow, manager.CloseAll(now, closePrice, "end_of_backtest")...)
		}

		res.Trades = append(res.Trades, closedNow...)

		net, gross := manager.Exposure()
		netSum += net
		grossSum += gross

		res.Times = append(res.Times, now)
		res.Equity = append(res.Equity, manager.MarkEquity(closePrice))

		if i == n-1 || !sameDay(t.Times[i+1], now) {
			manager.EndOfDay(now)
		}
	}

	bars := float64(len(res.Equity))
	res.AvgNetExposure = netSum / bars
	res.AvgGrossExposure = grossSum / bars
	res.Metrics = Compute(res)

	e.log.Info("backtest complete",
		zap.Int("bars", len(res.Equity)),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("final_equity", res.FinalEquity()))

	return res, nil
}

// selectStrategies applies the selection policy: with the ensemble enabled
// it is the sole signal source; otherwise every enabled non-overlay strategy
// trades independently. Overlays and filters only ever modify size and
// exposure.
func (e *Engine) selectStrategies() (core []strategies.Strategy, volOverlay strategies.SizeMultiplier, regime strategies.ExposureMultiplier, err error) {
	all := strategies.Build(e.strats)

	var sources []strategies.Strategy
	for _, s := range all {
		if strategies.IsOverlay(s) {
			if v, ok := s.(strategies.SizeMultiplier); ok && volOverlay == nil {
				volOverlay = v
			}
			if r, ok := s.(strategies.ExposureMultiplier); ok && regime == nil {
				regime = r
			}
			continue
		}
		sources = append(sources, s)
	}

	if e.strats.Ensemble.Enabled {
		core = []strategies.Strategy{strategies.NewEnsemble(e.strats.Ensemble, sources)}
	} else {
		core = sources
	}
	if len(core) == 0 {
		return nil, nil, nil, fmt.Errorf("backtest: no active signal strategy, enable at least one")
	}
	return core, volOverlay, regime, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
