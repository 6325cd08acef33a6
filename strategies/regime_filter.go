package strategies

import (
	"fmt"
	"math"

	"github.com/lzjiangjeff/automated-trader/market"
)

// RegimeFilterConfig parameterizes the risk-on/risk-off exposure filter.
type RegimeFilterConfig struct {
	Enabled bool `yaml:"enabled"`

	IndexSymbol     string  `yaml:"index_symbol"`
	VolSymbol       string  `yaml:"vol_symbol"`
	IndexSMAPeriod  int     `yaml:"index_sma_period"`
	VolThreshold    float64 `yaml:"vol_threshold"`
	RiskOffExposure float64 `yaml:"risk_off_exposure"`
}

func defaultRegimeFilter() RegimeFilterConfig {
	return RegimeFilterConfig{
		IndexSymbol:     "QQQ",
		VolSymbol:       "VIX",
		IndexSMAPeriod:  200,
		VolThreshold:    25,
		RiskOffExposure: 0.25,
	}
}

// RegimeFilter never signals a direction; it dampens overall exposure when
// the broad index trades below its long SMA or the volatility index runs hot.
type RegimeFilter struct {
	cfg RegimeFilterConfig
}

func NewRegimeFilter(cfg RegimeFilterConfig) *RegimeFilter { return &RegimeFilter{cfg: cfg} }

func (s *RegimeFilter) Name() string { return "regime_filter" }

func (s *RegimeFilter) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	return neutralSeries(t.Len()), nil
}

// GetExposureMultiplier returns 1.0 on risk-on bars and RiskOffExposure
// otherwise. Bars without aligned context carry the previous value forward.
func (s *RegimeFilter) GetExposureMultiplier(t *market.Table, ctx market.Context) []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = 1.0
	}
	if ctx == nil {
		return out
	}
	index := ctx[s.cfg.IndexSymbol]
	vol := ctx[s.cfg.VolSymbol]
	if index == nil || vol == nil {
		return out
	}

	smaCol := fmt.Sprintf("sma_%d", s.cfg.IndexSMAPeriod)
	sma, ok := index.Feature(smaCol)
	if !ok {
		sma = market.RollingMean(index.Close, s.cfg.IndexSMAPeriod, 0)
	}

	indexByTime := index.IndexByTime()
	volByTime := vol.IndexByTime()

	last := 1.0
	for i, ts := range t.Times {
		ii, okIdx := indexByTime[ts]
		vi, okVol := volByTime[ts]
		if okIdx && okVol && !math.IsNaN(sma[ii]) {
			riskOn := index.Close[ii] > sma[ii] && vol.Close[vi] < s.cfg.VolThreshold
			if riskOn {
				last = 1.0
			} else {
				last = s.cfg.RiskOffExposure
			}
		}
		out[i] = last
	}
	return out
}
