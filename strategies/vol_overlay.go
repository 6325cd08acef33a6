package strategies

import (
	"math"

	"github.com/lzjiangjeff/automated-trader/market"
)

// VolatilityOverlayConfig parameterizes the sizing overlay.
type VolatilityOverlayConfig struct {
	Enabled bool `yaml:"enabled"`

	ATRPeriod       int     `yaml:"atr_period"`
	VolTargetAnnual float64 `yaml:"vol_target_annual"`
	MinSizeMult     float64 `yaml:"min_size_mult"`
	MaxSizeMult     float64 `yaml:"max_size_mult"`
}

func defaultVolatilityOverlay() VolatilityOverlayConfig {
	return VolatilityOverlayConfig{
		ATRPeriod:       14,
		VolTargetAnnual: 0.25,
		MinSizeMult:     0.5,
		MaxSizeMult:     1.5,
	}
}

// VolatilityOverlay never signals a direction; it scales position sizes down
// when the ATR percentile is high and adjusts toward an annualized volatility
// target when a returns column is available.
type VolatilityOverlay struct {
	cfg VolatilityOverlayConfig
}

func NewVolatilityOverlay(cfg VolatilityOverlayConfig) *VolatilityOverlay {
	return &VolatilityOverlay{cfg: cfg}
}

func (s *VolatilityOverlay) Name() string { return "volatility_overlay" }

func (s *VolatilityOverlay) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	return neutralSeries(t.Len()), nil
}

// GetSizeMultiplier maps the smoothed ATR percentile into
// [MinSizeMult, MaxSizeMult], inverted so high volatility shrinks size.
func (s *VolatilityOverlay) GetSizeMultiplier(t *market.Table) []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = 1.0
	}
	atr, ok := t.Feature("atr")
	if !ok {
		return out
	}

	window := s.cfg.ATRPeriod
	if window < 10 {
		window = 10
	}
	smoothed := market.RollingMean(atr, window, 0)
	percentile := market.RollingRankPct(smoothed, 50, 0)

	var volAdj []float64
	if returns, ok := t.Feature("returns"); ok {
		realized := market.RollingStd(returns, 20, 0)
		volAdj = make([]float64, t.Len())
		for i := range volAdj {
			rv := realized[i] * math.Sqrt(252)
			volAdj[i] = market.Clip(s.cfg.VolTargetAnnual/(rv+0.01), 0.5, 2.0)
		}
	}

	for i := range out {
		p := percentile[i]
		if math.IsNaN(p) {
			continue // keep the neutral 1.0
		}
		mult := 1.0 / (1.0 + p)
		mult = mult*(s.cfg.MaxSizeMult-s.cfg.MinSizeMult) + s.cfg.MinSizeMult
		if volAdj != nil && !math.IsNaN(volAdj[i]) {
			mult *= volAdj[i]
		}
		out[i] = market.Clip(mult, s.cfg.MinSizeMult, s.cfg.MaxSizeMult)
	}
	return out
}
