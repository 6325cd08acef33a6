package strategies

import (
	"github.com/lzjiangjeff/automated-trader/market"
)

// MeanReversionConfig parameterizes the mean-reversion strategy.
type MeanReversionConfig struct {
	Enabled bool `yaml:"enabled"`

	Lookback        int     `yaml:"lookback"`
	StdDev          float64 `yaml:"std_dev"`
	ADXThreshold    float64 `yaml:"adx_threshold"`
	BBWidthQuantile float64 `yaml:"bb_width_quantile"`
}

func defaultMeanReversion() MeanReversionConfig {
	return MeanReversionConfig{
		Lookback:        20,
		StdDev:          2.5,
		ADXThreshold:    18,
		BBWidthQuantile: 0.3,
	}
}

// MeanReversion fades extreme moves in non-trending, volatility-compressed
// regimes: long below mean − k·std (or the lower Bollinger band), short above
// the mirror, only while ADX is low and band width sits in its lower quantile.
type MeanReversion struct {
	cfg MeanReversionConfig
}

func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	signals := neutralSeries(t.Len())
	if !t.HasColumns("adx", "bb_width", "bb_lower", "bb_upper", "bb_middle") {
		return signals, nil
	}

	adx, _ := t.Feature("adx")
	bbWidth, _ := t.Feature("bb_width")
	bbLower, _ := t.Feature("bb_lower")
	bbUpper, _ := t.Feature("bb_upper")

	mean := market.RollingMean(t.Close, s.cfg.Lookback, 0)
	std := market.RollingStd(t.Close, s.cfg.Lookback, 0)
	widthThreshold := market.RollingQuantile(bbWidth, 50, 0, s.cfg.BBWidthQuantile)

	for i := range signals {
		nonTrending := adx[i] < s.cfg.ADXThreshold
		compressing := bbWidth[i] < widthThreshold[i]
		if !nonTrending || !compressing {
			continue
		}
		belowMean := t.Close[i] < mean[i]-std[i]*s.cfg.StdDev
		aboveMean := t.Close[i] > mean[i]+std[i]*s.cfg.StdDev
		nearLower := t.Close[i] <= bbLower[i]
		nearUpper := t.Close[i] >= bbUpper[i]

		switch {
		case belowMean || nearLower:
			signals[i] = Long
		case aboveMean || nearUpper:
			signals[i] = Short
		}
	}
	return signals, nil
}
