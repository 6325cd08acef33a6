package strategies

import (
	"github.com/lzjiangjeff/automated-trader/market"
)

// BreakoutMomentumConfig parameterizes the breakout strategy.
type BreakoutMomentumConfig struct {
	Enabled bool `yaml:"enabled"`

	Lookback      int     `yaml:"lookback"`
	RVOLThreshold float64 `yaml:"rvol_threshold"`
	ADXThreshold  float64 `yaml:"adx_threshold"`
	ATRBufferMult float64 `yaml:"atr_buffer_mult"`
	LongOnly      bool    `yaml:"long_only"`
}

func defaultBreakoutMomentum() BreakoutMomentumConfig {
	return BreakoutMomentumConfig{
		Lookback:      10,
		RVOLThreshold: 1.4,
		ADXThreshold:  18,
		ATRBufferMult: 0.25,
		LongOnly:      true,
	}
}

// BreakoutMomentum signals on closes beyond the N-bar high or low plus an ATR
// buffer, confirmed by relative volume and ADX.
type BreakoutMomentum struct {
	cfg BreakoutMomentumConfig
}

func NewBreakoutMomentum(cfg BreakoutMomentumConfig) *BreakoutMomentum {
	return &BreakoutMomentum{cfg: cfg}
}

func (s *BreakoutMomentum) Name() string { return "breakout_momentum" }

func (s *BreakoutMomentum) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	signals := neutralSeries(t.Len())
	if !t.HasColumns("rvol", "adx", "atr") {
		return signals, nil
	}

	rvol, _ := t.Feature("rvol")
	adx, _ := t.Feature("adx")
	atr, _ := t.Feature("atr")

	rollingHigh := market.RollingMax(t.High, s.cfg.Lookback, 0)
	rollingLow := market.RollingMin(t.Low, s.cfg.Lookback, 0)

	for i := 1; i < t.Len(); i++ {
		buffer := atr[i] * s.cfg.ATRBufferMult
		volumeOK := rvol[i] > s.cfg.RVOLThreshold
		adxOK := adx[i] > s.cfg.ADXThreshold
		if !volumeOK || !adxOK {
			continue
		}
		switch {
		case t.Close[i] > rollingHigh[i-1]+buffer:
			signals[i] = Long
		case !s.cfg.LongOnly && t.Close[i] < rollingLow[i-1]-buffer:
			signals[i] = Short
		}
	}
	return signals, nil
}
