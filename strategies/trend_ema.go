package strategies

import (
	"fmt"
	"math"
	"time"

	"github.com/lzjiangjeff/automated-trader/market"
)

// TrendEMAConfig parameterizes the trend-following EMA strategy.
type TrendEMAConfig struct {
	Enabled bool `yaml:"enabled"`

	EMAFast   int `yaml:"ema_fast"`
	EMAMedium int `yaml:"ema_medium"`
	EMASlow   int `yaml:"ema_slow"`

	RSILongThreshold float64 `yaml:"rsi_long_threshold"`
	ADXThreshold     float64 `yaml:"adx_threshold"`
	LongOnly         bool    `yaml:"long_only"`

	RegimeFilterEnabled bool `yaml:"regime_filter_enabled"`
	RegimeSMAPeriod     int  `yaml:"regime_sma_period"`

	DualTimeframeEnabled bool `yaml:"dual_timeframe_enabled"`
	DualTimeframeEMA     int  `yaml:"dual_timeframe_ema"`

	MaxVolatility         float64 `yaml:"max_volatility"`
	MinBarsBetweenSignals int     `yaml:"min_bars_between_signals"`
	FastBuffer            float64 `yaml:"fast_buffer"`
	ExitBuffer            float64 `yaml:"exit_buffer"`

	VolatilityTimeStopBars      int     `yaml:"volatility_time_stop_bars"`
	VolatilityTimeStopThreshold float64 `yaml:"volatility_time_stop_threshold"`
}

func defaultTrendEMA() TrendEMAConfig {
	return TrendEMAConfig{
		EMAFast:               12,
		EMAMedium:             26,
		EMASlow:               55,
		RSILongThreshold:      52,
		ADXThreshold:          20,
		LongOnly:              true,
		RegimeFilterEnabled:   true,
		RegimeSMAPeriod:       200,
		DualTimeframeEnabled:  true,
		DualTimeframeEMA:      100,
		MaxVolatility:         0.35,
		MinBarsBetweenSignals: 1,
		ExitBuffer:            0.015,
	}
}

// TrendEMA rides strong bullish regimes: it goes long on a fresh cross of the
// medium EMA or a 20-bar swing break while the EMA stack is aligned, subject
// to regime, dual-timeframe, RSI, ADX and volatility filters.
type TrendEMA struct {
	cfg TrendEMAConfig
}

func NewTrendEMA(cfg TrendEMAConfig) *TrendEMA { return &TrendEMA{cfg: cfg} }

func (s *TrendEMA) Name() string { return "trend_ema" }

func (s *TrendEMA) featureColumns() []string {
	cols := []string{
		fmt.Sprintf("ema_%d", s.cfg.EMAFast),
		fmt.Sprintf("ema_%d", s.cfg.EMAMedium),
		fmt.Sprintf("ema_%d", s.cfg.EMASlow),
		"sma_50",
		"sma_200",
	}
	if s.cfg.DualTimeframeEnabled {
		cols = append(cols, fmt.Sprintf("ema_%d", s.cfg.DualTimeframeEMA))
	}
	return cols
}

func (s *TrendEMA) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	signals := neutralSeries(t.Len())
	if !t.HasColumns(s.featureColumns()...) {
		return signals, nil
	}

	emaFast, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMAFast))
	emaMedium, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMAMedium))
	emaSlow, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMASlow))
	sma50, _ := t.Feature("sma_50")
	sma200, _ := t.Feature("sma_200")

	regime := s.regimeCondition(t)
	dual := s.dualCondition(t)
	rsiOK := thresholdCondition(t, "rsi", s.cfg.RSILongThreshold)
	adxOK := thresholdCondition(t, "adx", s.cfg.ADXThreshold)
	volOK := s.volatilityCondition(t)

	rollingHigh := market.RollingMax(t.High, 20, 1)

	rawLong := make([]bool, t.Len())
	bearish := make([]bool, t.Len())
	for i := 1; i < t.Len(); i++ {
		crossMedium := t.Close[i] > emaMedium[i] && t.Close[i-1] <= emaMedium[i-1]
		swingBreak := t.Close[i] > rollingHigh[i-1]
		trigger := (crossMedium || swingBreak) && t.Close[i] > emaFast[i]*(1+s.cfg.FastBuffer)

		bullish := emaFast[i] > emaMedium[i] && emaMedium[i] > emaSlow[i] && t.Close[i] > emaSlow[i]
		rawLong[i] = trigger && bullish && regime[i] && dual[i] && rsiOK[i] && adxOK[i] && volOK[i]

		bearish[i] = emaFast[i] < emaMedium[i] && emaMedium[i] < emaSlow[i] &&
			t.Close[i] < sma50[i] && sma50[i] < sma200[i]
	}

	s.applyWithCooldown(t, signals, rawLong, Long)

	if !s.cfg.LongOnly {
		rawShort := make([]bool, t.Len())
		for i := 1; i < t.Len(); i++ {
			fresh := bearish[i] && !bearish[i-1]
			dualShort := true
			if s.cfg.DualTimeframeEnabled {
				dualShort = !dual[i]
			}
			rawShort[i] = fresh && !regime[i] && dualShort && volOK[i]
		}
		s.applyWithCooldown(t, signals, rawShort, Short)
	}

	return signals, nil
}

// ShouldExit vetoes the trend when the fast EMA folds back under the medium
// one, price breaks the slow EMA buffer, or volatility has collapsed for a
// configured run of bars.
func (s *TrendEMA) ShouldExit(t *market.Table, i int) bool {
	if i < 0 || i >= t.Len() || !t.HasColumns(s.featureColumns()...) {
		return false
	}
	emaFast, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMAFast))
	emaMedium, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMAMedium))
	emaSlow, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.EMASlow))

	close := t.Close[i]
	if math.IsNaN(emaFast[i]) || math.IsNaN(emaMedium[i]) || math.IsNaN(emaSlow[i]) {
		return false
	}

	if emaFast[i] <= emaMedium[i] && close <= emaMedium[i] {
		return true
	}
	if close <= emaSlow[i]*(1-s.cfg.ExitBuffer) {
		return true
	}

	// Low-volatility time stop: the trend has gone dormant.
	n := s.cfg.VolatilityTimeStopBars
	if n > 0 && i+1 >= n {
		if atr, ok := t.Feature("atr"); ok {
			all := true
			for j := i - n + 1; j <= i; j++ {
				ratio := atr[j] / t.Close[j]
				if math.IsNaN(ratio) || ratio >= s.cfg.VolatilityTimeStopThreshold {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
	}
	return false
}

func (s *TrendEMA) applyWithCooldown(t *market.Table, signals []Signal, raw []bool, sig Signal) {
	cooldown := s.cfg.MinBarsBetweenSignals
	if cooldown <= 1 {
		for i, on := range raw {
			if on {
				signals[i] = sig
			}
		}
		return
	}
	lastEntry := -1
	for i, on := range raw {
		if !on {
			continue
		}
		if lastEntry < 0 || daysBetween(t.Times[lastEntry], t.Times[i]) >= cooldown {
			signals[i] = sig
			lastEntry = i
		}
	}
}

func (s *TrendEMA) regimeCondition(t *market.Table) []bool {
	out := make([]bool, t.Len())
	if !s.cfg.RegimeFilterEnabled {
		for i := range out {
			out[i] = true
		}
		return out
	}
	col := fmt.Sprintf("sma_%d", s.cfg.RegimeSMAPeriod)
	sma, ok := t.Feature(col)
	if !ok {
		sma = market.RollingMean(t.Close, s.cfg.RegimeSMAPeriod, 0)
	}
	for i := range out {
		out[i] = t.Close[i] > sma[i] // NaN compares false
	}
	return out
}

func (s *TrendEMA) dualCondition(t *market.Table) []bool {
	out := make([]bool, t.Len())
	if !s.cfg.DualTimeframeEnabled {
		for i := range out {
			out[i] = true
		}
		return out
	}
	ema, _ := t.Feature(fmt.Sprintf("ema_%d", s.cfg.DualTimeframeEMA))
	for i := range out {
		out[i] = t.Close[i] > ema[i]
	}
	return out
}

func (s *TrendEMA) volatilityCondition(t *market.Table) []bool {
	out := make([]bool, t.Len())
	atr, ok := t.Feature("atr")
	if s.cfg.MaxVolatility <= 0 || !ok {
		for i := range out {
			out[i] = true
		}
		return out
	}
	for i := range out {
		ratio := atr[i] / t.Close[i]
		// Unknown volatility does not block an entry.
		out[i] = math.IsNaN(ratio) || ratio < s.cfg.MaxVolatility
	}
	return out
}

// thresholdCondition is true where the feature exceeds the threshold; a zero
// threshold or a missing column disables the filter entirely.
func thresholdCondition(t *market.Table, col string, threshold float64) []bool {
	out := make([]bool, t.Len())
	vals, ok := t.Feature(col)
	if threshold <= 0 || !ok {
		for i := range out {
			out[i] = true
		}
		return out
	}
	for i := range out {
		out[i] = vals[i] > threshold
	}
	return out
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
