package strategies

import (
	"fmt"

	"github.com/lzjiangjeff/automated-trader/market"
)

// Signal is the per-bar directional output of a strategy.
type Signal int

const (
	Short   Signal = -1
	Neutral Signal = 0
	Long    Signal = 1
)

// Strategy maps a feature-enriched bar table to one signal per bar.
//
// Implementations that only modify sizing or exposure (overlays, regime
// filters) return all-neutral signals and expose their real output through
// the optional capability interfaces below. A strategy missing its own
// required feature columns returns all-neutral rather than an error, so a
// heterogeneous strategy set can run against any table; missing price
// columns are a *market.MissingColumnError and abort the run.
type Strategy interface {
	Name() string
	GenerateSignals(t *market.Table, ctx market.Context) ([]Signal, error)
}

// ExitChecker is an optional capability: a trend-break veto evaluated at bar
// i, independent of the stop-loss machinery.
type ExitChecker interface {
	ShouldExit(t *market.Table, i int) bool
}

// SizeMultiplier is an optional capability: a per-bar position size overlay,
// bounded to the strategy's configured range.
type SizeMultiplier interface {
	GetSizeMultiplier(t *market.Table) []float64
}

// ExposureMultiplier is an optional capability: a per-bar overall exposure
// dampener driven by auxiliary context tables.
type ExposureMultiplier interface {
	GetExposureMultiplier(t *market.Table, ctx market.Context) []float64
}

// IsOverlay reports whether s is a side-channel modifier (size or exposure
// capability) rather than a direct signal source.
func IsOverlay(s Strategy) bool {
	if _, ok := s.(SizeMultiplier); ok {
		return true
	}
	if _, ok := s.(ExposureMultiplier); ok {
		return true
	}
	return false
}

// Config holds every strategy section of the run configuration.
type Config struct {
	TrendEMA          TrendEMAConfig          `yaml:"trend_ema"`
	BreakoutMomentum  BreakoutMomentumConfig  `yaml:"breakout_momentum"`
	MeanReversion     MeanReversionConfig     `yaml:"mean_reversion"`
	VolatilityOverlay VolatilityOverlayConfig `yaml:"volatility_overlay"`
	RegimeFilter      RegimeFilterConfig      `yaml:"regime_filter"`
	Ensemble          EnsembleConfig          `yaml:"ensemble"`
}

// Default returns the strategy configuration with all defaults applied and
// every strategy disabled.
func Default() Config {
	return Config{
		TrendEMA:          defaultTrendEMA(),
		BreakoutMomentum:  defaultBreakoutMomentum(),
		MeanReversion:     defaultMeanReversion(),
		VolatilityOverlay: defaultVolatilityOverlay(),
		RegimeFilter:      defaultRegimeFilter(),
		Ensemble:          defaultEnsemble(),
	}
}

// Build instantiates every enabled strategy, signal sources first, then the
// side-channel overlays.
func Build(cfg Config) []Strategy {
	var out []Strategy
	if cfg.TrendEMA.Enabled {
		out = append(out, NewTrendEMA(cfg.TrendEMA))
	}
	if cfg.BreakoutMomentum.Enabled {
		out = append(out, NewBreakoutMomentum(cfg.BreakoutMomentum))
	}
	if cfg.MeanReversion.Enabled {
		out = append(out, NewMeanReversion(cfg.MeanReversion))
	}
	if cfg.VolatilityOverlay.Enabled {
		out = append(out, NewVolatilityOverlay(cfg.VolatilityOverlay))
	}
	if cfg.RegimeFilter.Enabled {
		out = append(out, NewRegimeFilter(cfg.RegimeFilter))
	}
	return out
}

// ByName constructs a single strategy with its configured parameters.
func ByName(name string, cfg Config) (Strategy, error) {
	switch name {
	case "trend_ema":
		return NewTrendEMA(cfg.TrendEMA), nil
	case "breakout_momentum":
		return NewBreakoutMomentum(cfg.BreakoutMomentum), nil
	case "mean_reversion":
		return NewMeanReversion(cfg.MeanReversion), nil
	case "volatility_overlay":
		return NewVolatilityOverlay(cfg.VolatilityOverlay), nil
	case "regime_filter":
		return NewRegimeFilter(cfg.RegimeFilter), nil
	case "noop", "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func neutralSeries(n int) []Signal {
	return make([]Signal, n)
}
