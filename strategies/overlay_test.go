package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lzjiangjeff/automated-trader/market"
)

func TestVolatilityOverlay_NeutralSignals(t *testing.T) {
	t.Parallel()

	tbl := testTable(t, []float64{10, 11, 12})
	s := NewVolatilityOverlay(defaultVolatilityOverlay())

	sigs, err := s.GenerateSignals(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, neutralSeries(3), sigs)
}

func TestVolatilityOverlay_MultiplierBounds(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 120)
	atr := make([]float64, 120)
	for i := range closes {
		closes[i] = 100
		atr[i] = 10 - float64(i)*0.05 // volatility steadily falling
	}
	tbl := testTable(t, closes)
	require.NoError(t, tbl.SetFeature("atr", atr))

	cfg := defaultVolatilityOverlay()
	s := NewVolatilityOverlay(cfg)
	mults := s.GetSizeMultiplier(tbl)

	require.Len(t, mults, 120)
	for i, m := range mults {
		assert.GreaterOrEqual(t, m, cfg.MinSizeMult, "bar %d", i)
		assert.LessOrEqual(t, m, cfg.MaxSizeMult, "bar %d", i)
	}

	// Falling ATR means the latest bars rank low and size up toward the cap.
	assert.Greater(t, mults[119], 1.2)
}

func TestVolatilityOverlay_NoATRDefaultsToOne(t *testing.T) {
	t.Parallel()

	tbl := testTable(t, []float64{10, 11})
	s := NewVolatilityOverlay(defaultVolatilityOverlay())

	mults := s.GetSizeMultiplier(tbl)
	assert.Equal(t, []float64{1, 1}, mults)
}

func regimeContext(t *testing.T, indexCloses, volCloses []float64) (*market.Table, market.Context) {
	t.Helper()
	primary := testTable(t, constant(len(indexCloses), 100))

	index := testTable(t, indexCloses)
	require.NoError(t, index.SetFeature("sma_200", constant(len(indexCloses), 100)))
	vol := testTable(t, volCloses)

	return primary, market.Context{"QQQ": index, "VIX": vol}
}

func TestRegimeFilter_RiskOnAndOff(t *testing.T) {
	t.Parallel()

	// Bar 0: index above SMA, vol calm. Bar 1: index below SMA. Bar 2: vol hot.
	primary, ctx := regimeContext(t,
		[]float64{110, 90, 110},
		[]float64{15, 15, 40},
	)

	cfg := defaultRegimeFilter()
	s := NewRegimeFilter(cfg)
	mults := s.GetExposureMultiplier(primary, ctx)

	assert.Equal(t, 1.0, mults[0])
	assert.Equal(t, cfg.RiskOffExposure, mults[1])
	assert.Equal(t, cfg.RiskOffExposure, mults[2])
}

func TestRegimeFilter_NoContextIsFullExposure(t *testing.T) {
	t.Parallel()

	primary := testTable(t, []float64{100, 100})
	s := NewRegimeFilter(defaultRegimeFilter())

	mults := s.GetExposureMultiplier(primary, nil)
	assert.Equal(t, []float64{1, 1}, mults)
}

func TestRegimeFilter_UnalignedBarsCarryForward(t *testing.T) {
	t.Parallel()

	// Context covers only the first two bars; the third primary bar has no
	// matching context timestamp and keeps the last known multiplier.
	primary := testTable(t, []float64{100, 100, 100})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Time: start, Close: 90, High: 90, Low: 90, Open: 90, Volume: 1},
		{Time: start.AddDate(0, 0, 1), Close: 90, High: 90, Low: 90, Open: 90, Volume: 1},
	}
	index, err := market.NewTable(bars)
	require.NoError(t, err)
	require.NoError(t, index.SetFeature("sma_200", []float64{100, 100}))
	vol, err := market.NewTable(bars)
	require.NoError(t, err)

	cfg := defaultRegimeFilter()
	s := NewRegimeFilter(cfg)
	mults := s.GetExposureMultiplier(primary, market.Context{"QQQ": index, "VIX": vol})

	assert.Equal(t, cfg.RiskOffExposure, mults[1])
	assert.Equal(t, cfg.RiskOffExposure, mults[2])
}

func TestMeanReversion_FadesExtremes(t *testing.T) {
	t.Parallel()

	n := 60
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
	}
	closes[n-1] = 80 // deep dip below the band

	tbl := testTable(t, closes)
	require.NoError(t, tbl.SetFeature("adx", constant(n, 10)))
	bbWidth := constant(n, 2)
	bbWidth[n-1] = 0.5 // compressed
	require.NoError(t, tbl.SetFeature("bb_width", bbWidth))
	require.NoError(t, tbl.SetFeature("bb_lower", constant(n, 95)))
	require.NoError(t, tbl.SetFeature("bb_upper", constant(n, 105)))
	require.NoError(t, tbl.SetFeature("bb_middle", constant(n, 100)))

	cfg := defaultMeanReversion()
	cfg.Enabled = true
	s := NewMeanReversion(cfg)

	sigs, err := s.GenerateSignals(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, Long, sigs[n-1])
	assert.Equal(t, Neutral, sigs[n-2])
}

func TestMeanReversion_TrendingRegimeIsNeutral(t *testing.T) {
	t.Parallel()

	n := 60
	closes := constant(n, 100.0)
	closes[n-1] = 80
	tbl := testTable(t, closes)
	require.NoError(t, tbl.SetFeature("adx", constant(n, 40))) // strong trend
	require.NoError(t, tbl.SetFeature("bb_width", constant(n, 1)))
	require.NoError(t, tbl.SetFeature("bb_lower", constant(n, 95)))
	require.NoError(t, tbl.SetFeature("bb_upper", constant(n, 105)))
	require.NoError(t, tbl.SetFeature("bb_middle", constant(n, 100)))

	cfg := defaultMeanReversion()
	cfg.Enabled = true
	s := NewMeanReversion(cfg)

	sigs, err := s.GenerateSignals(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, neutralSeries(n), sigs)
}

func TestBuildAndByName(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.TrendEMA.Enabled = true
	cfg.VolatilityOverlay.Enabled = true

	built := Build(cfg)
	require.Len(t, built, 2)
	assert.Equal(t, "trend_ema", built[0].Name())
	assert.Equal(t, "volatility_overlay", built[1].Name())
	assert.False(t, IsOverlay(built[0]))
	assert.True(t, IsOverlay(built[1]))

	_, err := ByName("nope", cfg)
	assert.Error(t, err)

	s, err := ByName("mean_reversion", cfg)
	require.NoError(t, err)
	assert.Equal(t, "mean_reversion", s.Name())
}
