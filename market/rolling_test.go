package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingMax(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 3, 2, 5, 4}
	got := RollingMax(xs, 3, 0)

	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 3.0, got[2])
	assert.Equal(t, 5.0, got[3])
	assert.Equal(t, 5.0, got[4])
}

func TestRollingMax_MinPeriodsOne(t *testing.T) {
	t.Parallel()

	got := RollingMax([]float64{2, 1, 4}, 3, 1)
	assert.Equal(t, []float64{2, 2, 4}, got)
}

func TestRollingMeanStd(t *testing.T) {
	t.Parallel()

	xs := []float64{2, 4, 6, 8}
	mean := RollingMean(xs, 2, 0)
	std := RollingStd(xs, 2, 0)

	assert.Equal(t, 3.0, mean[1])
	assert.Equal(t, 7.0, mean[3])
	assert.InDelta(t, math.Sqrt2, std[1], 1e-12)
}

func TestRollingMean_SkipsNaN(t *testing.T) {
	t.Parallel()

	xs := []float64{1, math.NaN(), 3}
	got := RollingMean(xs, 3, 2)
	assert.InDelta(t, 2.0, got[2], 1e-12)
}

func TestRollingQuantile(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 2, 3, 4, 5}
	got := RollingQuantile(xs, 5, 0, 0.5)
	assert.InDelta(t, 3.0, got[4], 1e-12)

	lo := RollingQuantile(xs, 5, 0, 0.0)
	assert.InDelta(t, 1.0, lo[4], 1e-12)
}

func TestPercentRankLast(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 2, 3, 4, 10}

	// 10 is the largest of the five values in the window.
	assert.InDelta(t, 1.0, PercentRankLast(xs, 4, 5, 5), 1e-12)

	// Not enough history: neutral rank.
	assert.InDelta(t, 0.5, PercentRankLast(xs, 2, 5, 5), 1e-12)
}

func TestShift(t *testing.T) {
	t.Parallel()

	got := Shift([]float64{1, 2, 3}, 1)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 1.0, got[1])
	assert.Equal(t, 2.0, got[2])
}

func TestClip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.8, Clip(1.2, 1.8, 2.6))
	assert.Equal(t, 2.6, Clip(3.0, 1.8, 2.6))
	assert.Equal(t, 2.0, Clip(2.0, 1.8, 2.6))
}
