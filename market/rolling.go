package market

import (
	"math"
	"sort"
)

// Rolling window helpers over float64 series. NaN marks missing values, the
// same convention the feature pipeline uses; a window without enough valid
// observations yields NaN.

// RollingMax computes the windowed maximum. minPeriods is the number of valid
// observations required before a value is emitted (0 means the full window).
func RollingMax(xs []float64, window, minPeriods int) []float64 {
	return roll(xs, window, minPeriods, func(w []float64) float64 {
		m := math.Inf(-1)
		for _, v := range w {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// RollingMin computes the windowed minimum.
func RollingMin(xs []float64, window, minPeriods int) []float64 {
	return roll(xs, window, minPeriods, func(w []float64) float64 {
		m := math.Inf(1)
		for _, v := range w {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollingMean computes the windowed arithmetic mean.
func RollingMean(xs []float64, window, minPeriods int) []float64 {
	return roll(xs, window, minPeriods, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd computes the windowed sample standard deviation.
func RollingStd(xs []float64, window, minPeriods int) []float64 {
	return roll(xs, window, minPeriods, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(len(w))
		var ss float64
		for _, v := range w {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(len(w)-1))
	})
}

// RollingQuantile computes the windowed q-quantile (linear interpolation).
func RollingQuantile(xs []float64, window, minPeriods int, q float64) []float64 {
	return roll(xs, window, minPeriods, func(w []float64) float64 {
		s := append([]float64(nil), w...)
		sort.Float64s(s)
		if len(s) == 1 {
			return s[0]
		}
		pos := q * float64(len(s)-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo == hi {
			return s[lo]
		}
		frac := pos - float64(lo)
		return s[lo]*(1-frac) + s[hi]*frac
	})
}

// RollingRankPct computes, per index, the fraction of window values less than
// or equal to the current value (percentile rank of the newest observation).
func RollingRankPct(xs []float64, window, minPeriods int) []float64 {
	out := nans(len(xs))
	if minPeriods <= 0 {
		minPeriods = window
	}
	for i := range xs {
		if math.IsNaN(xs[i]) {
			continue
		}
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n, le := 0, 0
		for j := lo; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				continue
			}
			n++
			if xs[j] <= xs[i] {
				le++
			}
		}
		if n >= minPeriods {
			out[i] = float64(le) / float64(n)
		}
	}
	return out
}

// PercentRankLast ranks xs[i] against all valid values in the window ending
// at i. Returns 0.5 when fewer than minValid observations exist, the neutral
// percentile the engine assumes before enough history has accrued.
func PercentRankLast(xs []float64, i, window, minValid int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	if i >= len(xs) || math.IsNaN(xs[i]) {
		return 0.5
	}
	n, le := 0, 0
	for j := lo; j <= i; j++ {
		if math.IsNaN(xs[j]) {
			continue
		}
		n++
		if xs[j] <= xs[i] {
			le++
		}
	}
	if n < minValid {
		return 0.5
	}
	return clip(float64(le)/float64(n), 0, 1)
}

// Shift returns xs moved forward by n positions, the head filled with NaN.
func Shift(xs []float64, n int) []float64 {
	out := nans(len(xs))
	for i := n; i < len(xs); i++ {
		out[i] = xs[i-n]
	}
	return out
}

func roll(xs []float64, window, minPeriods int, f func([]float64) float64) []float64 {
	out := nans(len(xs))
	if window <= 0 {
		return out
	}
	if minPeriods <= 0 {
		minPeriods = window
	}
	valid := make([]float64, 0, window)
	for i := range xs {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		valid = valid[:0]
		for j := lo; j <= i; j++ {
			if !math.IsNaN(xs[j]) {
				valid = append(valid, xs[j])
			}
		}
		if len(valid) >= minPeriods {
			out[i] = f(valid)
		}
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 { return clip(v, lo, hi) }
