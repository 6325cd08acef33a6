package risk

import "math"

// Sizer converts a risk budget and stop distance into a share quantity. It is
// a pure value: identical inputs always produce identical outputs.
type Sizer struct {
	// PerTradeRiskPct is the percent of equity risked per trade. The engine
	// refreshes this from the Manager before each entry so drawdown
	// throttling takes effect.
	PerTradeRiskPct float64

	// StopATRMult is the default stop distance in ATR multiples, used when a
	// caller passes no override.
	StopATRMult float64
}

// Size returns the share count for an entry, zero when the stop distance or
// the rounded size degenerates. Zero is a legitimate "skip this entry"
// outcome, not an error.
func (s Sizer) Size(price, atr, equity, sizeMult, stopMult float64) int {
	if stopMult <= 0 {
		stopMult = s.StopATRMult
	}
	stopDistance := atr * stopMult
	if stopDistance <= 0 {
		return 0
	}
	riskAmount := equity * (s.PerTradeRiskPct / 100.0)
	shares := riskAmount / stopDistance * sizeMult
	if shares <= 0 || math.IsNaN(shares) || math.IsInf(shares, 0) {
		return 0
	}
	return int(math.Floor(shares))
}

// StopPrice places the initial stop a multiple of ATR away from entry, below
// for longs and above for shorts.
func (s Sizer) StopPrice(entry, atr float64, signal int, stopMult float64) float64 {
	if stopMult <= 0 {
		stopMult = s.StopATRMult
	}
	distance := atr * stopMult
	if signal > 0 {
		return entry - distance
	}
	return entry + distance
}
