package risk

import (
	"math"
	"time"
)

const epsilonRisk = 1e-6

// Trade is one open or closed position. The Manager is its sole owner and
// mutator while it is open; once closed it is never touched again.
type Trade struct {
	ID       string
	Strategy string

	// Signal is the direction: +1 long, -1 short.
	Signal int

	EntryTime  time.Time
	EntryPrice float64
	Shares     int

	// StopPrice is the initial stop; TrailingStop only ever tightens.
	StopPrice    float64
	TrailingStop float64
	StopMult     float64
	TrailingMult float64

	// InitialRiskPerShare is |entry-stop| at entry, floored to stay positive.
	InitialRiskPerShare float64
	CurrentRMultiple    float64

	IsPyramid      bool
	PyramidTrigger float64

	BarsHeld              int
	MaxAdverseExcursion   float64
	MaxFavorableExcursion float64

	ExitTime   time.Time
	ExitPrice  float64
	ExitReason string
	Closed     bool
}

func newTrade(id string, now time.Time, price float64, shares, signal int, stop float64, strategy string, stopMult, trailingMult float64, isPyramid bool) *Trade {
	t := &Trade{
		ID:           id,
		Strategy:     strategy,
		Signal:       signal,
		EntryTime:    now,
		EntryPrice:   price,
		Shares:       shares,
		StopPrice:    stop,
		TrailingStop: stop,
		StopMult:     stopMult,
		TrailingMult: trailingMult,
		IsPyramid:    isPyramid,
	}
	t.InitialRiskPerShare = math.Max(math.Abs(price-stop), epsilonRisk)
	return t
}

// PnL is the trade's profit at the given mark price.
func (t *Trade) PnL(price float64) float64 {
	if t.Signal > 0 {
		return (price - t.EntryPrice) * float64(t.Shares)
	}
	return (t.EntryPrice - price) * float64(t.Shares)
}

// Side reports "long" or "short".
func (t *Trade) Side() string {
	if t.Signal > 0 {
		return "long"
	}
	return "short"
}

// Notional is the position's entry value.
func (t *Trade) Notional() float64 {
	return t.EntryPrice * float64(t.Shares)
}

// UpdateTrailingStop recomputes the trailing stop at the given price and ATR.
// The stop only moves in the favorable direction: up for longs, down for
// shorts.
func (t *Trade) UpdateTrailingStop(price, atr, defaultTrailingMult float64) {
	mult := t.TrailingMult
	if mult <= 0 {
		mult = defaultTrailingMult
	}
	distance := atr * mult
	if t.Signal > 0 {
		t.TrailingStop = math.Max(t.TrailingStop, price-distance)
	} else {
		t.TrailingStop = math.Min(t.TrailingStop, price+distance)
	}
}

// RealizedRMultiple is the closed trade's gain per share over its initial
// per-share risk. Zero while the trade is still open.
func (t *Trade) RealizedRMultiple() float64 {
	if !t.Closed {
		return 0
	}
	var gain float64
	if t.Signal > 0 {
		gain = t.ExitPrice - t.EntryPrice
	} else {
		gain = t.EntryPrice - t.ExitPrice
	}
	risk := math.Abs(t.EntryPrice - t.StopPrice)
	if risk <= 0 {
		return 0
	}
	return gain / risk
}
