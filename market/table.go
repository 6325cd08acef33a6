package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Canonical price columns every bar table must carry.
var priceColumns = []string{"open", "high", "low", "close", "volume"}

// Bar is one row of a daily price table.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Table is a column-oriented, time-indexed bar table. It is built once before
// a simulation and never mutated during it; the engine walks it with a plain
// index instead of slicing per bar.
type Table struct {
	Times  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	features map[string][]float64
	present  map[string]bool
}

// Context holds auxiliary bar tables keyed by symbol (e.g. a broad-market
// index and a volatility index) for regime-aware strategies.
type Context map[string]*Table

// MissingColumnError reports required columns absent from a table.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// NewTable builds a table from bars. Timestamps must be strictly increasing.
func NewTable(bars []Bar) (*Table, error) {
	t := &Table{
		Times:    make([]time.Time, len(bars)),
		Open:     make([]float64, len(bars)),
		High:     make([]float64, len(bars)),
		Low:      make([]float64, len(bars)),
		Close:    make([]float64, len(bars)),
		Volume:   make([]float64, len(bars)),
		features: make(map[string][]float64),
		present:  make(map[string]bool),
	}
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("bar %d: timestamp %s not after %s", i, b.Time, bars[i-1].Time)
		}
		t.Times[i] = b.Time
		t.Open[i] = b.Open
		t.High[i] = b.High
		t.Low[i] = b.Low
		t.Close[i] = b.Close
		t.Volume[i] = b.Volume
	}
	for _, c := range priceColumns {
		t.present[c] = true
	}
	return t, nil
}

// FromColumns builds a table from named columns. Price columns may be absent;
// Require reports them later so strategy validation can fail the run.
func FromColumns(times []time.Time, columns map[string][]float64) (*Table, error) {
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("row %d: timestamp %s not after %s", i, times[i], times[i-1])
		}
	}
	t := &Table{
		Times:    times,
		Open:     make([]float64, len(times)),
		High:     make([]float64, len(times)),
		Low:      make([]float64, len(times)),
		Close:    make([]float64, len(times)),
		Volume:   make([]float64, len(times)),
		features: make(map[string][]float64),
		present:  make(map[string]bool),
	}
	for name, vals := range columns {
		if len(vals) != len(times) {
			return nil, fmt.Errorf("column %q: %d values for %d rows", name, len(vals), len(times))
		}
		switch name {
		case "open":
			t.Open = vals
		case "high":
			t.High = vals
		case "low":
			t.Low = vals
		case "close":
			t.Close = vals
		case "volume":
			t.Volume = vals
		default:
			t.features[name] = vals
		}
		t.present[name] = true
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.Times) }

// At returns the bar at index i.
func (t *Table) At(i int) Bar {
	return Bar{
		Time:   t.Times[i],
		Open:   t.Open[i],
		High:   t.High[i],
		Low:    t.Low[i],
		Close:  t.Close[i],
		Volume: t.Volume[i],
	}
}

// SetFeature attaches a derived feature column (atr, ema_55, ...).
func (t *Table) SetFeature(name string, vals []float64) error {
	if len(vals) != t.Len() {
		return fmt.Errorf("feature %q: %d values for %d rows", name, len(vals), t.Len())
	}
	t.features[name] = vals
	t.present[name] = true
	return nil
}

// Feature returns a feature column by name.
func (t *Table) Feature(name string) ([]float64, bool) {
	f, ok := t.features[name]
	return f, ok
}

// HasColumns reports whether every named column (price or feature) exists.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if !t.present[n] {
			return false
		}
	}
	return true
}

// FeatureNames returns attached feature column names, sorted.
func (t *Table) FeatureNames() []string {
	names := make([]string, 0, len(t.features))
	for n := range t.features {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Require returns a *MissingColumnError if any named column is absent.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.present[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnError{Columns: missing}
	}
	return nil
}

// RequirePrices validates the open/high/low/close/volume contract.
func (t *Table) RequirePrices() error {
	return t.Require(priceColumns...)
}

// IndexByTime maps each timestamp to its row index.
func (t *Table) IndexByTime() map[time.Time]int {
	m := make(map[time.Time]int, t.Len())
	for i, ts := range t.Times {
		m[ts] = i
	}
	return m
}
