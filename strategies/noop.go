package strategies

import "github.com/lzjiangjeff/automated-trader/market"

// Noop never signals. Useful as scaffolding in engine tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) GenerateSignals(t *market.Table, _ market.Context) ([]Signal, error) {
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	return neutralSeries(t.Len()), nil
}
