package risk

// CostModel charges commission plus slippage and market impact, expressed as
// a per-share price adjustment that always worsens the trader's fill.
type CostModel struct {
	CommissionPerShare float64 `yaml:"commission_per_share"`
	SlippageBps        float64 `yaml:"slippage_bps"`
	MarketImpactBps    float64 `yaml:"market_impact_bps"`
}

func (c CostModel) perShare(price float64) float64 {
	return c.CommissionPerShare + price*(c.SlippageBps+c.MarketImpactBps)/10000.0
}

// EntryPrice adjusts a raw fill for entry costs: longs buy higher, shorts
// sell lower.
func (c CostModel) EntryPrice(price float64, signal int) float64 {
	if signal > 0 {
		return price + c.perShare(price)
	}
	return price - c.perShare(price)
}

// ExitPrice adjusts a raw fill for exit costs: longs sell lower, shorts buy
// higher.
func (c CostModel) ExitPrice(price float64, signal int) float64 {
	if signal > 0 {
		return price - c.perShare(price)
	}
	return price + c.perShare(price)
}
