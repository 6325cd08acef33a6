package journal

import (
	"bytes"
	"os"
	"text/template"
	"time"
)

var reportFuncs = template.FuncMap{
	"metric": func(m map[string]float64, key string) float64 { return m[key] },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

// WriteOrg renders the run as an Org-mode note for a research journal.
func (r RunRecord) WriteOrg(path string, trades []TradeRecord) error {
	t, err := template.New("run").Funcs(reportFuncs).Parse(runOrgTemplate)
	if err != nil {
		return err
	}

	var wins, losses int
	for _, tr := range trades {
		if tr.PnL > 0 {
			wins++
		} else {
			losses++
		}
	}

	buf := new(bytes.Buffer)
	err = t.Execute(buf, struct {
		RunRecord
		Wins   int
		Losses int
		Trades []TradeRecord
	}{r, wins, losses, trades})
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

const runOrgTemplate = `
* BACKTEST: {{.Strategy}} {{.Symbol}} daily
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:SYMBOL:      {{.Symbol}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .InitialCapital}}
:END_BAL:     {{printf "%.2f" .FinalEquity}}
:RETURN_PCT:  {{printf "%.2f" (metric .Metrics "total_return")}}
:CAGR_PCT:    {{printf "%.2f" (metric .Metrics "cagr")}}
:SHARPE:      {{printf "%.2f" (metric .Metrics "sharpe")}}
:MAX_DD_PCT:  {{printf "%.2f" (metric .Metrics "max_drawdown")}}
:TRADES:      {{len .Trades}}
:WIN_RATE:    {{printf "%.2f" (metric .Metrics "win_rate")}}
:PROFIT_FAC:  {{printf "%.2f" (metric .Metrics "profit_factor")}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Total Return:     *{{printf "%.2f" (metric .Metrics "total_return")}}%*
- CAGR:             *{{printf "%.2f" (metric .Metrics "cagr")}}%*
- Sharpe:           *{{printf "%.2f" (metric .Metrics "sharpe")}}*
- Sortino:          *{{printf "%.2f" (metric .Metrics "sortino")}}*
- Calmar:           *{{printf "%.2f" (metric .Metrics "calmar")}}*
- Max Drawdown:     *{{printf "%.2f" (metric .Metrics "max_drawdown")}}%*
- Volatility:       *{{printf "%.2f" (metric .Metrics "volatility")}}%*
- Avg R Multiple:   *{{printf "%.2f" (metric .Metrics "avg_r_multiple")}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{len .Trades}} |

** Trades
| Strategy | Side | Shares | Entry | Exit | P&L | R | Reason |
|----------+------+--------+-------+------+-----+---+--------|
{{- range .Trades }}
| {{.Strategy}} | {{.Side}} | {{.Shares}} | {{printf "%.2f" .EntryPrice}} | {{printf "%.2f" .ExitPrice}} | {{printf "%.2f" .PnL}} | {{printf "%.2f" .RMultiple}} | {{.ExitReason}} |
{{- end }}
`
