package metrics

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// Report is an Org-mode write-up of a backtest.
type Report struct {
	RunID     string
	Created   time.Time
	Strategy  string
	Params    string
	Dataset   string
	Timeframe string

	Summary

	Notes       []string
	NextActions []string
}

var reportFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"ratio": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(ReportOrgTemplate))

// WriteOrg renders the report to w.
func (r *Report) WriteOrg(w io.Writer) error {
	return reportTemplate.Execute(w, r)
}

// WriteOrgFile renders the report into path.
func (r *Report) WriteOrgFile(path string) error {
	buf := new(bytes.Buffer)
	if err := r.WriteOrg(buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

const ReportOrgTemplate = `* BACKTEST: {{.Strategy}}{{if .Timeframe}} {{.Timeframe}}{{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{money .InitialBalance}}
:END_EQUITY:  {{money .FinalEquity}}
:NET_PL:      {{money .NetPnL}}
:RETURN_PCT:  {{money .ReturnPct}}
:FEES:        {{money .Fees}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdown}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" .WinRate}}
:PROFIT_FAC:  {{ratio .ProfitFactor}}
:SHARPE:      {{ratio .Sharpe}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:
{{- if .Params}}

** Strategy Parameters
#+begin_example
{{.Params}}
#+end_example
{{- end}}

** Performance Summary
- Net P/L:          *{{money .NetPnL}}*
- Return:           *{{money .ReturnPct}}%*
- Fees:             *{{money .Fees}}*
- Max Drawdown:     *{{printf "%.2f" .MaxDrawdown}}%*
- Win Rate:         *{{printf "%.2f" .WinRate}}%*
- Profit Factor:    *{{ratio .ProfitFactor}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Open    | {{.Open}} |
| Total   | {{.Trades}} |
{{- if .Notes}}

** Observations
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}
{{- if .NextActions}}

** Notes / Next Actions
{{- range .NextActions}}
- [ ] {{.}}
{{- end}}
{{- end}}
`
