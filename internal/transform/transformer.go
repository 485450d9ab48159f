package transform

import (
	"errors"
	"fmt"

	"github.com/jeovahfialho/t212-digrin/internal/report"
)

const (
	ColumnAction = "Action"
	ColumnTicker = "Ticker"
)

var ErrMissingColumn = errors.New("coluna obrigatória ausente")

var defaultActions = []string{
	"Market buy",
	"Market sell",
}

var defaultBlacklist = []string{
	"VNTRF", // stock split
	"BRK.A", // not listed downstream
}

var defaultTickerMap = map[string]string{
	"VWCE": "VWCE.DE",
	"VUAA": "VUAA.DE",
	"SXRV": "SXRV.DE",
	"ZPRV": "ZPRV.DE",
	"ZPRX": "ZPRX.DE",
	"MC":   "MC.PA",
	"ASML": "ASML.AS",
	"CSPX": "CSPX.L",
	"EISU": "EISU.L",
	"IITU": "IITU.L",
	"IUHC": "IUHC.L",
	"NDIA": "NDIA.L",
	"NUKL": "NUKL.DE",
	"AVWS": "AVWS.DE",
}

// Rules are the fixed tables the transformer applies.
type Rules struct {
	Actions   map[string]struct{}
	Blacklist map[string]struct{}
	TickerMap map[string]string
}

func DefaultRules() Rules {
	r := Rules{
		Actions:   make(map[string]struct{}, len(defaultActions)),
		Blacklist: make(map[string]struct{}, len(defaultBlacklist)),
		TickerMap: make(map[string]string, len(defaultTickerMap)),
	}
	for _, a := range defaultActions {
		r.Actions[a] = struct{}{}
	}
	for _, t := range defaultBlacklist {
		r.Blacklist[t] = struct{}{}
	}
	for k, v := range defaultTickerMap {
		r.TickerMap[k] = v
	}
	return r
}

// With returns a copy of r with extra remaps and exclusions merged over it.
func (r Rules) With(tickerMap map[string]string, blacklist []string) Rules {
	out := Rules{
		Actions:   make(map[string]struct{}, len(r.Actions)),
		Blacklist: make(map[string]struct{}, len(r.Blacklist)+len(blacklist)),
		TickerMap: make(map[string]string, len(r.TickerMap)+len(tickerMap)),
	}
	for k := range r.Actions {
		out.Actions[k] = struct{}{}
	}
	for k := range r.Blacklist {
		out.Blacklist[k] = struct{}{}
	}
	for _, t := range blacklist {
		out.Blacklist[t] = struct{}{}
	}
	for k, v := range r.TickerMap {
		out.TickerMap[k] = v
	}
	for k, v := range tickerMap {
		out.TickerMap[k] = v
	}
	return out
}

type Transformer struct {
	rules Rules
}

func NewTransformer(rules Rules) *Transformer {
	return &Transformer{rules: rules}
}

// Keep reports whether a row with this action and ticker survives filtering.
func (t *Transformer) Keep(action, ticker string) bool {
	if _, ok := t.rules.Actions[action]; !ok {
		return false
	}
	_, blocked := t.rules.Blacklist[ticker]
	return !blocked
}

func (t *Transformer) Remap(ticker string) string {
	if mapped, ok := t.rules.TickerMap[ticker]; ok {
		return mapped
	}
	return ticker
}

// Transform keeps buy and sell rows whose ticker is not excluded, remaps
// tickers and normalizes column types. Row order is preserved and in is not
// modified.
func (t *Transformer) Transform(in *report.Table) (*report.Table, error) {
	actionCol := in.Index(ColumnAction)
	if actionCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnAction)
	}
	tickerCol := in.Index(ColumnTicker)
	if tickerCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnTicker)
	}

	out := &report.Table{
		Columns: append([]report.Column(nil), in.Columns...),
		Rows:    make([]report.Row, 0, len(in.Rows)),
	}

	for _, row := range in.Rows {
		if len(row) <= actionCol || len(row) <= tickerCol {
			return nil, fmt.Errorf("%w: linha com %d colunas", ErrMissingColumn, len(row))
		}

		ticker := row[tickerCol].String()
		if !t.Keep(row[actionCol].String(), ticker) {
			continue
		}

		kept := append(report.Row(nil), row...)
		if mapped := t.Remap(ticker); mapped != ticker {
			kept[tickerCol] = report.Text(mapped)
		}
		out.Rows = append(out.Rows, kept)
	}

	return out.Normalize(), nil
}
