package transform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/t212-digrin/internal/report"
)

func decode(t testing.TB, csv string) *report.Table {
	t.Helper()
	table, err := report.NewCodec().Decode(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func column(table *report.Table, name string) []string {
	col := table.Index(name)
	values := make([]string, len(table.Rows))
	for i, r := range table.Rows {
		values[i] = r[col].String()
	}
	return values
}

func TestTransform_Example(t *testing.T) {
	in := decode(t, "Action,Ticker\nMarket buy,VWCE\nDividend,AAPL\nMarket sell,BRK.A\n")

	out, err := NewTransformer(DefaultRules()).Transform(in)
	require.NoError(t, err)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, []string{"Market buy"}, column(out, "Action"))
	assert.Equal(t, []string{"VWCE.DE"}, column(out, "Ticker"))
}

func TestTransform_FilterAndRemap(t *testing.T) {
	in := decode(t, strings.Join([]string{
		"Action,Time,Ticker,No. of shares,Total",
		"Deposit,2024-01-01 08:00:00,,,500",
		"Market buy,2024-01-02 09:00:00,CSPX,0.5,250.10",
		"Interest on cash,2024-01-03 00:00:00,,,0.12",
		"Market buy,2024-01-04 09:00:00,VNTRF,10,5.00",
		"Market sell,2024-01-05 10:00:00,AAPL,1,180.00",
		"Limit buy,2024-01-06 10:00:00,MSFT,1,370.00",
		"Market sell,2024-01-07 11:00:00,MC,2,1500.00",
		"market buy,2024-01-08 11:00:00,ASML,1,600.00",
	}, "\n") + "\n")

	out, err := NewTransformer(DefaultRules()).Transform(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"CSPX.L", "AAPL", "MC.PA"}, column(out, "Ticker"))
	assert.Equal(t, []string{"2024-01-02 09:00:00", "2024-01-05 10:00:00", "2024-01-07 11:00:00"}, column(out, "Time"))
	assert.Equal(t, []string{"250.1", "180", "1500"}, column(out, "Total"))
	assert.Equal(t, report.KindDecimal, out.Columns[out.Index("Total")].Kind)

	// input untouched
	assert.Equal(t, "CSPX", in.Rows[1][2].String())
	assert.Len(t, in.Rows, 8)
}

func TestTransform_Idempotent(t *testing.T) {
	in := decode(t, strings.Join([]string{
		"Action,Ticker,Price / share",
		"Market buy,VWCE,108.50",
		"Market sell,NDIA,7.9",
		"Dividend (Dividend),AAPL,0.24",
		"Market buy,VUAA,95",
	}, "\n") + "\n")

	tr := NewTransformer(DefaultRules())

	once, err := tr.Transform(in)
	require.NoError(t, err)

	twice, err := tr.Transform(once)
	require.NoError(t, err)

	assert.True(t, once.Equal(twice))
}

func TestTransform_FilterAndRemapProperties(t *testing.T) {
	actions := []string{"Market buy", "Market sell", "Dividend (Ordinary)", "Deposit", "Withdrawal", "Limit buy"}
	tickers := []string{"VWCE", "BRK.A", "AAPL", "VNTRF", "MC", "TSLA", "EISU", ""}

	var sb strings.Builder
	sb.WriteString("Action,Ticker,ID\n")
	type source struct{ action, ticker, id string }
	var rows []source
	for i := 0; i < 200; i++ {
		r := source{actions[(i*7)%len(actions)], tickers[(i*3)%len(tickers)], fmt.Sprintf("EOF%d", i)}
		rows = append(rows, r)
		sb.WriteString(fmt.Sprintf("%s,%s,%s\n", r.action, r.ticker, r.id))
	}

	rules := DefaultRules()
	out, err := NewTransformer(rules).Transform(decode(t, sb.String()))
	require.NoError(t, err)

	var want []string
	for _, r := range rows {
		_, action := rules.Actions[r.action]
		_, blocked := rules.Blacklist[r.ticker]
		if action && !blocked {
			want = append(want, r.id)
		}
	}

	ids := column(out, "ID")
	assert.Equal(t, want, ids)

	byID := make(map[string]source, len(rows))
	for _, r := range rows {
		byID[r.id] = r
	}
	for i, ticker := range column(out, "Ticker") {
		orig := byID[ids[i]].ticker
		if mapped, ok := rules.TickerMap[orig]; ok {
			assert.Equal(t, mapped, ticker)
		} else {
			assert.Equal(t, orig, ticker)
		}
	}
}

func TestTransform_MissingColumn(t *testing.T) {
	_, err := NewTransformer(DefaultRules()).Transform(decode(t, "Action,Name\nMarket buy,Apple\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewTransformer(DefaultRules()).Transform(decode(t, "Ticker,Name\nAAPL,Apple\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestTransform_EmptyReport(t *testing.T) {
	out, err := NewTransformer(DefaultRules()).Transform(decode(t, "Action,Ticker\n"))
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Equal(t, []string{"Action", "Ticker"}, out.Header())
}

func TestRules_With(t *testing.T) {
	base := DefaultRules()
	rules := base.With(map[string]string{"IWDA": "IWDA.AS", "VWCE": "VWCE.MI"}, []string{"GME"})

	tr := NewTransformer(rules)
	assert.Equal(t, "IWDA.AS", tr.Remap("IWDA"))
	assert.Equal(t, "VWCE.MI", tr.Remap("VWCE"))
	assert.False(t, tr.Keep("Market buy", "GME"))
	assert.False(t, tr.Keep("Market buy", "BRK.A"))

	// base tables untouched
	assert.Equal(t, "VWCE.DE", base.TickerMap["VWCE"])
	_, blocked := base.Blacklist["GME"]
	assert.False(t, blocked)
}

func BenchmarkTransform(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("Action,Time,Ticker,No. of shares,Price / share,Total\n")
	actions := []string{"Market buy", "Market sell", "Dividend (Ordinary)", "Deposit"}
	tickers := []string{"VWCE", "AAPL", "CSPX", "BRK.A"}
	for i := 0; i < 10000; i++ {
		sb.WriteString(fmt.Sprintf("%s,2024-01-15 10:00:00,%s,%d.5,%d.10,%d\n",
			actions[i%len(actions)], tickers[i%len(tickers)], 1+i%7, 20+i%30, 100+i%1000))
	}
	table := decode(b, sb.String())
	tr := NewTransformer(DefaultRules())

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := tr.Transform(table); err != nil {
			b.Fatal(err)
		}
	}
}
