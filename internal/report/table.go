package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindDecimal
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// Value is one cell. Null cells carry no value regardless of Kind.
type Value struct {
	Kind   Kind
	Null   bool
	Text   string
	Number decimal.Decimal
	Bool   bool
}

func Null(kind Kind) Value {
	return Value{Kind: kind, Null: true}
}

func Text(s string) Value {
	if s == "" {
		return Null(KindText)
	}
	return Value{Kind: KindText, Text: s}
}

func Number(d decimal.Decimal) Value {
	kind := KindDecimal
	if d.IsInteger() {
		kind = KindInteger
	}
	return Value{Kind: kind, Number: d}
}

func Boolean(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Kind {
	case KindInteger, KindDecimal:
		return v.Number.String()
	case KindBoolean:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		return v.Text
	}
}

func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return v.Null == o.Null && v.Kind == o.Kind
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInteger, KindDecimal:
		return v.Number.Equal(o.Number)
	case KindBoolean:
		return v.Bool == o.Bool
	default:
		return v.Text == o.Text
	}
}

type Column struct {
	Name string
	Kind Kind
}

type Row []Value

// Table is a decoded report: a header and rows in file order.
type Table struct {
	Columns []Column
	Rows    []Row
}

// Index returns the position of the column named name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone copies the table so the copy can be changed without touching t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

func (t *Table) Equal(o *Table) bool {
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			if !t.Rows[i][j].Equal(o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// Normalize gives every column the most specific kind all of its non-null
// cells agree on: boolean, then integer, then decimal, falling back to text.
// Values are not changed, only their representation.
func (t *Table) Normalize() *Table {
	out := &Table{
		Columns: make([]Column, len(t.Columns)),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i := range t.Rows {
		out.Rows[i] = make(Row, len(t.Columns))
	}

	for col, c := range t.Columns {
		kind := inferKind(t.Rows, col)
		out.Columns[col] = Column{Name: c.Name, Kind: kind}
		for i, r := range t.Rows {
			out.Rows[i][col] = coerce(cell(r, col), kind)
		}
	}
	return out
}

func cell(r Row, col int) Value {
	if col < len(r) {
		return r[col]
	}
	return Null(KindText)
}

func inferKind(rows []Row, col int) Kind {
	isBool, isNumber, isInteger := true, true, true
	seen := false

	for _, r := range rows {
		v := cell(r, col)
		if v.Null {
			continue
		}
		seen = true
		s := v.String()

		if _, ok := parseBool(s); !ok {
			isBool = false
		}
		if isNumber {
			d, err := decimal.NewFromString(s)
			if err != nil {
				isNumber, isInteger = false, false
			} else if !d.IsInteger() {
				isInteger = false
			}
		}
		if !isBool && !isNumber {
			break
		}
	}

	switch {
	case !seen:
		return KindText
	case isBool:
		return KindBoolean
	case isInteger:
		return KindInteger
	case isNumber:
		return KindDecimal
	default:
		return KindText
	}
}

func coerce(v Value, kind Kind) Value {
	if v.Null {
		return Null(kind)
	}
	s := v.String()
	switch kind {
	case KindBoolean:
		b, _ := parseBool(s)
		return Boolean(b)
	case KindInteger, KindDecimal:
		d := decimal.RequireFromString(s)
		return Value{Kind: kind, Number: d}
	default:
		return Value{Kind: KindText, Text: s}
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
