package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrBadCell       = errors.New("bad cell value")
)

// RawTable maps a column name to its values. A nil value is a missing cell.
type RawTable map[string][]any

type Row map[string]any

// Table is a cleaned, rectangular invoice table. Columns keeps the column order
// so the schema survives cleaning untouched.
type Table struct {
	Columns []string
	Rows    []Row
}

var preferredOrder = map[string]int{
	ColInvoiceID:   0,
	ColAmount:      1,
	ColInvoiceDate: 2,
	ColDueDate:     3,
	ColDelayDays:   4,
}

// OrderedColumns returns the raw column names with the well known invoice
// columns first and everything else sorted by name.
func (r RawTable) OrderedColumns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		pi, iok := preferredOrder[cols[i]]
		pj, jok := preferredOrder[cols[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		case jok:
			return false
		}
		return cols[i] < cols[j]
	})
	return cols
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t *Table) Column(name string) ([]any, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	out := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r[name])
	}
	return out, nil
}

// Invoices converts every row into a typed Invoice. delay_days is optional.
func (t *Table) Invoices() ([]Invoice, error) {
	for _, c := range []string{ColInvoiceID, ColAmount, ColInvoiceDate, ColDueDate} {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
	}
	withDelay := t.HasColumn(ColDelayDays)

	out := make([]Invoice, 0, t.Len())
	for i, r := range t.Rows {
		inv, err := invoiceFromRow(r, withDelay)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func invoiceFromRow(r Row, withDelay bool) (Invoice, error) {
	var inv Invoice
	inv.ID = CellString(r[ColInvoiceID])

	amount, err := CellDecimal(r[ColAmount])
	if err != nil {
		return Invoice{}, fmt.Errorf("%s: %w", ColAmount, err)
	}
	inv.Amount = amount

	var ok bool
	if inv.InvoiceDate, ok = r[ColInvoiceDate].(time.Time); !ok {
		return Invoice{}, fmt.Errorf("%w: %s is %T", ErrBadCell, ColInvoiceDate, r[ColInvoiceDate])
	}
	if inv.DueDate, ok = r[ColDueDate].(time.Time); !ok {
		return Invoice{}, fmt.Errorf("%w: %s is %T", ErrBadCell, ColDueDate, r[ColDueDate])
	}

	if withDelay {
		d, ok := NumericValue(r[ColDelayDays])
		if !ok {
			return Invoice{}, fmt.Errorf("%w: %s is %T", ErrBadCell, ColDelayDays, r[ColDelayDays])
		}
		inv.DelayDays = &d
	}
	return inv, nil
}

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case time.Time:
		return x.IsZero()
	case *float64:
		return x == nil || math.IsNaN(*x)
	}
	return false
}

// NumericValue returns v as float64 when v holds a numeric Go kind or a decimal.
// Strings are never numeric, even when they look like numbers.
func NumericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case decimal.Decimal:
		return x.InexactFloat64(), true
	}
	return 0, false
}

func CellDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrBadCell, x)
		}
		return d, nil
	}
	if f, ok := NumericValue(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrBadCell, f)
		}
		return decimal.NewFromFloat(f), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %T", ErrBadCell, v)
}

func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
