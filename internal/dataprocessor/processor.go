package dataprocessor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/invoice-analysis/backend/internal/models"
)

var (
	ErrCleaning               = errors.New("data cleaning failed")
	ErrMissingRequiredColumns = errors.New("missing required columns")
	ErrInvalidInvoice         = errors.New("invalid invoice")
)

var requiredColumns = []string{models.ColInvoiceID, models.ColAmount}

// dateColumns are coerced in this order.
var dateColumns = []string{models.ColDueDate, models.ColInvoiceDate}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
}

type Processor struct {
	Validator *validator.Validate
	Logger    zerolog.Logger

	validationErrors []string
}

func New(logger zerolog.Logger) *Processor {
	return &Processor{
		Validator: validator.New(),
		Logger:    logger,
	}
}

// ProcessData cleans raw and checks that the required columns exist.
// Cleaning failures are recorded in the validation log; a missing required
// column is returned without being recorded.
func (p *Processor) ProcessData(raw models.RawTable) (*models.Table, error) {
	table, err := p.clean(raw)
	if err != nil {
		p.Logger.Error().Err(err).Msg("error processing data")
		return nil, err
	}

	var missing []string
	for _, c := range requiredColumns {
		if !table.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("%w: %s", ErrMissingRequiredColumns, strings.Join(missing, ", "))
		p.Logger.Error().Err(err).Msg("error processing data")
		return nil, err
	}

	p.Logger.Debug().
		Int("rows_in", rawLen(raw)).
		Int("rows_out", table.Len()).
		Msg("data processed")
	return table, nil
}

// ValidationErrors returns the cleaning errors seen so far, oldest first.
func (p *Processor) ValidationErrors() []string {
	out := make([]string, len(p.validationErrors))
	copy(out, p.validationErrors)
	return out
}

// ValidateInvoices converts a cleaned table into typed invoices and checks
// each one against its struct constraints.
func (p *Processor) ValidateInvoices(t *models.Table) ([]models.Invoice, error) {
	invoices, err := t.Invoices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
	}
	for i := range invoices {
		if err := p.Validator.Struct(invoices[i]); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidInvoice, i, err)
		}
	}
	return invoices, nil
}

func (p *Processor) clean(raw models.RawTable) (*models.Table, error) {
	table, err := buildTable(raw)
	if err == nil {
		err = coerceDates(table)
	}
	if err != nil {
		p.validationErrors = append(p.validationErrors, fmt.Sprintf("Data cleaning error: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrCleaning, err)
	}
	dropMissing(table)
	return table, nil
}

func buildTable(raw models.RawTable) (*models.Table, error) {
	cols := raw.OrderedColumns()
	n := -1
	for _, c := range cols {
		if n == -1 {
			n = len(raw[c])
			continue
		}
		if len(raw[c]) != n {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c, len(raw[c]), n)
		}
	}
	if n < 0 {
		n = 0
	}

	t := &models.Table{Columns: cols, Rows: make([]models.Row, n)}
	for i := 0; i < n; i++ {
		row := make(models.Row, len(cols))
		for _, c := range cols {
			row[c] = raw[c][i]
		}
		t.Rows[i] = row
	}
	return t, nil
}

func coerceDates(t *models.Table) error {
	for _, c := range dateColumns {
		if !t.HasColumn(c) {
			return fmt.Errorf("column %q not found", c)
		}
		for i, row := range t.Rows {
			v, err := toDate(row[c])
			if err != nil {
				return fmt.Errorf("column %q row %d: %w", c, i, err)
			}
			row[c] = v
		}
	}
	return nil
}

// toDate returns nil for missing cells so they are dropped afterwards.
func toDate(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return x, nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return nil, nil
		}
		return *x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d, nil
			}
		}
		return nil, fmt.Errorf("unknown date format %q", s)
	}
	if models.IsMissing(v) {
		return nil, nil
	}
	return nil, fmt.Errorf("cannot convert %T to date", v)
}

func dropMissing(t *models.Table) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		complete := true
		for _, c := range t.Columns {
			if models.IsMissing(row[c]) {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
}

func rawLen(raw models.RawTable) int {
	for _, v := range raw {
		return len(v)
	}
	return 0
}
