package ai

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/invoice-analysis/backend/internal/models"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

// linearTable builds rows whose delay is exactly 0.5*(due-invoice) - 5 days.
func linearTable() *models.Table {
	terms := []int{30, 45, 14, 60, 21, 90, 10, 30}
	t := &models.Table{Columns: []string{"invoice_id", "amount", "invoice_date", "due_date", "delay_days"}}
	for i, term := range terms {
		inv := base.AddDate(0, 0, i*7)
		t.Rows = append(t.Rows, models.Row{
			"invoice_id":   "INV",
			"amount":       1000.0,
			"invoice_date": inv,
			"due_date":     inv.AddDate(0, 0, term),
			"delay_days":   0.5*float64(term) - 5,
		})
	}
	return t
}

// netTable builds n invoices spaced step days apart, all due term days after
// issue, with delay_days = slope*i.
func netTable(n, step, term int, slope float64) *models.Table {
	t := &models.Table{Columns: []string{"invoice_id", "amount", "invoice_date", "due_date", "delay_days"}}
	for i := 0; i < n; i++ {
		inv := base.AddDate(0, 0, i*step)
		t.Rows = append(t.Rows, models.Row{
			"invoice_id":   "INV",
			"amount":       1000.0,
			"invoice_date": inv,
			"due_date":     inv.AddDate(0, 0, term),
			"delay_days":   slope * float64(i),
		})
	}
	return t
}

func trainedAgent(t *testing.T) *Agent {
	t.Helper()
	a := New(DefaultPolicy(), zerolog.Nop())
	if err := a.Train(linearTable()); err != nil {
		t.Fatalf("train: %v", err)
	}
	return a
}

func TestAnalyzeBeforeTrainFails(t *testing.T) {
	a := New(DefaultPolicy(), zerolog.Nop())
	if a.State() != StateUntrained {
		t.Fatalf("expected untrained agent, got %s", a.State())
	}

	_, err := a.AnalyzeInvoice(models.Invoice{ID: "INV-1", InvoiceDate: base, DueDate: base.AddDate(0, 0, 30)})
	if !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
	if _, _, err := a.Coefficients(); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained from Coefficients, got %v", err)
	}
}

func TestTrainReproducesLinearFunction(t *testing.T) {
	a := trainedAgent(t)
	if a.State() != StateTrained {
		t.Fatalf("expected trained agent, got %s", a.State())
	}

	inv := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	raw, err := a.Predict(inv, inv.AddDate(0, 0, 40))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !near(raw, 15, 1e-6) {
		t.Fatalf("expected 15 days for a 40 day term, got %v", raw)
	}

	_, weights, err := a.Coefficients()
	if err != nil {
		t.Fatalf("coefficients: %v", err)
	}
	if !near(weights[0], -0.5, 1e-6) || !near(weights[1], 0.5, 1e-6) {
		t.Fatalf("expected weights [-0.5 0.5], got %v", weights)
	}

	r2, err := a.R2()
	if err != nil || !near(r2, 1, 1e-9) {
		t.Fatalf("expected r2 of 1, got %v (%v)", r2, err)
	}
}

func TestAnalyzeInvoice(t *testing.T) {
	a := trainedAgent(t)
	inv := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	res, err := a.AnalyzeInvoice(models.Invoice{
		ID:          "INV-9",
		Amount:      decimal.NewFromInt(2_000_000),
		InvoiceDate: inv,
		DueDate:     inv.AddDate(0, 0, 90),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.InvoiceID != "INV-9" || res.PredictedDelay != 40 || res.OptimalPaymentTermDays != 60 {
		t.Fatalf("unexpected analysis %+v", res)
	}
	if !near(res.RiskScore, 0.7*40+0.3*2, 1e-9) {
		t.Fatalf("expected risk 28.6, got %v", res.RiskScore)
	}
}

func TestTermFollowsRoundedDelay(t *testing.T) {
	a := New(DefaultPolicy(), zerolog.Nop())
	if err := a.Train(netTable(10, 1, 30, 0.1)); err != nil {
		t.Fatalf("train: %v", err)
	}

	inv := base.AddDate(0, 0, 154)
	raw, err := a.Predict(inv, inv.AddDate(0, 0, 30))
	if err != nil || !near(raw, 15.4, 1e-6) {
		t.Fatalf("expected raw prediction 15.4, got %v (%v)", raw, err)
	}

	res, err := a.AnalyzeInvoice(models.Invoice{ID: "INV-15", Amount: decimal.NewFromInt(1000), InvoiceDate: inv, DueDate: inv.AddDate(0, 0, 30)})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	// 15.4 rounds to 15, which is not above the medium threshold.
	if res.PredictedDelay != 15 || res.OptimalPaymentTermDays != 15 {
		t.Fatalf("expected delay 15 with a 15 day term, got %+v", res)
	}
	if !near(res.RiskScore, 0.7*15+0.3*0.001, 1e-9) {
		t.Fatalf("expected risk from the rounded delay, got %v", res.RiskScore)
	}
}

func TestTrainOnSingleTermData(t *testing.T) {
	// Every invoice is net-30, so due_date moves in lockstep with invoice_date.
	a := New(DefaultPolicy(), zerolog.Nop())
	if err := a.Train(netTable(10, 7, 30, 1)); err != nil {
		t.Fatalf("train on net-30 data: %v", err)
	}

	inv := base.AddDate(0, 0, 12*7)
	raw, err := a.Predict(inv, inv.AddDate(0, 0, 30))
	if err != nil || !near(raw, 12, 1e-6) {
		t.Fatalf("expected 12 days for the twelfth week, got %v (%v)", raw, err)
	}

	// The minimum-norm fit splits the slope evenly across both dates.
	_, weights, err := a.Coefficients()
	if err != nil {
		t.Fatalf("coefficients: %v", err)
	}
	if !near(weights[0], 1.0/14, 1e-9) || !near(weights[1], 1.0/14, 1e-9) {
		t.Fatalf("expected weights of 1/14 each, got %v", weights)
	}

	off := base.AddDate(0, 0, 70)
	raw, err = a.Predict(off, off.AddDate(0, 0, 60))
	if err != nil || !near(raw, 4.5+107.0/14, 1e-6) {
		t.Fatalf("unexpected prediction off the training line: %v (%v)", raw, err)
	}
	if r2, _ := a.R2(); !near(r2, 1, 1e-9) {
		t.Fatalf("expected r2 of 1, got %v", r2)
	}
}

func TestTrainOnRepeatedDates(t *testing.T) {
	table := netTable(3, 0, 30, 2)
	a := New(DefaultPolicy(), zerolog.Nop())
	if err := a.Train(table); err != nil {
		t.Fatalf("train: %v", err)
	}
	raw, err := a.Predict(base.AddDate(0, 0, 100), base.AddDate(0, 0, 200))
	if err != nil || !near(raw, 2, 1e-9) {
		t.Fatalf("expected the mean delay of 2, got %v (%v)", raw, err)
	}

	single := netTable(1, 7, 30, 0)
	single.Rows[0]["delay_days"] = 9.0
	if err := a.Train(single); err != nil {
		t.Fatalf("train on one row: %v", err)
	}
	if raw, _ := a.Predict(base, base); !near(raw, 9, 1e-9) {
		t.Fatalf("expected 9, got %v", raw)
	}
}

func TestTrainRejectsEmptyTable(t *testing.T) {
	table := linearTable()
	table.Rows = nil

	err := New(DefaultPolicy(), zerolog.Nop()).Train(table)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrainRetainsFeatureMatrix(t *testing.T) {
	a := trainedAgent(t)
	features := a.TrainingFeatures()
	if len(features) != 8 {
		t.Fatalf("expected 8 feature rows, got %d", len(features))
	}
	if features[0][0] != 738886 || features[0][1] != 738916 {
		t.Fatalf("unexpected first row %v", features[0])
	}
	if a.TrainedAt().IsZero() {
		t.Fatalf("expected training time to be set")
	}
}

func TestTrainRejectsNonNumericLabels(t *testing.T) {
	table := linearTable()
	table.Rows[3]["delay_days"] = "12"

	a := New(DefaultPolicy(), zerolog.Nop())
	if err := a.Train(table); !errors.Is(err, ErrNonNumericLabels) {
		t.Fatalf("expected ErrNonNumericLabels, got %v", err)
	}
	if a.State() != StateUntrained {
		t.Fatalf("failed train must not change state")
	}
}

func TestTrainRequiresLabelColumn(t *testing.T) {
	table := linearTable()
	table.Columns = table.Columns[:4]

	err := New(DefaultPolicy(), zerolog.Nop()).Train(table)
	if !errors.Is(err, models.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestFailedRetrainKeepsPreviousModel(t *testing.T) {
	a := trainedAgent(t)
	bad := linearTable()
	bad.Rows[0]["delay_days"] = nil

	if err := a.Train(bad); err == nil {
		t.Fatalf("expected retrain on a nil label to fail")
	}
	if a.State() != StateTrained {
		t.Fatalf("expected previous model to stay trained")
	}

	inv := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	raw, err := a.Predict(inv, inv.AddDate(0, 0, 40))
	if err != nil || !near(raw, 15, 1e-6) {
		t.Fatalf("expected previous fit to predict 15, got %v (%v)", raw, err)
	}
}
