package ai

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/sajari/regression"

	"github.com/invoice-analysis/backend/internal/models"
	"github.com/invoice-analysis/backend/internal/utils"
)

type State int

const (
	StateUntrained State = iota
	StateTrained
)

func (s State) String() string {
	if s == StateTrained {
		return "trained"
	}
	return "untrained"
}

const numFeatures = 2

// Agent predicts payment delay from the invoice and due dates with an
// ordinary least squares fit. An Agent is not safe for concurrent use.
type Agent struct {
	Policy Policy
	Logger zerolog.Logger

	state     State
	center    [numFeatures]float64
	intercept float64
	weights   [numFeatures]float64
	r2        float64
	features  [][]float64
	trainedAt time.Time
}

func New(policy Policy, logger zerolog.Logger) *Agent {
	return &Agent{Policy: policy, Logger: logger}
}

func (a *Agent) State() State {
	return a.state
}

// Train fits the model on the invoice_date/due_date ordinals against the
// delay_days column. A failed call leaves the previous model in place.
func (a *Agent) Train(training *models.Table) error {
	err := a.train(training)
	if err != nil {
		a.Logger.Error().Err(err).Msg("training failed")
		return err
	}
	return nil
}

func (a *Agent) train(training *models.Table) error {
	features, err := featureMatrix(training)
	if err != nil {
		return err
	}
	labels, err := labelVector(training)
	if err != nil {
		return err
	}
	if len(features) == 0 {
		return fmt.Errorf("%w: table is empty", ErrInsufficientData)
	}

	// Ordinals sit near 740000; centering keeps the QR solve well conditioned.
	var center [numFeatures]float64
	for _, f := range features {
		for j := range center {
			center[j] += f[j]
		}
	}
	for j := range center {
		center[j] /= float64(len(features))
	}

	basis := designBasis(features)
	var (
		intercept float64
		weights   [numFeatures]float64
		r2        float64
	)
	if len(basis) == 0 {
		// Every row has the same dates, so only the mean delay can be fitted.
		for _, y := range labels {
			intercept += y
		}
		intercept /= float64(len(labels))
	} else {
		r := new(regression.Regression)
		r.SetObserved(models.ColDelayDays)
		for k, name := range basisNames(len(basis)) {
			r.SetVar(k, name)
		}
		for i, f := range features {
			r.Train(regression.DataPoint(labels[i], project(f, center, basis)))
		}
		if err := r.Run(); err != nil {
			return fmt.Errorf("fit regression: %w", err)
		}
		coeffs := r.GetCoeffs()
		for _, c := range coeffs {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return fmt.Errorf("fit regression: non-finite coefficients %v", coeffs)
			}
		}
		intercept = coeffs[0]
		for k, dir := range basis {
			for j := range weights {
				weights[j] += coeffs[k+1] * dir[j]
			}
		}
		r2 = r.R2
	}

	a.center = center
	a.intercept = intercept
	a.weights = weights
	a.r2 = r2
	a.features = features
	a.state = StateTrained
	a.trainedAt = time.Now().UTC()

	a.Logger.Info().
		Int("rows", len(features)).
		Int("rank", len(basis)).
		Float64("r2", r2).
		Msg("model trained")
	return nil
}

// AnalyzeInvoice predicts the delay for inv and derives a risk score and a
// suggested payment term from the rounded prediction.
func (a *Agent) AnalyzeInvoice(inv models.Invoice) (models.AnalysisResult, error) {
	res, err := a.analyze(inv)
	if err != nil {
		a.Logger.Error().Err(err).Str("invoice_id", inv.ID).Msg("analysis failed")
		return models.AnalysisResult{}, err
	}
	return res, nil
}

func (a *Agent) analyze(inv models.Invoice) (models.AnalysisResult, error) {
	raw, err := a.Predict(inv.InvoiceDate, inv.DueDate)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	delay := utils.RoundDays(raw)

	return models.AnalysisResult{
		InvoiceID:              inv.ID,
		PredictedDelay:         delay,
		RiskScore:              a.Policy.RiskScore(inv.Amount, delay),
		OptimalPaymentTermDays: a.Policy.SuggestTerm(inv.Amount, delay),
	}, nil
}

// Predict returns the unrounded model output for the two dates.
func (a *Agent) Predict(invoiceDate, dueDate time.Time) (float64, error) {
	if a.state != StateTrained {
		return 0, ErrModelNotTrained
	}
	f := [numFeatures]float64{float64(utils.OrdinalDay(invoiceDate)), float64(utils.OrdinalDay(dueDate))}
	v := a.intercept
	for j := range f {
		v += a.weights[j] * (f[j] - a.center[j])
	}
	return v, nil
}

// Coefficients reports the fit in terms of the raw ordinals.
func (a *Agent) Coefficients() (intercept float64, weights []float64, err error) {
	if a.state != StateTrained {
		return 0, nil, ErrModelNotTrained
	}
	intercept = a.intercept
	weights = make([]float64, numFeatures)
	for j := range weights {
		weights[j] = a.weights[j]
		intercept -= weights[j] * a.center[j]
	}
	return intercept, weights, nil
}

// R2 is zero when every training row carried the same dates.
func (a *Agent) R2() (float64, error) {
	if a.state != StateTrained {
		return 0, ErrModelNotTrained
	}
	return a.r2, nil
}

// TrainingFeatures returns a copy of the feature matrix of the last fit.
func (a *Agent) TrainingFeatures() [][]float64 {
	out := make([][]float64, len(a.features))
	for i, f := range a.features {
		out[i] = append([]float64(nil), f...)
	}
	return out
}

func (a *Agent) TrainedAt() time.Time {
	return a.trainedAt
}

func featureMatrix(t *models.Table) ([][]float64, error) {
	invoiceDates, err := t.Column(models.ColInvoiceDate)
	if err != nil {
		return nil, err
	}
	dueDates, err := t.Column(models.ColDueDate)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(invoiceDates))
	for i := range invoiceDates {
		inv, ok := invoiceDates[i].(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d is %T", models.ErrBadCell, models.ColInvoiceDate, i, invoiceDates[i])
		}
		due, ok := dueDates[i].(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d is %T", models.ErrBadCell, models.ColDueDate, i, dueDates[i])
		}
		out[i] = []float64{float64(utils.OrdinalDay(inv)), float64(utils.OrdinalDay(due))}
	}
	return out, nil
}

func labelVector(t *models.Table) ([]float64, error) {
	col, err := t.Column(models.ColDelayDays)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, v := range col {
		f, ok := models.NumericValue(v)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is %T", ErrNonNumericLabels, i, v)
		}
		out[i] = f
	}
	return out, nil
}

// designBasis returns orthonormal directions spanning the differences
// between feature points. With fewer than numFeatures directions the design
// is rank deficient (every invoice on the same payment term, say), and
// regressing on the spanned directions yields the minimum-norm least squares
// solution.
func designBasis(features [][]float64) [][]float64 {
	p0 := features[0]
	k := -1
	for i := 1; i < len(features); i++ {
		if features[i][0] != p0[0] || features[i][1] != p0[1] {
			k = i
			break
		}
	}
	if k < 0 {
		return nil
	}
	dx := features[k][0] - p0[0]
	dy := features[k][1] - p0[1]
	for _, p := range features[k+1:] {
		ex := int64(p[0] - p0[0])
		ey := int64(p[1] - p0[1])
		if int64(dx)*ey-int64(dy)*ex != 0 {
			return [][]float64{{1, 0}, {0, 1}}
		}
	}
	n := math.Hypot(dx, dy)
	return [][]float64{{dx / n, dy / n}}
}

func basisNames(rank int) []string {
	if rank == numFeatures {
		return []string{models.ColInvoiceDate, models.ColDueDate}
	}
	return []string{"date_axis"}
}

// project maps a feature row onto the basis after centering.
func project(f []float64, center [numFeatures]float64, basis [][]float64) []float64 {
	out := make([]float64, len(basis))
	for k, dir := range basis {
		for j := range dir {
			out[k] += (f[j] - center[j]) * dir[j]
		}
	}
	return out
}
