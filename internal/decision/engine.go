package decision

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/invoice-analysis/backend/internal/models"
)

var (
	ErrInvalidRule     = errors.New("invalid rule")
	ErrDuplicateRule   = errors.New("rule already registered")
	ErrInvalidAnalysis = errors.New("invalid analysis result")
)

// Rule adjusts a decision in place. Returning an error rejects the decision.
type Rule func(analysis models.AnalysisResult, d *models.Decision) error

// Engine turns analysis results into final decisions. It ships with no rules;
// callers register the business rules they need.
type Engine struct {
	Logger zerolog.Logger

	rules               map[string]Rule
	optimizationContext map[string]any
	now                 func() time.Time
}

func New(logger zerolog.Logger) *Engine {
	return &Engine{
		Logger:              logger,
		rules:               map[string]Rule{},
		optimizationContext: map[string]any{},
		now:                 time.Now,
	}
}

func (e *Engine) RegisterRule(name string, r Rule) error {
	name = strings.TrimSpace(name)
	if name == "" || r == nil {
		return ErrInvalidRule
	}
	if _, ok := e.rules[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, name)
	}
	e.rules[name] = r
	return nil
}

// Rules returns the registered rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for n := range e.rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) SetContext(key string, v any) {
	e.optimizationContext[key] = v
}

func (e *Engine) Context() map[string]any {
	out := make(map[string]any, len(e.optimizationContext))
	for k, v := range e.optimizationContext {
		out[k] = v
	}
	return out
}

// ApplyBusinessRules starts from the analysis' own term and risk and runs
// every registered rule over it in name order.
func (e *Engine) ApplyBusinessRules(analysis models.AnalysisResult) (models.Decision, error) {
	d, err := e.apply(analysis)
	if err != nil {
		e.Logger.Error().Err(err).Str("invoice_id", analysis.InvoiceID).Msg("applying business rules failed")
		return models.Decision{}, err
	}
	return d, nil
}

func (e *Engine) apply(analysis models.AnalysisResult) (models.Decision, error) {
	if analysis.OptimalPaymentTermDays < 0 {
		return models.Decision{}, fmt.Errorf("%w: negative payment term %d", ErrInvalidAnalysis, analysis.OptimalPaymentTermDays)
	}
	if math.IsNaN(analysis.RiskScore) || math.IsInf(analysis.RiskScore, 0) {
		return models.Decision{}, fmt.Errorf("%w: risk score %v", ErrInvalidAnalysis, analysis.RiskScore)
	}

	d := models.Decision{
		InvoiceID:       analysis.InvoiceID,
		Analysis:        analysis,
		PaymentTermDays: analysis.OptimalPaymentTermDays,
		RiskScore:       analysis.RiskScore,
		AppliedRules:    []string{},
		Notes:           map[string]any{},
	}
	for _, name := range e.Rules() {
		if err := e.rules[name](analysis, &d); err != nil {
			return models.Decision{}, fmt.Errorf("rule %s: %w", name, err)
		}
		d.AppliedRules = append(d.AppliedRules, name)
	}
	d.DecidedAt = e.now().UTC()
	return d, nil
}
