package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invoice-analysis/backend/internal/ai"
	"github.com/invoice-analysis/backend/internal/models"
)

var ErrNoInvoices = errors.New("no invoices left after cleaning")

type Cleaner interface {
	ProcessData(raw models.RawTable) (*models.Table, error)
	ValidateInvoices(t *models.Table) ([]models.Invoice, error)
}

type Model interface {
	ai.Trainer
	ai.Analyzer
}

type Decider interface {
	ApplyBusinessRules(analysis models.AnalysisResult) (models.Decision, error)
}

// Service runs raw records through cleaning, the delay model and the
// decision engine. Any failure aborts the whole call.
type Service struct {
	Processor Cleaner
	Agent     Model
	Engine    Decider
	Logger    zerolog.Logger
}

type RunSummary struct {
	RunID     string            `json:"run_id"`
	Decisions []models.Decision `json:"decisions"`
	Events    []map[string]any  `json:"events"`
	Counts    map[string]any    `json:"counts"`
}

// Train cleans raw training records and fits the delay model on them.
func (s *Service) Train(ctx context.Context, raw models.RawTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	table, err := s.Processor.ProcessData(raw)
	if err != nil {
		return fmt.Errorf("process training data: %w", err)
	}
	if table.Len() == 0 {
		return ErrNoInvoices
	}
	if err := s.Agent.Train(table); err != nil {
		return fmt.Errorf("train model: %w", err)
	}
	return nil
}

// Decide produces one decision per clean invoice in raw.
func (s *Service) Decide(ctx context.Context, raw models.RawTable) (RunSummary, error) {
	runID := uuid.NewString()
	logger := s.Logger.With().Str("run_id", runID).Logger()
	start := time.Now()

	summary := RunSummary{RunID: runID, Counts: map[string]any{}}

	table, err := s.Processor.ProcessData(raw)
	if err != nil {
		return RunSummary{}, fmt.Errorf("process invoices: %w", err)
	}
	invoices, err := s.Processor.ValidateInvoices(table)
	if err != nil {
		return RunSummary{}, fmt.Errorf("validate invoices: %w", err)
	}
	if len(invoices) == 0 {
		return RunSummary{}, ErrNoInvoices
	}

	rowsIn := rawRows(raw)
	summary.Events = append(summary.Events, map[string]any{
		"type":    "cleaning",
		"message": "Invoices ready for analysis",
		"rows_in": rowsIn,
		"count":   len(invoices),
		"dropped": rowsIn - len(invoices),
		"time":    time.Now().UTC(),
	})

	var (
		riskTotal float64
		maxDelay  int
		terms     = map[string]int{}
	)
	for i, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		analysis, err := s.Agent.AnalyzeInvoice(inv)
		if err != nil {
			return RunSummary{}, fmt.Errorf("analyze invoice %s: %w", inv.ID, err)
		}
		decision, err := s.Engine.ApplyBusinessRules(analysis)
		if err != nil {
			return RunSummary{}, fmt.Errorf("decide invoice %s: %w", inv.ID, err)
		}
		summary.Decisions = append(summary.Decisions, decision)

		riskTotal += decision.RiskScore
		if i == 0 || analysis.PredictedDelay > maxDelay {
			maxDelay = analysis.PredictedDelay
		}
		terms[strconv.Itoa(decision.PaymentTermDays)]++
	}

	summary.Events = append(summary.Events, map[string]any{
		"type":       "decisions",
		"message":    "Decisions complete",
		"count":      len(summary.Decisions),
		"elapsed_ms": time.Since(start).Milliseconds(),
		"time":       time.Now().UTC(),
	})

	summary.Counts["invoices_processed"] = len(summary.Decisions)
	summary.Counts["rows_dropped"] = rowsIn - len(invoices)
	summary.Counts["payment_terms"] = terms
	summary.Counts["avg_risk_score"] = riskTotal / float64(len(summary.Decisions))
	summary.Counts["max_predicted_delay"] = maxDelay

	logger.Info().
		Int("invoices", len(summary.Decisions)).
		Dur("elapsed", time.Since(start)).
		Msg("run finished")
	return summary, nil
}

func rawRows(raw models.RawTable) int {
	n := 0
	for _, col := range raw {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}
