package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/invoice-analysis/backend/internal/ai"
	"github.com/invoice-analysis/backend/internal/config"
	"github.com/invoice-analysis/backend/internal/dataprocessor"
	"github.com/invoice-analysis/backend/internal/decision"
	"github.com/invoice-analysis/backend/internal/ingest"
	"github.com/invoice-analysis/backend/internal/logging"
)

func NewFromConfig(cfg config.Config) *Service {
	return New(cfg.Policy(), logging.New(cfg.LogLevel, cfg.Env))
}

func New(policy ai.Policy, logger zerolog.Logger) *Service {
	return &Service{
		Processor: dataprocessor.New(logger.With().Str("component", "dataprocessor").Logger()),
		Agent:     ai.New(policy, logger.With().Str("component", "agent").Logger()),
		Engine:    decision.New(logger.With().Str("component", "decision").Logger()),
		Logger:    logger,
	}
}

// TrainFile trains on a CSV or XLSX file of historical invoices.
func (s *Service) TrainFile(ctx context.Context, path string) error {
	raw, err := ingest.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read training file: %w", err)
	}
	return s.Train(ctx, raw)
}

func (s *Service) DecideFile(ctx context.Context, path string) (RunSummary, error) {
	raw, err := ingest.ReadFile(path)
	if err != nil {
		return RunSummary{}, fmt.Errorf("read invoice file: %w", err)
	}
	return s.Decide(ctx, raw)
}
