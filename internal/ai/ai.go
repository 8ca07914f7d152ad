package ai

import (
	"errors"

	"github.com/invoice-analysis/backend/internal/models"
)

var (
	ErrModelNotTrained  = errors.New("model not trained")
	ErrNonNumericLabels = errors.New("labels must be numeric")
	ErrInsufficientData = errors.New("no training rows")
)

type Analyzer interface {
	AnalyzeInvoice(inv models.Invoice) (models.AnalysisResult, error)
}

type Trainer interface {
	Train(training *models.Table) error
}
