package ports

import (
	"context"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

// AnalyzeRequest carries the inputs of one product analysis.
type AnalyzeRequest struct {
	Description  string
	SupplierCode string
	ContextHint  string
	AutoRegister bool
	Debug        bool
}

// ProductSearcher is the inbound contract for hybrid catalog search.
type ProductSearcher interface {
	Search(ctx context.Context, query string, limit int, useAI bool, contextHint string) (*domain.SearchResult, error)
}

// ProductAnalyzer is the inbound contract for the classification
// decision service. Analyze never fails: errors are reported inside
// the outcome.
type ProductAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) domain.AnalysisOutcome
	AnalyzeBatch(ctx context.Context, items []domain.BatchItem, autoRegister bool) domain.BatchResult
}
