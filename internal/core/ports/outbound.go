package ports

import (
	"context"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

// CatalogReader fetches the full product catalog. No pagination is
// assumed; the engine consumes the complete set once per process.
type CatalogReader interface {
	ListProducts(ctx context.Context) ([]domain.CatalogProduct, error)
}

// CatalogWriter creates a product record and returns it with the
// code assigned by the catalog.
type CatalogWriter interface {
	CreateProduct(ctx context.Context, data domain.RegistrationData) (*domain.CatalogProduct, error)
}

// GroupReader lists the available category groups.
type GroupReader interface {
	ListGroups(ctx context.Context) ([]domain.Group, error)
}

// UnitReader lists the available units of measure.
type UnitReader interface {
	ListUnits(ctx context.Context) ([]domain.Unit, error)
}

// Reranker is the AI re-ranking capability. Implementations score the
// pre-filtered candidates against the query; on transport or parse
// failure they return an empty list so callers fall back to the
// pre-filter scores alone.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, contextHint string) ([]domain.AIAnalysis, error)
}

// CategoryClassifier chooses a group code and a unit code for a
// product description being registered. Errors are soft: the decision
// service falls back to deterministic defaults.
type CategoryClassifier interface {
	ClassifyGroup(ctx context.Context, description string, groups []domain.Group) (code int, justification string, err error)
	ClassifyUnit(ctx context.Context, description string, units []domain.Unit) (code string, justification string, err error)
}

// OutcomeStore persists analysis outcomes for audit. It lives outside
// the decision core; the core never writes outcomes itself.
type OutcomeStore interface {
	Save(ctx context.Context, outcome *domain.AnalysisOutcome) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisOutcome, error)
}

// MessageQueue publishes/consumes invoice-item analysis requests.
type MessageQueue interface {
	PublishAnalysisRequest(ctx context.Context, item domain.BatchItem) error
	SubscribeAnalysisRequests(ctx context.Context, handler func(context.Context, domain.BatchItem) error) error
}
