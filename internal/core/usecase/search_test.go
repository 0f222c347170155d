package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

type fakeCatalogReader struct {
	products []domain.CatalogProduct
	err      error
	calls    int
}

func (f *fakeCatalogReader) ListProducts(ctx context.Context) ([]domain.CatalogProduct, error) {
	f.calls++
	return f.products, f.err
}

type fakeReranker struct {
	analyses []domain.AIAnalysis
	err      error
	calls    int
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, contextHint string) ([]domain.AIAnalysis, error) {
	f.calls++
	return f.analyses, f.err
}

func TestSearchBlendsAIScores(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	reranker := &fakeReranker{analyses: []domain.AIAnalysis{
		{Code: "001", Score: 95, Confidence: domain.ConfidenceHigh, Justification: "mesmo produto", ExactMatch: true},
	}}
	uc := NewHybridSearchUseCase(catalog, reranker, Vocabulary{}, SearchConfig{})

	result, err := uc.Search(context.Background(), "CERA LIQUIDA INCOLOR 750ML", 10, true, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Metrics.AIUsed {
		t.Error("AIUsed = false, want true")
	}
	if reranker.calls != 1 {
		t.Errorf("reranker calls = %d, want 1", reranker.calls)
	}

	var blended *domain.Candidate
	for i := range result.Results {
		if result.Results[i].Code == "001" {
			blended = &result.Results[i]
		}
	}
	if blended == nil {
		t.Fatal("candidate 001 missing from results")
	}
	want := clampScore(0.3*float64(blended.PreScore) + 0.7*95 + 0.5)
	if blended.FinalScore != want {
		t.Errorf("FinalScore = %d, want %d (pre=%d)", blended.FinalScore, want, blended.PreScore)
	}
	if blended.AIScore != 95 || blended.Confidence != domain.ConfidenceHigh || !blended.ExactMatch {
		t.Errorf("AI fields not merged: %+v", blended)
	}
	if result.BestMatch == nil || result.BestMatch.Code != "001" {
		t.Errorf("BestMatch = %+v, want code 001", result.BestMatch)
	}
}

func TestSearchFallsBackWhenAIFails(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	reranker := &fakeReranker{err: errors.New("model timeout")}
	uc := NewHybridSearchUseCase(catalog, reranker, Vocabulary{}, SearchConfig{})

	result, err := uc.Search(context.Background(), "CERA LIQUIDA INCOLOR 750ML", 10, true, "")
	if err != nil {
		t.Fatalf("Search must not propagate reranker errors, got %v", err)
	}
	if result.Metrics.AIUsed {
		t.Error("AIUsed = true after reranker failure")
	}
	if len(result.Results) == 0 {
		t.Fatal("expected pre-filter results")
	}
	for _, c := range result.Results {
		if c.FinalScore != c.PreScore {
			t.Errorf("candidate %q: FinalScore %d != PreScore %d", c.Code, c.FinalScore, c.PreScore)
		}
		if c.AIScore != 0 {
			t.Errorf("candidate %q carries AI score after failure", c.Code)
		}
	}
}

func TestSearchWithoutAI(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	reranker := &fakeReranker{analyses: []domain.AIAnalysis{{Code: "001", Score: 95}}}
	uc := NewHybridSearchUseCase(catalog, reranker, Vocabulary{}, SearchConfig{})

	result, err := uc.Search(context.Background(), "CERA LIQUIDA", 10, false, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Metrics.AIUsed {
		t.Error("AIUsed = true with useAI=false")
	}
	if reranker.calls != 0 {
		t.Errorf("reranker called %d times with useAI=false", reranker.calls)
	}
}

func TestSearchNoCandidatesSuggestsRegistration(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	uc := NewHybridSearchUseCase(catalog, nil, Vocabulary{}, SearchConfig{})

	result, err := uc.Search(context.Background(), "ZZZZQQQQ", 10, true, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.SuggestRegistration {
		t.Error("SuggestRegistration = false for empty candidate set")
	}
	if result.BestMatch != nil {
		t.Errorf("BestMatch = %+v, want nil", result.BestMatch)
	}
	if len(result.Results) != 0 {
		t.Errorf("Results = %+v, want empty", result.Results)
	}
}

func TestSearchThresholdGap(t *testing.T) {
	// A top score in [50,70) yields neither a best match nor a
	// registration suggestion.
	catalog := &fakeCatalogReader{products: testCatalog()}
	reranker := &fakeReranker{analyses: []domain.AIAnalysis{
		{Code: "001", Score: 60},
		{Code: "002", Score: 40},
	}}
	uc := NewHybridSearchUseCase(catalog, reranker, Vocabulary{}, SearchConfig{
		WeightPre: 0.0000001, WeightAI: 1,
	})

	result, err := uc.Search(context.Background(), "CERA LIQUIDA", 10, true, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	top := result.Results[0]
	if top.FinalScore < 50 || top.FinalScore >= 70 {
		t.Fatalf("test setup: top score %d outside [50,70)", top.FinalScore)
	}
	if result.BestMatch != nil {
		t.Errorf("BestMatch set for score %d", top.FinalScore)
	}
	if result.SuggestRegistration {
		t.Errorf("SuggestRegistration set for score %d", top.FinalScore)
	}
}

func TestSearchAISuggestRegistrationFlag(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	reranker := &fakeReranker{analyses: []domain.AIAnalysis{
		{Code: "001", Score: 80, SuggestRegistration: true},
	}}
	uc := NewHybridSearchUseCase(catalog, reranker, Vocabulary{}, SearchConfig{})

	result, err := uc.Search(context.Background(), "CERA LIQUIDA", 10, true, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.SuggestRegistration {
		t.Error("SuggestRegistration flag from AI not propagated")
	}
}

func TestSearchLoadsCatalogOnce(t *testing.T) {
	catalog := &fakeCatalogReader{products: testCatalog()}
	uc := NewHybridSearchUseCase(catalog, nil, Vocabulary{}, SearchConfig{})

	for i := 0; i < 3; i++ {
		if _, err := uc.Search(context.Background(), "CERA", 5, false, ""); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if catalog.calls != 1 {
		t.Errorf("catalog loaded %d times, want 1", catalog.calls)
	}
}

func TestSearchCatalogErrorSurfaces(t *testing.T) {
	catalog := &fakeCatalogReader{err: errors.New("connection refused")}
	uc := NewHybridSearchUseCase(catalog, nil, Vocabulary{}, SearchConfig{})

	if _, err := uc.Search(context.Background(), "CERA", 5, false, ""); err == nil {
		t.Fatal("expected error when catalog load fails")
	}
}
