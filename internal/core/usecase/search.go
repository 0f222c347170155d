package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
)

// SearchConfig tunes the hybrid orchestrator.
type SearchConfig struct {
	// WeightPre/WeightAI blend pre-filter and AI scores.
	WeightPre float64
	WeightAI  float64
	// CandidateBudget is the fixed internal pre-filter budget,
	// independent of the caller's limit.
	CandidateBudget int
	// MatchThreshold is the minimum final score for a best match.
	MatchThreshold int
	// SuggestThreshold: below it, registration is suggested.
	SuggestThreshold int
	// DefaultLimit applies when the caller passes limit <= 0.
	DefaultLimit int
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.WeightPre <= 0 && out.WeightAI <= 0 {
		out.WeightPre = 0.3
		out.WeightAI = 0.7
	}
	if out.CandidateBudget <= 0 {
		out.CandidateBudget = 20
	}
	if out.MatchThreshold <= 0 {
		out.MatchThreshold = 70
	}
	if out.SuggestThreshold <= 0 {
		out.SuggestThreshold = 50
	}
	if out.DefaultLimit <= 0 {
		out.DefaultLimit = 10
	}
	return out
}

// HybridSearchUseCase runs the two ranking stages: deterministic
// pre-filter, then optional AI re-ranking, blended into final scores.
// The catalog snapshot and its index are materialized lazily exactly
// once and reused for the life of the process.
type HybridSearchUseCase struct {
	catalog  ports.CatalogReader
	reranker ports.Reranker
	vocab    Vocabulary
	cfg      SearchConfig

	once      sync.Once
	prefilter *PreFilter
	buildErr  error
}

func NewHybridSearchUseCase(catalog ports.CatalogReader, reranker ports.Reranker, vocab Vocabulary, cfg SearchConfig) *HybridSearchUseCase {
	if len(vocab.PrincipalTerms) == 0 {
		vocab = DefaultVocabulary()
	}
	return &HybridSearchUseCase{
		catalog:  catalog,
		reranker: reranker,
		vocab:    vocab,
		cfg:      cfg.normalize(),
	}
}

func (uc *HybridSearchUseCase) ensureIndex(ctx context.Context) error {
	uc.once.Do(func() {
		products, err := uc.catalog.ListProducts(ctx)
		if err != nil {
			uc.buildErr = fmt.Errorf("load catalog snapshot: %w", err)
			return
		}
		uc.prefilter = NewPreFilter(products, uc.vocab)
	})
	return uc.buildErr
}

// Search implements ports.ProductSearcher.
func (uc *HybridSearchUseCase) Search(ctx context.Context, query string, limit int, useAI bool, contextHint string) (*domain.SearchResult, error) {
	if err := uc.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = uc.cfg.DefaultLimit
	}

	result := &domain.SearchResult{
		Query:   query,
		Results: []domain.Candidate{},
	}

	candidates := uc.prefilter.Filter(query, uc.cfg.CandidateBudget)
	result.Metrics.PrefilterCandidates = len(candidates)
	if len(candidates) == 0 {
		result.SuggestRegistration = true
		return result, nil
	}

	if useAI && uc.reranker != nil {
		analyses, err := uc.reranker.Rerank(ctx, query, candidates, contextHint)
		if err != nil {
			// AI unavailable: keep the pre-filter scores for everyone.
			for i := range candidates {
				candidates[i].FinalScore = candidates[i].PreScore
			}
			result.Metrics.AIUsed = false
		} else {
			uc.mergeAnalyses(candidates, analyses, result)
			result.Metrics.AIUsed = true
		}
	} else {
		for i := range candidates {
			candidates[i].FinalScore = candidates[i].PreScore
		}
		result.Metrics.AIUsed = false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].FinalScore > candidates[j].FinalScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result.Results = candidates

	top := candidates[0]
	if top.FinalScore >= uc.cfg.MatchThreshold {
		best := top
		result.BestMatch = &best
	} else if top.FinalScore < uc.cfg.SuggestThreshold {
		result.SuggestRegistration = true
	}
	return result, nil
}

// mergeAnalyses joins AI output into the candidate set by code.
// Candidates the AI omitted keep their pre-filter score.
func (uc *HybridSearchUseCase) mergeAnalyses(candidates []domain.Candidate, analyses []domain.AIAnalysis, result *domain.SearchResult) {
	byCode := make(map[string]domain.AIAnalysis, len(analyses))
	for _, a := range analyses {
		byCode[a.Code] = a
	}

	for i := range candidates {
		a, ok := byCode[candidates[i].Code]
		if !ok {
			candidates[i].FinalScore = candidates[i].PreScore
			continue
		}
		candidates[i].AIScore = a.Score
		candidates[i].Confidence = a.Confidence
		candidates[i].Justification = a.Justification
		candidates[i].ExactMatch = a.ExactMatch
		candidates[i].FinalScore = clampScore(math.Round(
			float64(candidates[i].PreScore)*uc.cfg.WeightPre + float64(a.Score)*uc.cfg.WeightAI,
		))
	}

	if len(analyses) > 0 && analyses[0].SuggestRegistration {
		result.SuggestRegistration = true
	}
}

func clampScore(v float64) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return int(v)
}
