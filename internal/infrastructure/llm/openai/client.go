package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client is the OpenAI chat-completions provider. It serves both the
// candidate re-ranking and the group/unit classification.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// RequestsPerMinute throttles outbound calls. Zero disables the
	// limiter.
	RequestsPerMinute int
}

func New(cfg Config, executor *resilience.Executor) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   executor,
	}
}

type rerankResponse struct {
	Analysis []struct {
		Code          string            `json:"codigo"`
		Score         int               `json:"score"`
		Confidence    domain.Confidence `json:"confianca"`
		Justification string            `json:"justificativa"`
		ExactMatch    bool              `json:"match_exato"`
	} `json:"analise"`
	SuggestRegistration bool `json:"sugestao_cadastro"`
}

// Rerank implements ports.Reranker.
func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.Candidate, contextHint string) ([]domain.AIAnalysis, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	content, err := c.completeJSON(ctx, "rerank", rerankSystemPrompt, buildRerankPrompt(query, candidates, contextHint))
	if err != nil {
		return nil, wrapAIError("openai.rerank", err)
	}

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &parsed); err != nil {
		return nil, wrapAIError("openai.rerank", fmt.Errorf("parse rerank json: %w", err))
	}

	analyses := make([]domain.AIAnalysis, 0, len(parsed.Analysis))
	for _, item := range parsed.Analysis {
		analyses = append(analyses, domain.AIAnalysis{
			Code:                item.Code,
			Score:               item.Score,
			Confidence:          item.Confidence,
			Justification:       item.Justification,
			ExactMatch:          item.ExactMatch,
			SuggestRegistration: parsed.SuggestRegistration,
		})
	}
	return analyses, nil
}

// ClassifyGroup implements ports.CategoryClassifier.
func (c *Client) ClassifyGroup(ctx context.Context, description string, groups []domain.Group) (int, string, error) {
	content, err := c.completeJSON(ctx, "classify_group", classifierSystemPrompt, buildGroupPrompt(description, groups))
	if err != nil {
		return 0, "", wrapAIError("openai.classify_group", err)
	}

	var parsed struct {
		GroupCode     int    `json:"codigo_grupo"`
		Justification string `json:"justificativa"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &parsed); err != nil {
		return 0, "", wrapAIError("openai.classify_group", fmt.Errorf("parse group json: %w", err))
	}
	return parsed.GroupCode, parsed.Justification, nil
}

// ClassifyUnit implements ports.CategoryClassifier.
func (c *Client) ClassifyUnit(ctx context.Context, description string, units []domain.Unit) (string, string, error) {
	content, err := c.completeJSON(ctx, "classify_unit", classifierSystemPrompt, buildUnitPrompt(description, units))
	if err != nil {
		return "", "", wrapAIError("openai.classify_unit", err)
	}

	var parsed struct {
		UnitCode      string `json:"codigo_unidade"`
		Justification string `json:"justificativa"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &parsed); err != nil {
		return "", "", wrapAIError("openai.classify_unit", fmt.Errorf("parse unit json: %w", err))
	}
	return parsed.UnitCode, parsed.Justification, nil
}

func (c *Client) completeJSON(ctx context.Context, operation, system, user string) (string, error) {
	endpoint := "ai.openai." + operation
	var content string
	call := func(ctx context.Context) error {
		out, err := c.chatCompletion(ctx, operation, system, user)
		if err != nil {
			return err
		}
		content = out
		return nil
	}
	if c.executor == nil {
		if err := call(ctx); err != nil {
			return "", err
		}
		return content, nil
	}
	if err := c.executor.Run(ctx, endpoint, call, classifyProviderError); err != nil {
		return "", err
	}
	return content, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
