package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	// maxCandidates keeps the prompt small; the pre-filter already
	// ordered the set, so the tail is the least promising part.
	maxCandidates = 15
)

const systemPrompt = `Você é um especialista em matching de produtos para construção civil, EPIs e materiais.

REGRAS CRÍTICAS - FOQUE NO PRODUTO ESSENCIAL:
1. IGNORE: marcas, certificados (C.A), códigos, tamanhos, numerações, cores
2. "BOTINA NOBUCK MARLUVAS C.A 13808 N.42" = "BOTINA DE COURO" (score 85+)
3. "LUVA NITRÍLICA DANNY TAM M" = "LUVA DE PROTEÇÃO" (score 85+)
4. EPIs do mesmo tipo = equivalentes (botina=botina, luva=luva, capacete=capacete)
5. Parafusos: foque na medida base (3/8, 1/4), ignore detalhes
6. Fios/Cabos: foque na bitola (2,5mm, 4mm)

SCORES: 90-100=exato, 80-89=equivalente, 70-79=possível, <70=diferente

Responda APENAS com JSON válido:
{"analise":[{"codigo":"X","score":0-100,"confianca":"ALTA|MEDIA|BAIXA","justificativa":"...","match_exato":bool}],"sugestao_cadastro":bool}`

// Client is the Anthropic messages-API re-ranking provider. Unlike
// the OpenAI path it has no forced JSON output mode, so the answer is
// salvaged from whatever surrounds the JSON object.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Rerank implements ports.Reranker.
func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.Candidate, contextHint string) ([]domain.AIAnalysis, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	content, err := c.createMessage(ctx, buildPrompt(query, candidates, contextHint))
	if err != nil {
		return nil, domain.WrapError(domain.ErrAIUnavailable, "anthropic.rerank", err)
	}

	var parsed struct {
		Analysis []struct {
			Code          string            `json:"codigo"`
			Score         int               `json:"score"`
			Confidence    domain.Confidence `json:"confianca"`
			Justification string            `json:"justificativa"`
			ExactMatch    bool              `json:"match_exato"`
		} `json:"analise"`
		SuggestRegistration bool `json:"sugestao_cadastro"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrAIUnavailable, "anthropic.rerank", fmt.Errorf("parse rerank json: %w", err))
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

func buildPrompt(query string, candidates []domain.Candidate, contextHint string) string {
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	var lines []string
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("[%s] %s", c.Code, c.Description))
	}

	prompt := fmt.Sprintf("BUSCA: %q\n\nCANDIDATOS:\n%s\n\nRetorne JSON com análise.", query, strings.Join(lines, "\n"))
	if contextHint != "" {
		prompt += "\n\nCONTEXTO ADICIONAL: " + contextHint
	}
	return prompt
}

func (c *Client) createMessage(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": 1500,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return "", fmt.Errorf("anthropic rerank status: %s", resp.Status)
		}
		return "", fmt.Errorf("anthropic rerank status: %s: %s", resp.Status, msg)
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode rerank response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("anthropic rerank: empty content")
	}
	return strings.TrimSpace(parsed.Content[0].Text), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
