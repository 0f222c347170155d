package ollama

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

// Client is a local-model re-ranking provider backed by the Ollama
// generate API. It exists for installations that cannot send catalog
// data to a hosted provider; quality depends entirely on the model
// pulled locally.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// maxCandidates mirrors the hosted providers: small local models get
// confused by long candidate lists.
const maxCandidates = 15

const systemPrompt = `Você é um especialista em matching de produtos para construção civil, EPIs e materiais.

REGRAS:
1. IGNORE marcas, certificados, códigos de modelo, tamanhos e cores
2. Produtos do mesmo tipo essencial são equivalentes (botina=botina, luva=luva)
3. Medidas base importam: parafuso 3/8 não é parafuso 1/4
4. NUNCA confunda categorias (CERA não é TINTA, SABÃO não é DETERGENTE)

SCORES: 90-100=exato, 80-89=equivalente, 70-79=possível, <70=diferente

Responda APENAS com JSON válido:
{"analise":[{"codigo":"X","score":0-100,"confianca":"ALTA|MEDIA|BAIXA","justificativa":"...","match_exato":bool}],"sugestao_cadastro":bool}`

// Rerank implements ports.Reranker.
func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.Candidate, contextHint string) ([]domain.AIAnalysis, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	var lines []string
	for _, cand := range candidates {
		lines = append(lines, fmt.Sprintf("[%s] %s", cand.Code, cand.Description))
	}
	prompt := fmt.Sprintf("%s\n\nBUSCA: %q\n\nCANDIDATOS:\n%s\n\nRetorne JSON com análise.",
		systemPrompt, query, strings.Join(lines, "\n"))
	if contextHint != "" {
		prompt += "\n\nCONTEXTO ADICIONAL: " + contextHint
	}

	content, err := c.generateJSON(ctx, prompt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAIUnavailable, "ollama.rerank", err)
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
		return nil, domain.WrapError(domain.ErrAIUnavailable, "ollama.rerank", fmt.Errorf("parse rerank json: %w", err))
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

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return "", fmt.Errorf("ollama generate status: %s", resp.Status)
		}
		return "", fmt.Errorf("ollama generate status: %s: %s", resp.Status, msg)
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
