package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

func chatContent(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{BaseURL: srv.URL, APIKey: "key-1", Model: "gpt-4o-mini"}, nil)
}

func TestRerankParsesAnalysis(t *testing.T) {
	srv := httptest.NewServer(chatContent(t, `{
		"analise": [
			{"codigo": "001", "score": 92, "confianca": "ALTA", "justificativa": "mesmo produto", "match_exato": true},
			{"codigo": "002", "score": 41, "confianca": "BAIXA", "justificativa": "categoria diferente"}
		],
		"sugestao_cadastro": true
	}`))
	defer srv.Close()

	analyses, err := newTestClient(srv).Rerank(context.Background(), "CERA LIQUIDA", []domain.Candidate{
		{Code: "001", Description: "CERA LIQUIDA INCOLOR", PreScore: 88},
		{Code: "002", Description: "TINTA ACRILICA", PreScore: 35},
	}, "")
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(analyses) != 2 {
		t.Fatalf("len = %d, want 2", len(analyses))
	}
	first := analyses[0]
	if first.Code != "001" || first.Score != 92 || first.Confidence != domain.ConfidenceHigh || !first.ExactMatch {
		t.Errorf("analysis = %+v", first)
	}
	for _, a := range analyses {
		if !a.SuggestRegistration {
			t.Errorf("catalog-level flag not repeated on %q", a.Code)
		}
	}
}

func TestRerankSendsCandidatesInPrompt(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model          string `json:"model"`
			Messages       []chatMessage
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q", req.ResponseFormat.Type)
		}
		if len(req.Messages) == 2 {
			gotUser = req.Messages[1].Content
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": `{"analise":[]}`}}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Rerank(context.Background(), "LUVA NITRILICA", []domain.Candidate{
		{Code: "010", Description: "LUVA DE PROTECAO", PreScore: 77},
	}, "EPI para obra")
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if !strings.Contains(gotUser, `[010] LUVA DE PROTECAO (score_pre: 77)`) {
		t.Errorf("candidate line missing from prompt:\n%s", gotUser)
	}
	if !strings.Contains(gotUser, "CONTEXTO ADICIONAL: EPI para obra") {
		t.Errorf("context hint missing from prompt:\n%s", gotUser)
	}
}

func TestRerankEmptyCandidatesSkipsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no call expected for empty candidate set")
	}))
	defer srv.Close()

	analyses, err := newTestClient(srv).Rerank(context.Background(), "CERA", nil, "")
	if err != nil || analyses != nil {
		t.Fatalf("got %v, %v", analyses, err)
	}
}

func TestRerankMalformedJSONIsAIUnavailable(t *testing.T) {
	srv := httptest.NewServer(chatContent(t, "desculpe, não consigo responder"))
	defer srv.Close()

	_, err := newTestClient(srv).Rerank(context.Background(), "CERA", []domain.Candidate{{Code: "001"}}, "")
	if !domain.IsKind(err, domain.ErrAIUnavailable) {
		t.Fatalf("err = %v, want ai-unavailable kind", err)
	}
}

func TestRerankSalvagesWrappedJSON(t *testing.T) {
	srv := httptest.NewServer(chatContent(t, "Segue a análise:\n```json\n{\"analise\":[{\"codigo\":\"001\",\"score\":80,\"confianca\":\"MEDIA\",\"justificativa\":\"ok\"}]}\n```"))
	defer srv.Close()

	analyses, err := newTestClient(srv).Rerank(context.Background(), "CERA", []domain.Candidate{{Code: "001"}}, "")
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(analyses) != 1 || analyses[0].Score != 80 {
		t.Errorf("analyses = %+v", analyses)
	}
}

func TestRerankServerErrorIsAIUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Rerank(context.Background(), "CERA", []domain.Candidate{{Code: "001"}}, "")
	if !domain.IsKind(err, domain.ErrAIUnavailable) {
		t.Fatalf("err = %v, want ai-unavailable kind", err)
	}
}

func TestClassifyGroup(t *testing.T) {
	srv := httptest.NewServer(chatContent(t, `{"codigo_grupo": 7, "justificativa": "material de limpeza"}`))
	defer srv.Close()

	code, justification, err := newTestClient(srv).ClassifyGroup(context.Background(), "CERA LIQUIDA", []domain.Group{
		{ID: 1, Code: 7, Description: "LIMPEZA", Identifier: "1"},
	})
	if err != nil {
		t.Fatalf("ClassifyGroup: %v", err)
	}
	if code != 7 {
		t.Errorf("code = %d, want 7", code)
	}
	if justification != "material de limpeza" {
		t.Errorf("justification = %q", justification)
	}
}

func TestClassifyUnit(t *testing.T) {
	srv := httptest.NewServer(chatContent(t, `{"codigo_unidade": "L", "justificativa": "produto líquido"}`))
	defer srv.Close()

	code, _, err := newTestClient(srv).ClassifyUnit(context.Background(), "CERA LIQUIDA 750ML", []domain.Unit{
		{ID: 1, Code: "L", Description: "LITRO"},
	})
	if err != nil {
		t.Fatalf("ClassifyUnit: %v", err)
	}
	if code != "L" {
		t.Errorf("code = %q, want L", code)
	}
}
