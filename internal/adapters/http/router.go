package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/synthexa/catalogmatch/internal/config"
	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
	"github.com/synthexa/catalogmatch/internal/observability/metrics"
)

const maxInvoiceBodyBytes = 8 << 20

// OutcomeStore is the audit-store surface the API uses: it persists
// every outcome it hands out and serves them back for review.
type OutcomeStore interface {
	Save(ctx context.Context, outcome *domain.AnalysisOutcome) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisOutcome, error)
	ListRecent(ctx context.Context, limit int) ([]domain.AnalysisOutcome, error)
}

// ItemExtractor parses invoice documents into batch items.
type ItemExtractor func(r io.Reader) ([]domain.BatchItem, error)

// InvoiceArchive keeps raw copies of received invoice documents.
type InvoiceArchive interface {
	Store(ctx context.Context, data io.Reader) (string, error)
}

type Router struct {
	cfg      config.Config
	searcher ports.ProductSearcher
	analyzer ports.ProductAnalyzer
	outcomes OutcomeStore
	extract  ItemExtractor
	archive  InvoiceArchive
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(
	cfg config.Config,
	searcher ports.ProductSearcher,
	analyzer ports.ProductAnalyzer,
	outcomes OutcomeStore,
	extract ItemExtractor,
	archive InvoiceArchive,
	queue ports.MessageQueue,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		searcher: searcher,
		analyzer: analyzer,
		outcomes: outcomes,
		extract:  extract,
		archive:  archive,
		queue:    queue,
		metrics:  m,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/products/search", rt.searchProducts)
	mux.HandleFunc("/v1/products/analyze", rt.analyzeProduct)
	mux.HandleFunc("/v1/products/analyze/batch", rt.analyzeBatch)
	mux.HandleFunc("/v1/invoices/analyze", rt.analyzeInvoice)
	mux.HandleFunc("/v1/outcomes", rt.listOutcomes)
	mux.HandleFunc("/v1/outcomes/", rt.getOutcomeByID)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 100*time.Millisecond)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) searchProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query       string `json:"query"`
		Limit       int    `json:"limite"`
		UseAI       *bool  `json:"usar_ia"`
		ContextHint string `json:"contexto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	useAI := true
	if req.UseAI != nil {
		useAI = *req.UseAI
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), req.Query, req.Limit, useAI, req.ContextHint)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch("api", result.Metrics.AIUsed, result.Metrics.PrefilterCandidates, time.Since(start))
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Description  string `json:"descricao"`
		SupplierCode string `json:"codigo_fornecedor"`
		ContextHint  string `json:"contexto"`
		AutoRegister *bool  `json:"cadastro_automatico"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "descricao is required"})
		return
	}

	autoRegister := rt.cfg.AutoRegister
	if req.AutoRegister != nil {
		autoRegister = *req.AutoRegister
	}

	outcome := rt.analyzer.Analyze(r.Context(), ports.AnalyzeRequest{
		Description:  req.Description,
		SupplierCode: req.SupplierCode,
		ContextHint:  req.ContextHint,
		AutoRegister: autoRegister,
	})
	rt.recordOutcome(r.Context(), &outcome)
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Items        []domain.BatchItem `json:"itens"`
		AutoRegister *bool              `json:"cadastro_automatico"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "itens is required"})
		return
	}

	autoRegister := rt.cfg.AutoRegister
	if req.AutoRegister != nil {
		autoRegister = *req.AutoRegister
	}

	result := rt.analyzer.AnalyzeBatch(r.Context(), req.Items, autoRegister)
	for i := range result.Items {
		rt.recordOutcome(r.Context(), &result.Items[i])
	}
	writeJSON(w, http.StatusOK, result)
}

// analyzeInvoice accepts an NF-e XML either as a multipart "file"
// field or as the raw request body. With ?enfileirar=true the items
// are published to the queue instead of being analyzed inline.
func (rt *Router) analyzeInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := rt.invoiceBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxInvoiceBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read invoice body: " + err.Error()})
		return
	}

	items, err := rt.extract(bytes.NewReader(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Valid invoices are archived before analysis so a failed batch can
	// be replayed. Archive trouble is logged, not surfaced.
	if rt.archive != nil {
		if key, err := rt.archive.Store(r.Context(), bytes.NewReader(raw)); err != nil {
			rt.logger.Warn("invoice archive failed", "error", err)
		} else {
			rt.logger.Info("invoice archived", "key", key, "items", len(items))
		}
	}

	if r.URL.Query().Get("enfileirar") == "true" {
		if rt.queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue is not configured"})
			return
		}
		for _, item := range items {
			if err := rt.queue.PublishAnalysisRequest(r.Context(), item); err != nil {
				writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
				return
			}
		}
		rt.logger.Info("invoice items queued", "count", len(items))
		writeJSON(w, http.StatusAccepted, map[string]any{"itens_enfileirados": len(items)})
		return
	}

	result := rt.analyzer.AnalyzeBatch(r.Context(), items, rt.cfg.AutoRegister)
	for i := range result.Items {
		rt.recordOutcome(r.Context(), &result.Items[i])
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) invoiceBody(r *http.Request) (io.ReadCloser, error) {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(contentType, "multipart/") {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errInvoiceFileRequired
	}
	return file, nil
}

func (rt *Router) getOutcomeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/outcomes/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "outcome id is required"})
		return
	}

	outcome, err := rt.outcomes.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) listOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limite"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limite must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	outcomes, err := rt.outcomes.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"itens": outcomes})
}

// recordOutcome persists the outcome for audit and counts it. Save
// trouble is logged, never surfaced: the analysis already happened.
func (rt *Router) recordOutcome(ctx context.Context, outcome *domain.AnalysisOutcome) {
	if rt.outcomes != nil {
		if err := rt.outcomes.Save(ctx, outcome); err != nil {
			rt.logger.Error("outcome save failed", "outcome_id", outcome.ID, "error", err)
		}
	}

	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordOutcome("api", string(outcome.Action))
	switch {
	case outcome.Registered:
		rt.metrics.RecordRegistration("api", nil)
	case strings.Contains(outcome.Error, "Erro no cadastro"):
		rt.metrics.RecordRegistration("api", errRegistrationFailed)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
