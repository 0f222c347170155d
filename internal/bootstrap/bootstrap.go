package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/synthexa/catalogmatch/internal/config"
	"github.com/synthexa/catalogmatch/internal/core/ports"
	"github.com/synthexa/catalogmatch/internal/core/usecase"
	"github.com/synthexa/catalogmatch/internal/infrastructure/catalog/xlsx"
	"github.com/synthexa/catalogmatch/internal/infrastructure/erp"
	"github.com/synthexa/catalogmatch/internal/infrastructure/llm/anthropic"
	"github.com/synthexa/catalogmatch/internal/infrastructure/llm/ollama"
	"github.com/synthexa/catalogmatch/internal/infrastructure/llm/openai"
	"github.com/synthexa/catalogmatch/internal/infrastructure/queue/nats"
	"github.com/synthexa/catalogmatch/internal/infrastructure/repository/postgres"
	"github.com/synthexa/catalogmatch/internal/infrastructure/resilience"
	"github.com/synthexa/catalogmatch/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Outcomes *postgres.OutcomeRepository
	Searcher ports.ProductSearcher
	Analyzer ports.ProductAnalyzer

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	outcomes := postgres.NewOutcomeRepository(db)
	if err := outcomes.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	erpClient := erp.New(erp.Config{
		BaseURL:  cfg.ERPBaseURL,
		TenantID: cfg.ERPTenantID,
		Username: cfg.ERPUsername,
		Password: cfg.ERPPassword,
	}, executor)

	catalog := xlsx.NewSnapshot(
		cfg.SnapshotPath,
		time.Duration(cfg.SnapshotMaxAgeHr)*time.Hour,
		erpClient,
		logger,
	)

	reranker, classifier := buildAIProvider(cfg, executor, logger)

	vocab, err := usecase.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		logger.Warn("vocabulary load failed, using built-in terms", "path", cfg.VocabularyPath, "error", err)
		vocab = usecase.DefaultVocabulary()
	}

	searcher := usecase.NewHybridSearchUseCase(catalog, reranker, vocab, usecase.SearchConfig{
		WeightPre:        cfg.SearchWeightPre,
		WeightAI:         cfg.SearchWeightAI,
		CandidateBudget:  cfg.CandidateBudget,
		MatchThreshold:   cfg.MatchThreshold,
		SuggestThreshold: cfg.SuggestThreshold,
		DefaultLimit:     cfg.SearchDefaultLimit,
	})

	analyzer := usecase.NewAnalyzeProductUseCase(
		searcher,
		erpClient,
		erpClient,
		erpClient,
		classifier,
		usecase.AnalyzeConfig{RegisterThreshold: cfg.RegisterThreshold},
		logger,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Outcomes: outcomes,
		Searcher: searcher,
		Analyzer: analyzer,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildAIProvider selects the re-ranking backend. Only the OpenAI
// client doubles as a category classifier; with the other providers
// group and unit selection falls back to the deterministic defaults.
func buildAIProvider(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (ports.Reranker, ports.CategoryClassifier) {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, search runs without re-ranking")
			return nil, nil
		}
		client := openai.New(openai.Config{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.OpenAIModel,
			RequestsPerMinute: cfg.OpenAIRateLimit,
		}, executor)
		return client, client
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set, search runs without re-ranking")
			return nil, nil
		}
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}), nil
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
		}), nil
	case "none", "":
		return nil, nil
	default:
		logger.Warn("unknown AI provider, search runs without re-ranking", "provider", cfg.AIProvider)
		return nil, nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
