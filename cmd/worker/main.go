package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/synthexa/catalogmatch/internal/bootstrap"
	"github.com/synthexa/catalogmatch/internal/config"
	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
	"github.com/synthexa/catalogmatch/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		app.Logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAnalysisRequests(ctx, func(handlerCtx context.Context, item domain.BatchItem) error {
		itemCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		workerMetrics.StartItem()
		start := time.Now()

		outcome := app.Analyzer.Analyze(itemCtx, ports.AnalyzeRequest{
			Description:  item.Description,
			SupplierCode: item.SupplierCode,
			AutoRegister: cfg.AutoRegister,
		})
		workerMetrics.FinishItem("worker", string(outcome.Action), time.Since(start))

		if err := app.Outcomes.Save(itemCtx, &outcome); err != nil {
			app.Logger.Error("outcome save failed", "outcome_id", outcome.ID, "error", err)
			return err
		}
		if outcome.Error != "" {
			app.Logger.Warn("item analysis completed with error",
				"outcome_id", outcome.ID,
				"description", item.Description,
				"error", outcome.Error,
			)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
