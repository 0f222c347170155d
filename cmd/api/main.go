package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/synthexa/catalogmatch/internal/adapters/http"
	"github.com/synthexa/catalogmatch/internal/bootstrap"
	"github.com/synthexa/catalogmatch/internal/config"
	"github.com/synthexa/catalogmatch/internal/infrastructure/invoice"
	"github.com/synthexa/catalogmatch/internal/infrastructure/storage/localfs"
	"github.com/synthexa/catalogmatch/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "api", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	archive, err := localfs.New(cfg.InvoiceArchivePath)
	if err != nil {
		log.Fatalf("invoice archive error: %v", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		cfg,
		app.Searcher,
		app.Analyzer,
		app.Outcomes,
		invoice.ExtractItems,
		archive,
		app.Queue,
		httpMetrics,
		app.Logger,
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown error", "error", err)
	}
}
