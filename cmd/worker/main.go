package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadsight/road-safety-assistant/internal/bootstrap"
	"github.com/roadsight/road-safety-assistant/internal/config"
	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/observability/logging"
	"github.com/roadsight/road-safety-assistant/internal/observability/metrics"
)

const serviceName = "road-safety-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, repo, closeFn, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer closeFn()

	workerMetrics := metrics.NewWorkerMetrics()
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeQuestionAnswered(ctx, func(handlerCtx context.Context, entry domain.HistoryEntry) error {
		persistCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()

		persistErr := repo.Append(persistCtx, entry)
		workerMetrics.RecordEvent(serviceName, persistErr != nil)
		return persistErr
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
