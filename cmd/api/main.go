package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/api"
	"github.com/spacesedan/aspectflow/internal/app"
	"github.com/spacesedan/aspectflow/internal/clients"
	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
	"github.com/spacesedan/aspectflow/internal/db"
	"github.com/spacesedan/aspectflow/internal/logging"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/monitoring"
	"github.com/spacesedan/aspectflow/internal/reporting"
	"github.com/spacesedan/aspectflow/internal/topics"
)

const SHUTDOWN_TIMEOUT = 15 * time.Second

func main() {
	config.LoadEnv(config.AppEnv())
	logging.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := app.LoadSettings()
	httpCfg := config.GetHTTPConfig()
	monitor := monitoring.NewMonitor(monitoring.HEALTHCHECK_TIMER)

	pg := clients.GetPostgresClient(ctx, config.GetPostgresConfig().DSN())
	defer pg.Close()
	history := db.NewPostgresHistory(pg.DB)
	if err := history.Migrate(ctx); err != nil {
		slog.Error("[Main] Failed to migrate", slog.String("error", err.Error()))
		return
	}

	valkey := clients.InitValkey()
	defer clients.CloseValkey()
	search := clients.GetOpensearchClient(ctx)

	service := app.NewReporting(settings, httpCfg.DefaultDays, httpCfg.DefaultHistory, history, valkey.SummaryCache())

	deps := app.PipelineDeps{
		Store:     db.NewDynamoItemStore(clients.GetDynamoDBClient()),
		Indexer:   search,
		Retriever: search,
		Locker:    valkey.BatchLocker(settings.Pipeline.LockTTL),
		Recorder:  service,
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		llm := clients.GetOpenAIClient()
		deps.Summarizer = llm
		deps.Topics = topics.ExtractorFunc(llm.ExtractTopics)
	}
	orch, closeClassifier, err := app.NewOrchestrator(ctx, settings, deps)
	if err != nil {
		slog.Error("[Main] Failed to build pipeline", slog.String("error", err.Error()))
		return
	}
	defer closeClassifier()

	var enqueue api.Enqueue
	kafkaCfg := kafka_client.GetKafkaConfig()
	if err := kafka_client.InitKafkaProducer(kafkaCfg); err != nil {
		slog.Warn("[Main] Kafka unavailable, async uploads disabled", slog.String("error", err.Error()))
	} else {
		defer kafka_client.CloseKafkaProducer()
		enqueue = func(batchID string, req models.UploadRequest) error {
			return kafka_client.PublishToKafka(kafka_client.KAFKA_TOPIC_FEEDBACK_UPLOAD, batchID, req)
		}
	}

	monitor.Register("postgres", pg.IsHealthy)
	monitor.Register("valkey", valkey.IsHealthy)
	monitor.Register("opensearch", search.IsHealthy)
	go monitor.Run(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(httpCfg.RefreshCron, func() {
		refreshSummary(ctx, service, httpCfg.DefaultDays)
	}); err != nil {
		slog.Error("[Main] Invalid refresh schedule",
			slog.String("cron", httpCfg.RefreshCron),
			slog.String("error", err.Error()))
		return
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           api.SetupRouter(api.NewHandlers(orch, service, monitor, enqueue)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[Main] HTTP server listening", slog.String("addr", httpCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] HTTP server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("[Main] Graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// refreshSummary keeps the trailing-window cache warm between uploads.
func refreshSummary(ctx context.Context, r *reporting.Service, days int) {
	start := time.Now()
	result, err := r.RefreshSummary(ctx, days)
	if err != nil {
		slog.Warn("[Scheduler] Summary refresh failed", slog.String("error", err.Error()))
		return
	}
	slog.Info("[Scheduler] Summary refreshed",
		slog.Int("days", days),
		slog.Int("aspects", len(result.Aspects)),
		slog.Duration("took", time.Since(start)))
}
