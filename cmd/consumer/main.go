package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/app"
	"github.com/spacesedan/aspectflow/internal/clients"
	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
	"github.com/spacesedan/aspectflow/internal/consumers"
	"github.com/spacesedan/aspectflow/internal/db"
	"github.com/spacesedan/aspectflow/internal/logging"
	"github.com/spacesedan/aspectflow/internal/monitoring"
	"github.com/spacesedan/aspectflow/internal/topics"
)

func main() {
	config.LoadEnv(config.AppEnv())
	logging.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := kafka_client.GetKafkaConfig()
	settings := app.LoadSettings()
	monitor := monitoring.NewMonitor(monitoring.HEALTHCHECK_TIMER)

	switch cfg.Topic {
	case kafka_client.KAFKA_TOPIC_FEEDBACK_UPLOAD:
		for {
			err := kafka_client.InitKafkaProducer(cfg)
			if err == nil {
				break
			}
			slog.Warn("[Main] Kafka producer init failed, retrying...", slog.String("error", err.Error()))
			time.Sleep(5 * time.Second)
		}
		defer kafka_client.CloseKafkaProducer()

		valkey := clients.InitValkey()
		defer clients.CloseValkey()
		search := clients.GetOpensearchClient(ctx)

		deps := app.PipelineDeps{
			Store:     db.NewDynamoItemStore(clients.GetDynamoDBClient()),
			Indexer:   search,
			Retriever: search,
			Locker:    valkey.BatchLocker(settings.Pipeline.LockTTL),
			Recorder:  consumers.NewResultPublisher(kafka_client.PublishToKafka),
		}
		if os.Getenv("OPENAI_API_KEY") != "" {
			deps.Topics = topics.ExtractorFunc(clients.GetOpenAIClient().ExtractTopics)
		}
		orch, closeClassifier, err := app.NewOrchestrator(ctx, settings, deps)
		if err != nil {
			slog.Error("[Main] Failed to build pipeline", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer closeClassifier()

		batchLocks := monitor.Register("valkey", valkey.IsHealthy)
		monitor.Register("opensearch", search.IsHealthy)

		feedback := consumers.NewFeedbackConsumer(orch)
		kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_FEEDBACK_UPLOAD,
			consumers.WrapConsumer(feedback.Start).WithHealthCheck("valkey", batchLocks).Handler())

	case kafka_client.KAFKA_TOPIC_ASPECT_RESULTS:
		pg := clients.GetPostgresClient(ctx, config.GetPostgresConfig().DSN())
		defer pg.Close()
		history := db.NewPostgresHistory(pg.DB)
		if err := history.Migrate(ctx); err != nil {
			slog.Error("[Main] Failed to migrate", slog.String("error", err.Error()))
			os.Exit(1)
		}

		valkey := clients.InitValkey()
		defer clients.CloseValkey()

		httpCfg := config.GetHTTPConfig()
		service := app.NewReporting(settings, httpCfg.DefaultDays, httpCfg.DefaultHistory, history, valkey.SummaryCache())
		monitor.Register("postgres", pg.IsHealthy)

		results := consumers.NewResultsConsumer(service)
		kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_ASPECT_RESULTS, results.Start)
	}

	go monitor.Run(ctx)

	if err := kafka_client.StartConsumer(ctx, cfg); err != nil {
		slog.Error("[Main] Failed to start consumer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}
