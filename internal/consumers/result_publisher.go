package consumers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
	"github.com/spacesedan/aspectflow/internal/models"
)

// ResultPublisher records runs by publishing them to the aspect-results
// topic, keyed by batch id so runs of one batch stay ordered.
type ResultPublisher struct {
	publish Publisher
	topic   string
	backoff time.Duration
}

func NewResultPublisher(publish Publisher) *ResultPublisher {
	if publish == nil {
		publish = kafka_client.PublishToKafka
	}
	return &ResultPublisher{
		publish: publish,
		topic:   kafka_client.KAFKA_TOPIC_ASPECT_RESULTS,
		backoff: kafka_client.RETRY_DELAY,
	}
}

func (p *ResultPublisher) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	var err error
	for i := 0; i < kafka_client.PUBLISH_TRIES; i++ {
		if err = p.publish(p.topic, run.BatchID, run); err == nil {
			return nil
		}
		slog.Warn("[ResultPublisher] Publishing failed",
			slog.Int("attempt", i+1),
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()))
		if i+1 < kafka_client.PUBLISH_TRIES && !sleep(ctx, p.backoff) {
			break
		}
	}
	return fmt.Errorf("[ResultPublisher] failed to publish run %s: %w", run.RunID, err)
}
