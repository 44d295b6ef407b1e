package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/pipeline"
	"github.com/spacesedan/aspectflow/internal/utils"
)

const SHUTDOWN_FLUSH_TIMEOUT = 10 * time.Second

// ResultsConsumer persists runs from the aspect-results topic in batches.
// An offset is committed only after its run has been saved.
type ResultsConsumer struct {
	recorder   pipeline.Recorder
	buffer     *utils.BatchBuffer[models.AnalysisRun]
	tracker    *utils.MessageTracker
	flushEvery time.Duration
	readPause  time.Duration
	backoff    time.Duration
}

func NewResultsConsumer(recorder pipeline.Recorder) *ResultsConsumer {
	return &ResultsConsumer{
		recorder:   recorder,
		buffer:     utils.NewBatchBuffer[models.AnalysisRun](utils.HISTORY_BUFFER),
		tracker:    utils.NewMessageTracker(),
		flushEvery: utils.BATCH_TIMEOUT,
		readPause:  READ_ERROR_PAUSE,
		backoff:    utils.FLUSH_BACKOFF,
	}
}

func (c *ResultsConsumer) Start(ctx context.Context, consumer *kafka.Consumer) {
	c.Run(ctx,
		kafka_client.NewKafkaMessageIterator(ctx, consumer),
		kafka_client.NewCommitHandler(ctx, consumer))
}

func (c *ResultsConsumer) Run(ctx context.Context, src Source, committer Committer) {
	slog.Info("[ResultsConsumer] Listening for analysis runs...")

	ticker := time.NewTicker(c.flushEvery)
	defer ticker.Stop()

	msgs := readMessages(ctx, src, c.readPause)
	for {
		select {
		case <-ctx.Done():
			slog.Warn("[ResultsConsumer] Stopping consumer...")
			if msgs != nil {
				for range msgs {
				}
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SHUTDOWN_FLUSH_TIMEOUT)
			c.flush(flushCtx, committer)
			cancel()
			return
		case <-ticker.C:
			c.flush(ctx, committer)
		case msg, ok := <-msgs:
			if !ok {
				// reader stopped with ctx; the next iteration flushes
				msgs = nil
				continue
			}
			var run models.AnalysisRun
			if err := utils.DeserializeFromJSON(msg.Value, &run); err != nil || run.RunID == "" {
				slog.Warn("[ResultsConsumer] Skipping malformed run", slog.String("key", string(msg.Key)))
				if err := committer.Commit(msg); err != nil {
					utils.HandleConsumerError(err)
				}
				continue
			}

			c.tracker.Track(run.RunID, msg)
			if c.buffer.Add(run) {
				c.flush(ctx, committer)
			}
		}
	}
}

// flush saves buffered runs. Runs that could not be saved go back into the
// buffer and keep their messages uncommitted.
func (c *ResultsConsumer) flush(ctx context.Context, committer Committer) {
	batch := c.buffer.GetAndClear()
	if len(batch) == 0 {
		return
	}
	c.buffer.LogBatchProcessing("aspect-results")

	var failed []models.AnalysisRun
	for _, run := range batch {
		if err := c.save(ctx, run); err != nil {
			slog.Error("[ResultsConsumer] Failed to save run",
				slog.String("run_id", run.RunID),
				slog.String("error", err.Error()))
			failed = append(failed, run)
			continue
		}

		if msg, found := c.tracker.Release(run.RunID); found {
			if err := committer.Commit(msg); err != nil {
				slog.Warn("[ResultsConsumer] Failed to commit offset",
					slog.String("error", err.Error()))
			}
		}
	}

	if len(failed) > 0 {
		c.buffer.Add(failed...)
	}
}

func (c *ResultsConsumer) save(ctx context.Context, run models.AnalysisRun) error {
	var err error
	backoff := c.backoff
	for i := 0; i < utils.FLUSH_RETRIES; i++ {
		if err = c.recorder.SaveRun(ctx, run); err == nil {
			return nil
		}
		slog.Warn("[ResultsConsumer] Save attempt failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if i+1 < utils.FLUSH_RETRIES && !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}
