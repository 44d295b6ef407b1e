package consumers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/aspectflow/internal/clients/kafka_client"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/utils"
)

const MAX_HANDLE_ATTEMPTS = 3

// UploadProcessor is satisfied by *pipeline.Orchestrator.
type UploadProcessor interface {
	Process(ctx context.Context, req models.UploadRequest) (models.UploadResponse, error)
}

// FeedbackConsumer analyzes uploads from the feedback-upload topic one
// message at a time and commits each offset once its run is recorded.
type FeedbackConsumer struct {
	processor   UploadProcessor
	readPause   time.Duration
	retryPause  time.Duration
	healthPause time.Duration
}

func NewFeedbackConsumer(p UploadProcessor) *FeedbackConsumer {
	return &FeedbackConsumer{
		processor:   p,
		readPause:   READ_ERROR_PAUSE,
		retryPause:  READ_ERROR_PAUSE,
		healthPause: HEALTH_PAUSE,
	}
}

func (f *FeedbackConsumer) Start(ctx context.Context, consumer *kafka.Consumer, health ...*atomic.Bool) {
	f.Run(ctx,
		kafka_client.NewKafkaMessageIterator(ctx, consumer),
		kafka_client.NewCommitHandler(ctx, consumer),
		health...)
}

// Run consumes until ctx is done. While any health flag is down, the next
// message is held back.
func (f *FeedbackConsumer) Run(ctx context.Context, src Source, committer Committer, health ...*atomic.Bool) {
	slog.Info("[FeedbackConsumer] Listening for uploads...")

	for msg := range readMessages(ctx, src, f.readPause) {
		for !allHealthy(health) {
			slog.Warn("[FeedbackConsumer] Dependencies unhealthy, pausing")
			if !sleep(ctx, f.healthPause) {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		f.handleWithRetry(ctx, msg)
		if err := committer.Commit(msg); err != nil {
			slog.Warn("[FeedbackConsumer] Failed to commit offset",
				slog.String("error", err.Error()))
		}
	}
	slog.Warn("[FeedbackConsumer] Stopping consumer...")
}

func (f *FeedbackConsumer) handleWithRetry(ctx context.Context, msg *kafka.Message) {
	for attempt := 1; attempt <= MAX_HANDLE_ATTEMPTS; attempt++ {
		err := f.Handle(ctx, msg)
		if err == nil {
			return
		}
		slog.Warn("[FeedbackConsumer] Failed to handle upload",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < MAX_HANDLE_ATTEMPTS && !sleep(ctx, f.retryPause) {
			return
		}
	}
	slog.Error("[FeedbackConsumer] Giving up on upload", slog.String("key", string(msg.Key)))
}

// Handle returns an error only when processing the message again could
// succeed. Malformed uploads, busy or duplicate batches and failed runs are
// final.
func (f *FeedbackConsumer) Handle(ctx context.Context, msg *kafka.Message) error {
	var req models.UploadRequest
	if err := utils.DeserializeFromJSON(msg.Value, &req); err != nil {
		slog.Warn("[FeedbackConsumer] Skipping malformed upload", slog.String("key", string(msg.Key)))
		return nil
	}
	if req.BatchID == "" && len(msg.Key) > 0 {
		req.BatchID = string(msg.Key)
	}

	resp, err := f.processor.Process(ctx, req)

	var stageErr *errs.StageError
	switch {
	case err == nil:
		slog.Info("[FeedbackConsumer] Upload analyzed",
			slog.String("batch_id", resp.BatchID),
			slog.String("run_id", resp.Run.RunID),
			slog.String("status", string(resp.Run.Status)),
			slog.Int("accepted", resp.Accepted),
			slog.Int("rejected", len(resp.Rejected)))
		return nil
	case errors.Is(err, errs.ErrBatchBusy):
		slog.Warn("[FeedbackConsumer] Batch is already being analyzed, skipping",
			slog.String("batch_id", resp.BatchID))
		return nil
	case errors.Is(err, errs.ErrBatchExists):
		slog.Warn("[FeedbackConsumer] Batch id already stored, skipping",
			slog.String("batch_id", resp.BatchID))
		return nil
	case errors.As(err, &stageErr):
		slog.Warn("[FeedbackConsumer] Run failed",
			slog.String("batch_id", resp.BatchID),
			slog.String("stage", stageErr.Stage),
			slog.String("error", err.Error()))
		return nil
	default:
		return err
	}
}
