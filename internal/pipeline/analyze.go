package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/aspectflow/internal/aggregation"
	"github.com/spacesedan/aspectflow/internal/aspects"
	"github.com/spacesedan/aspectflow/internal/emotion"
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/ranking"
	"github.com/spacesedan/aspectflow/internal/sentiment"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_CONCURRENCY     = 4
	DEFAULT_ITEM_TIMEOUT    = 10 * time.Second
	DEFAULT_TOPIC_MIN_TEXTS = 10
)

type MentionDetector interface {
	Detect(text string) []aspects.Detection
}

type AnalyzerOptions struct {
	Concurrency int
	ItemTimeout time.Duration
	Recommend   ranking.Config

	// Optional. Emotions scores every analyzed item; Topics runs once per
	// batch of at least TopicMinTexts items. Neither can fail a batch.
	Emotions      EmotionScorer
	Topics        TopicExtractor
	TopicMinTexts int
}

type DefaultAnalyzer struct {
	detector   MentionDetector
	classifier sentiment.Classifier
	normalizer *aggregation.Normalizer
	opts       AnalyzerOptions
}

func NewAnalyzer(d MentionDetector, c sentiment.Classifier, n *aggregation.Normalizer, opts AnalyzerOptions) *DefaultAnalyzer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DEFAULT_CONCURRENCY
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DEFAULT_ITEM_TIMEOUT
	}
	if opts.Recommend.TopN <= 0 {
		opts.Recommend = ranking.DefaultConfig()
	}
	if opts.TopicMinTexts <= 0 {
		opts.TopicMinTexts = DEFAULT_TOPIC_MIN_TEXTS
	}
	if n == nil {
		n = aggregation.NewNormalizer(nil, aggregation.OrderInsertion)
	}
	return &DefaultAnalyzer{detector: d, classifier: c, normalizer: n, opts: opts}
}

type itemResult struct {
	mentions []models.AspectMention
	emotion  models.EmotionScores
	err      error
}

// chunk is one worker's contiguous slice of the batch and its private tally.
type chunk struct {
	items    []models.FeedbackItem
	acc      *aggregation.Accumulator
	skipped  []SkippedItem
	emotions []models.EmotionScores
}

// Analyze splits the batch into contiguous chunks, one per worker. Each worker
// folds its chunk in item order into its own accumulator; the chunks are then
// merged in chunk order, so the aspect order of the result never depends on
// scheduling.
func (a *DefaultAnalyzer) Analyze(ctx context.Context, batch models.Batch) (AnalysisOutput, error) {
	chunks := splitChunks(batch.Items, a.opts.Concurrency)

	var g errgroup.Group
	for _, c := range chunks {
		g.Go(func() error {
			a.foldChunk(ctx, batch.ID, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return AnalysisOutput{}, fmt.Errorf("[Analyzer] batch %s cancelled: %w", batch.ID, err)
	}

	acc := aggregation.NewAccumulator()
	var skipped []SkippedItem
	var emotions []models.EmotionScores
	for _, c := range chunks {
		acc.Merge(c.acc)
		skipped = append(skipped, c.skipped...)
		emotions = append(emotions, c.emotions...)
	}

	snap := acc.Snapshot()
	result, err := a.normalizer.Result(snap, a.opts.Recommend)
	if err != nil {
		return AnalysisOutput{}, fmt.Errorf("[Analyzer] failed to normalize batch %s: %w", batch.ID, err)
	}

	slog.Info("[Analyzer] Batch analyzed",
		slog.String("batch_id", batch.ID),
		slog.Int("items", len(batch.Items)),
		slog.Int("workers", len(chunks)),
		slog.Int("aspects", len(result.Aspects)),
		slog.Int("skipped", len(skipped)))

	out := AnalysisOutput{
		Result:   result,
		Examples: snap.Examples(),
		Skipped:  skipped,
		Topics:   a.extractTopics(ctx, batch),
	}
	if a.opts.Emotions != nil {
		out.Emotions = emotion.Aggregate(emotions)
	}
	return out, nil
}

func (a *DefaultAnalyzer) extractTopics(ctx context.Context, batch models.Batch) *models.TopicResult {
	if a.opts.Topics == nil || len(batch.Items) < a.opts.TopicMinTexts {
		return nil
	}
	texts := make([]string, 0, len(batch.Items))
	for _, item := range batch.Items {
		texts = append(texts, item.Text)
	}
	found, err := a.opts.Topics.Extract(ctx, texts)
	if err != nil {
		slog.Warn("[Analyzer] Topic extraction failed, continuing without topics",
			slog.String("batch_id", batch.ID),
			slog.String("error", err.Error()))
		return nil
	}
	return &found
}

func (a *DefaultAnalyzer) foldChunk(ctx context.Context, batchID string, c *chunk) {
	for _, item := range c.items {
		if ctx.Err() != nil {
			return
		}
		res := a.analyzeItem(ctx, item)
		err := res.err
		if err == nil {
			err = c.acc.AddAll(res.mentions)
		}
		if err != nil {
			slog.Warn("[Analyzer] Skipping item",
				slog.String("batch_id", batchID),
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()))
			c.skipped = append(c.skipped, SkippedItem{ItemID: item.ID, Reason: err.Error()})
			continue
		}
		if res.emotion != nil {
			c.emotions = append(c.emotions, res.emotion)
		}
	}
}

// splitChunks cuts items into at most workers contiguous chunks of near-equal size.
func splitChunks(items []models.FeedbackItem, workers int) []*chunk {
	n := len(items)
	if n == 0 {
		return nil
	}
	workers = min(max(workers, 1), n)
	size := (n + workers - 1) / workers

	chunks := make([]*chunk, 0, workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		chunks = append(chunks, &chunk{items: items[lo:hi], acc: aggregation.NewAccumulator()})
	}
	return chunks
}

// analyzeItem returns every mention of one item or an error; a single
// failed mention drops the whole item.
func (a *DefaultAnalyzer) analyzeItem(ctx context.Context, item models.FeedbackItem) itemResult {
	itemCtx, cancel := context.WithTimeout(ctx, a.opts.ItemTimeout)
	defer cancel()

	var res itemResult
	detections := a.detector.Detect(item.Text)
	for _, d := range detections {
		c, err := a.classify(itemCtx, d.Context)
		if err != nil {
			return itemResult{err: &errs.ClassificationError{ItemID: item.ID, Err: err}}
		}
		res.mentions = append(res.mentions, models.AspectMention{
			ItemID:    item.ID,
			Aspect:    d.Aspect,
			Sentiment: c.Label,
			Context:   d.Context,
		})
	}
	if a.opts.Emotions != nil {
		res.emotion = a.opts.Emotions.Analyze(itemCtx, item.Text)
	}
	return res
}

func (a *DefaultAnalyzer) classify(ctx context.Context, text string) (sentiment.Classification, error) {
	type outcome struct {
		c   sentiment.Classification
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := a.classifier.Classify(ctx, text)
		done <- outcome{c, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return sentiment.Classification{}, o.err
		}
		label, err := models.ParseSentiment(string(o.c.Label))
		if err != nil {
			return sentiment.Classification{}, err
		}
		o.c.Label = label
		return o.c, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return sentiment.Classification{}, fmt.Errorf("[Analyzer] classifier timed out: %w", ctx.Err())
		}
		return sentiment.Classification{}, ctx.Err()
	}
}
