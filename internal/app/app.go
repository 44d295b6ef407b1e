// Package app assembles the pipeline and reporting service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/aggregation"
	"github.com/spacesedan/aspectflow/internal/aspects"
	"github.com/spacesedan/aspectflow/internal/emotion"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/pipeline"
	"github.com/spacesedan/aspectflow/internal/ranking"
	"github.com/spacesedan/aspectflow/internal/reporting"
	"github.com/spacesedan/aspectflow/internal/sentiment"
	"github.com/spacesedan/aspectflow/internal/topics"
)

// Collaborators left nil fall back to in-memory or disabled behaviour.
type PipelineDeps struct {
	Store      pipeline.ItemStore
	Indexer    pipeline.Indexer
	Retriever  pipeline.Retriever
	Summarizer pipeline.Summarizer
	Locker     pipeline.BatchLocker
	Recorder   pipeline.Recorder
	Observer   pipeline.Observer
	// Topics serves the "openai" topics backend.
	Topics pipeline.TopicExtractor
}

type Settings struct {
	Pipeline  config.PipelineConfig
	Detector  config.DetectorConfig
	Sentiment config.SentimentConfig
	Ranking   config.RankingConfig
	Insights  config.InsightConfig
}

func LoadSettings() Settings {
	return Settings{
		Pipeline:  config.GetPipelineConfig(),
		Detector:  config.GetDetectorConfig(),
		Sentiment: config.GetSentimentConfig(),
		Ranking:   config.GetRankingConfig(),
		Insights:  config.GetInsightConfig(),
	}
}

func (s Settings) Recommend() ranking.Config {
	return ranking.Config{TopN: s.Pipeline.TopN, MinMentionCount: s.Pipeline.MinMentionCount}
}

// NewRanker falls back to MEDIUM for unknown tie priorities.
func NewRanker(cfg config.RankingConfig) *ranking.Ranker {
	policy := ranking.DefaultPolicy()
	if p, err := models.ParsePriority(cfg.NegativeTie); err == nil {
		policy.NegativeTie = p
	} else {
		slog.Warn("[App] Invalid negative tie priority, using default", slog.String("value", cfg.NegativeTie))
	}
	if p, err := models.ParsePriority(cfg.NonNegativeTie); err == nil {
		policy.NonNegativeTie = p
	} else {
		slog.Warn("[App] Invalid non-negative tie priority, using default", slog.String("value", cfg.NonNegativeTie))
	}
	return ranking.NewRanker(policy)
}

func NewDetector(cfg config.DetectorConfig) (*aspects.Detector, error) {
	taxonomy, err := aspects.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("[App] failed to load taxonomy: %w", err)
	}
	return aspects.NewDetector(taxonomy, aspects.Options{
		ContextWindow: cfg.ContextWindow,
		Discovery:     cfg.Discovery,
	}), nil
}

// NewTopicExtractor picks the topics backend; "none" or an empty backend
// disables topic extraction. The openai backend needs deps.Topics.
func NewTopicExtractor(cfg config.InsightConfig, deps PipelineDeps) (pipeline.TopicExtractor, error) {
	switch strings.ToLower(cfg.TopicsBackend) {
	case "", "none":
		return nil, nil
	case "keyword":
		return topics.NewKeywordExtractor(topics.Options{MinTopicSize: cfg.TopicMinSize, MaxTopics: cfg.TopicMax}), nil
	case "openai":
		if deps.Topics == nil {
			return nil, fmt.Errorf("[App] topics backend openai has no client configured")
		}
		return deps.Topics, nil
	}
	return nil, fmt.Errorf("[App] unknown topics backend %q", cfg.TopicsBackend)
}

// NewOrchestrator builds the pipeline. The returned close func releases the
// classifier backend and is never nil.
func NewOrchestrator(ctx context.Context, s Settings, deps PipelineDeps) (*pipeline.Orchestrator, func() error, error) {
	noop := func() error { return nil }

	detector, err := NewDetector(s.Detector)
	if err != nil {
		return nil, noop, err
	}

	classifier, closeClassifier, err := sentiment.NewFromConfig(ctx, s.Sentiment)
	if err != nil {
		return nil, noop, err
	}

	store := deps.Store
	if store == nil {
		store = pipeline.NewMemoryItemStore()
	}

	extractor, err := NewTopicExtractor(s.Insights, deps)
	if err != nil {
		closeClassifier()
		return nil, noop, err
	}
	var emotions pipeline.EmotionScorer
	if s.Insights.Emotions {
		emotions = emotion.NewAnalyzer(classifier)
	}

	normalizer := aggregation.NewNormalizer(NewRanker(s.Ranking), aggregation.ParseOrder(s.Ranking.Order))
	analyzer := pipeline.NewAnalyzer(detector, classifier, normalizer, pipeline.AnalyzerOptions{
		Concurrency:   s.Pipeline.Concurrency,
		ItemTimeout:   s.Pipeline.ItemTimeout,
		Recommend:     s.Recommend(),
		Emotions:      emotions,
		Topics:        extractor,
		TopicMinTexts: s.Insights.TopicMinTexts,
	})

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Ingestor:    pipeline.NewIngestor(store, deps.Indexer),
		Analyzer:    analyzer,
		Retrieval:   pipeline.NewRetrieval(deps.Retriever, s.Pipeline.RetrievalK),
		Synthesizer: pipeline.NewSynthesizer(deps.Summarizer),
		Locker:      deps.Locker,
		Recorder:    deps.Recorder,
		Observer:    deps.Observer,
	})

	slog.Info("[App] Pipeline ready",
		slog.String("classifier", s.Sentiment.Backend),
		slog.Int("concurrency", s.Pipeline.Concurrency),
		slog.Bool("emotions", emotions != nil),
		slog.String("topics", s.Insights.TopicsBackend),
		slog.Bool("retrieval", deps.Retriever != nil),
		slog.Bool("summary", deps.Summarizer != nil))
	return orch, closeClassifier, nil
}

func NewReporting(s Settings, defaultDays, historyLimit int, store reporting.HistoryStore, cache reporting.SummaryCache) *reporting.Service {
	return reporting.NewService(store, NewRanker(s.Ranking), reporting.Options{
		Order:        aggregation.ParseOrder(s.Ranking.Order),
		Recommend:    s.Recommend(),
		DefaultDays:  defaultDays,
		HistoryLimit: historyLimit,
		Cache:        cache,
	})
}
