package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spacesedan/aspectflow/config"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/reporting"
	"github.com/spacesedan/aspectflow/internal/topics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		Pipeline:  config.PipelineConfig{Concurrency: 2, TopN: 5, MinMentionCount: 1},
		Detector:  config.DetectorConfig{ContextWindow: 100},
		Sentiment: config.SentimentConfig{Backend: "vader"},
		Ranking:   config.RankingConfig{NegativeTie: "high", NonNegativeTie: "low", Order: "aspect"},
	}
}

func TestNewRankerTiePolicy(t *testing.T) {
	tie := models.SentimentBreakdown{Positive: 1, Negative: 1}
	assert.Equal(t, models.PriorityHigh, NewRanker(testSettings().Ranking).Assess(tie).Priority)

	r := NewRanker(config.RankingConfig{NegativeTie: "sometimes", NonNegativeTie: "never"})
	assert.Equal(t, models.PriorityMedium, r.Assess(tie).Priority)
}

func TestNewDetectorLoadsTaxonomyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: checkout\n    keywords: [checkout, cart]\n"), 0o600))

	d, err := NewDetector(config.DetectorConfig{TaxonomyPath: path})
	require.NoError(t, err)
	found := d.Detect("The checkout kept failing")
	require.Len(t, found, 1)
	assert.Equal(t, "CHECKOUT", found[0].Aspect)

	_, err = NewDetector(config.DetectorConfig{TaxonomyPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewOrchestratorEndToEnd(t *testing.T) {
	s := testSettings()
	history := reporting.NewMemoryHistory()
	service := NewReporting(s, 30, 20, history, nil)

	orch, closeFn, err := NewOrchestrator(context.Background(), s, PipelineDeps{Recorder: service})
	require.NoError(t, err)
	defer closeFn()

	resp, err := orch.Process(context.Background(), models.UploadRequest{BatchID: "b1", Feedback: []string{
		"The price is terrible and way too high",
		"Shipping was great and really quick",
	}})
	require.NoError(t, err)
	require.NotNil(t, resp.Run.Result)

	summary, err := service.GetAspectSummary(context.Background(), 0)
	require.NoError(t, err)
	var names []string
	for _, a := range summary.Aspects {
		names = append(names, a.Aspect)
	}
	assert.Equal(t, []string{"DELIVERY", "PRICE"}, names, "aspect order is configured")
}

func TestNewTopicExtractor(t *testing.T) {
	none, err := NewTopicExtractor(config.InsightConfig{TopicsBackend: "none"}, PipelineDeps{})
	require.NoError(t, err)
	assert.Nil(t, none)

	keyword, err := NewTopicExtractor(config.InsightConfig{TopicsBackend: "Keyword"}, PipelineDeps{})
	require.NoError(t, err)
	assert.IsType(t, &topics.KeywordExtractor{}, keyword)

	_, err = NewTopicExtractor(config.InsightConfig{TopicsBackend: "openai"}, PipelineDeps{})
	assert.Error(t, err)

	llm := topics.ExtractorFunc(func(context.Context, []string) (models.TopicResult, error) {
		return models.TopicResult{}, nil
	})
	got, err := NewTopicExtractor(config.InsightConfig{TopicsBackend: "openai"}, PipelineDeps{Topics: llm})
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = NewTopicExtractor(config.InsightConfig{TopicsBackend: "lda"}, PipelineDeps{})
	assert.Error(t, err)
}

func TestNewOrchestratorWithInsights(t *testing.T) {
	s := testSettings()
	s.Insights = config.InsightConfig{Emotions: true, TopicsBackend: "keyword", TopicMinTexts: 2}

	orch, closeFn, err := NewOrchestrator(context.Background(), s, PipelineDeps{})
	require.NoError(t, err)
	defer closeFn()

	resp, err := orch.Process(context.Background(), models.UploadRequest{Feedback: []string{
		"The battery died after one hour",
		"Battery drains far too quickly",
		"The strap looks lovely",
	}})
	require.NoError(t, err)
	require.NotNil(t, resp.Run.Emotions)
	assert.Equal(t, 3, resp.Run.Emotions.Analyzed)
	require.NotNil(t, resp.Run.Topics)
	require.Len(t, resp.Run.Topics.Topics, 1)
	assert.Equal(t, "battery", resp.Run.Topics.Topics[0].Keywords[0])
	assert.Equal(t, 1, resp.Run.Topics.Outliers)
}

func TestNewOrchestratorUnknownBackend(t *testing.T) {
	s := testSettings()
	s.Sentiment.Backend = "crystal-ball"
	_, closeFn, err := NewOrchestrator(context.Background(), s, PipelineDeps{})
	assert.Error(t, err)
	assert.NoError(t, closeFn())
}
