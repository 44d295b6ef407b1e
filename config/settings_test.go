package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetPipelineConfigDefaults(t *testing.T) {
	t.Setenv("ANALYSIS_CONCURRENCY", "")
	t.Setenv("ANALYSIS_ITEM_TIMEOUT", "")
	t.Setenv("RECOMMENDATION_TOP_N", "")

	cfg := GetPipelineConfig()
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.ItemTimeout)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 1, cfg.MinMentionCount)
	assert.Equal(t, 3, cfg.RetrievalK)
}

func TestGetPipelineConfigOverrides(t *testing.T) {
	t.Setenv("ANALYSIS_CONCURRENCY", "16")
	t.Setenv("ANALYSIS_ITEM_TIMEOUT", "250ms")
	t.Setenv("RECOMMENDATION_TOP_N", "3")

	cfg := GetPipelineConfig()
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.ItemTimeout)
	assert.Equal(t, 3, cfg.TopN)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ANALYSIS_CONCURRENCY", "many")
	t.Setenv("ASPECT_DISCOVERY", "perhaps")

	assert.Equal(t, 4, GetPipelineConfig().Concurrency)
	assert.True(t, GetDetectorConfig().Discovery)
}

func TestGetInsightConfig(t *testing.T) {
	t.Setenv("EMOTIONS_ENABLED", "")
	t.Setenv("TOPICS_BACKEND", "")
	t.Setenv("TOPIC_MIN_TEXTS", "")

	cfg := GetInsightConfig()
	assert.True(t, cfg.Emotions)
	assert.Equal(t, "keyword", cfg.TopicsBackend)
	assert.Equal(t, 10, cfg.TopicMinTexts)
	assert.Equal(t, 2, cfg.TopicMinSize)

	t.Setenv("EMOTIONS_ENABLED", "false")
	t.Setenv("TOPICS_BACKEND", "openai")
	t.Setenv("TOPIC_MIN_TEXTS", "25")
	cfg = GetInsightConfig()
	assert.False(t, cfg.Emotions)
	assert.Equal(t, "openai", cfg.TopicsBackend)
	assert.Equal(t, 25, cfg.TopicMinTexts)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", cfg.DSN())
}
