package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type PipelineConfig struct {
	Concurrency     int
	ItemTimeout     time.Duration
	LockTTL         time.Duration
	TopN            int
	MinMentionCount int
	RetrievalK      int
}

type DetectorConfig struct {
	ContextWindow int
	Discovery     bool
	TaxonomyPath  string
}

type InsightConfig struct {
	Emotions      bool
	TopicsBackend string
	TopicMinTexts int
	TopicMinSize  int
	TopicMax      int
}

type SentimentConfig struct {
	Backend      string
	ModelPath    string
	Endpoint     string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type RankingConfig struct {
	NegativeTie    string
	NonNegativeTie string
	Order          string
}

type HTTPConfig struct {
	Addr           string
	RefreshCron    string
	DefaultDays    int
	DefaultHistory int
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Name)
}

func GetPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency:     getEnvInt("ANALYSIS_CONCURRENCY", 4),
		ItemTimeout:     getEnvDuration("ANALYSIS_ITEM_TIMEOUT", 10*time.Second),
		LockTTL:         getEnvDuration("ANALYSIS_LOCK_TTL", 5*time.Minute),
		TopN:            getEnvInt("RECOMMENDATION_TOP_N", 5),
		MinMentionCount: getEnvInt("RECOMMENDATION_MIN_MENTIONS", 1),
		RetrievalK:      getEnvInt("RETRIEVAL_K", 3),
	}
}

func GetDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ContextWindow: getEnvInt("ASPECT_CONTEXT_WINDOW", 100),
		Discovery:     getEnvBool("ASPECT_DISCOVERY", true),
		TaxonomyPath:  getEnv("ASPECT_TAXONOMY_PATH", ""),
	}
}

func GetInsightConfig() InsightConfig {
	return InsightConfig{
		Emotions:      getEnvBool("EMOTIONS_ENABLED", true),
		TopicsBackend: getEnv("TOPICS_BACKEND", "keyword"),
		TopicMinTexts: getEnvInt("TOPIC_MIN_TEXTS", 10),
		TopicMinSize:  getEnvInt("TOPIC_MIN_SIZE", 2),
		TopicMax:      getEnvInt("TOPIC_MAX", 10),
	}
}

func GetSentimentConfig() SentimentConfig {
	return SentimentConfig{
		Backend:      getEnv("SENTIMENT_BACKEND", "vader"),
		ModelPath:    getEnv("HUGOT_MODEL_PATH", "./models/distilbert-sst5"),
		Endpoint:     getEnv("SENTIMENT_SERVICE_ENDPOINT", ""),
		TokenURL:     getEnv("SENTIMENT_SERVICE_TOKEN_URL", ""),
		ClientID:     getEnv("SENTIMENT_SERVICE_CLIENT_ID", ""),
		ClientSecret: getEnv("SENTIMENT_SERVICE_CLIENT_SECRET", ""),
	}
}

func GetRankingConfig() RankingConfig {
	return RankingConfig{
		NegativeTie:    getEnv("PRIORITY_NEGATIVE_TIE", "MEDIUM"),
		NonNegativeTie: getEnv("PRIORITY_NON_NEGATIVE_TIE", "MEDIUM"),
		Order:          getEnv("ASPECT_ORDER", "insertion"),
	}
}

func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:           getEnv("HTTP_ADDR", ":8080"),
		RefreshCron:    getEnv("SUMMARY_REFRESH_CRON", "*/15 * * * *"),
		DefaultDays:    getEnvInt("SUMMARY_DEFAULT_DAYS", 30),
		DefaultHistory: getEnvInt("HISTORY_DEFAULT_LIMIT", 20),
	}
}

func GetPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "aspectflow"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "aspectflow"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("[Config] Invalid boolean, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("[Config] Invalid duration, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}
