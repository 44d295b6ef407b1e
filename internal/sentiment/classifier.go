package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/spacesedan/aspectflow/internal/models"
)

// Classification carries the resolved label. Score is informational only.
type Classification struct {
	Label models.Sentiment
	Score *float64
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (Classification, error) {
	return f(ctx, text)
}

// ResolveLabel maps model output onto the three canonical labels. It accepts
// plain labels in any case and 1-5 star ratings.
func ResolveLabel(raw string) (models.Sentiment, error) {
	if s, err := models.ParseSentiment(raw); err == nil {
		return s, nil
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "5 star"), strings.Contains(lower, "4 star"):
		return models.SentimentPositive, nil
	case strings.Contains(lower, "3 star"):
		return models.SentimentNeutral, nil
	case strings.Contains(lower, "2 star"), strings.Contains(lower, "1 star"):
		return models.SentimentNegative, nil
	}
	return "", fmt.Errorf("[Sentiment] unrecognized label %q", raw)
}
