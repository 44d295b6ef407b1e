package emotion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(s models.EmotionScores) float64 {
	total := 0.0
	for _, v := range s {
		total += v
	}
	return total
}

func TestScoreClearPositive(t *testing.T) {
	s := Score("I love the product quality a lot", FromLabel(models.SentimentPositive))
	assert.InDelta(t, 1, sum(s), 1e-9)
	assert.Equal(t, models.EmotionJoy, s.Dominant())
	// 0.8*0.7 + 2*0.05 joy against 0.1 neutral
	assert.InDelta(t, 0.66/0.76, s[models.EmotionJoy], 1e-9)
}

func TestScoreNegativeCues(t *testing.T) {
	angry := Score("The price is terrible and way too high", FromLabel(models.SentimentNegative))
	assert.Equal(t, models.EmotionAnger, angry.Dominant())
	assert.InDelta(t, 0.56/0.9, angry[models.EmotionAnger], 1e-9)

	afraid := Score("I am worried the battery will swell", FromLabel(models.SentimentNegative))
	assert.Equal(t, models.EmotionFear, afraid.Dominant())

	sad := Score("The strap broke after one week", FromLabel(models.SentimentNegative))
	assert.Equal(t, models.EmotionSadness, sad.Dominant())
	assert.Greater(t, sad[models.EmotionAnger], 0.0)
}

func TestScoreSurpriseOnPositive(t *testing.T) {
	s := Score("Wow, the setup was so easy", FromLabel(models.SentimentPositive))
	assert.Equal(t, models.EmotionSurprise, s.Dominant())
}

func TestScoreMixed(t *testing.T) {
	s := Score("Great screen but the battery is awful", Probabilities{Positive: 0.45, Neutral: 0.1, Negative: 0.45})
	assert.InDelta(t, 1, sum(s), 1e-9)
	assert.Greater(t, s[models.EmotionJoy], 0.0)
	assert.Greater(t, s[models.EmotionSadness], 0.0)
	assert.Greater(t, s[models.EmotionAnger], 0.0)
}

func TestScoreNeutralAndEmpty(t *testing.T) {
	plain := Score("Customer service was fine overall today", FromLabel(models.SentimentNeutral))
	assert.Equal(t, models.EmotionNeutral, plain.Dominant())
	assert.InDelta(t, 1, plain[models.EmotionNeutral], 1e-9)

	assert.Equal(t, Neutral(), Score("   ", FromLabel(models.SentimentPositive)))
}

func TestAnalyzerFallsBackToNeutral(t *testing.T) {
	failing := sentiment.ClassifierFunc(func(context.Context, string) (sentiment.Classification, error) {
		return sentiment.Classification{}, errors.New("model unavailable")
	})
	assert.Equal(t, Neutral(), NewAnalyzer(failing).Analyze(context.Background(), "I love it so much"))

	positive := sentiment.ClassifierFunc(func(context.Context, string) (sentiment.Classification, error) {
		return sentiment.Classification{Label: models.SentimentPositive}, nil
	})
	got := NewAnalyzer(positive).Analyze(context.Background(), "I love it so much")
	assert.Equal(t, models.EmotionJoy, got.Dominant())
}

func TestAggregate(t *testing.T) {
	assert.Nil(t, Aggregate(nil))

	joy := Score("I love the product quality a lot", FromLabel(models.SentimentPositive))
	summary := Aggregate([]models.EmotionScores{joy, joy, Neutral()})
	require.NotNil(t, summary)

	assert.Equal(t, 3, summary.Analyzed)
	assert.Equal(t, models.EmotionJoy, summary.Dominant)
	assert.Equal(t, 2, summary.Distribution[models.EmotionJoy])
	assert.Equal(t, 1, summary.Distribution[models.EmotionNeutral])
	assert.Equal(t, 0, summary.Distribution[models.EmotionAnger])
	assert.Len(t, summary.Distribution, len(models.Emotions))
	assert.InDelta(t, 1, sum(summary.AverageScores), 1e-9)
}

func TestDiversityBounds(t *testing.T) {
	assert.Zero(t, Diversity(Neutral()))
	assert.Zero(t, Diversity(models.EmotionScores{}))

	even := models.EmotionScores{}
	for _, em := range models.Emotions {
		even[em] = 1
	}
	assert.InDelta(t, 1, Diversity(even), 1e-9)

	half := models.EmotionScores{models.EmotionJoy: 0.5, models.EmotionAnger: 0.5}
	assert.InDelta(t, math.Log(2)/math.Log(6), Diversity(half), 1e-9)
}
