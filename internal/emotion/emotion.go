// Package emotion maps item sentiment plus cue words onto six emotion
// categories and aggregates them per batch.
package emotion

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/sentiment"
)

// LABEL_WEIGHT is the probability given to the classified label; the other
// two labels share the rest.
const LABEL_WEIGHT = 0.8

var (
	joyWords      = []string{"excellent", "great", "love", "perfect", "amazing", "wonderful", "fantastic", "happy", "best", "quality", "solid", "good", "like", "sturdy", "well-made", "rock-solid", "quick", "painless"}
	sadnessWords  = []string{"disappointed", "unfortunate", "sad", "uncomfortable", "regret", "poor", "falls short", "lacking", "miss", "prevent", "defeats", "slightly"}
	angerWords    = []string{"annoying", "frustrating", "terrible", "awful", "hate", "ridiculous", "unacceptable", "worst"}
	fearWords     = []string{"worried", "concerned", "afraid", "anxious", "nervous"}
	surpriseWords = []string{"surprising", "unexpected", "amazed", "shocked", "wow"}
)

// Probabilities is the three-way sentiment split of one text.
type Probabilities struct {
	Positive float64
	Neutral  float64
	Negative float64
}

// FromLabel spreads a single label into probabilities. Classifier scores are
// backend specific and are not used.
func FromLabel(label models.Sentiment) Probabilities {
	rest := (1 - LABEL_WEIGHT) / 2
	p := Probabilities{Positive: rest, Neutral: rest, Negative: rest}
	switch label {
	case models.SentimentPositive:
		p.Positive = LABEL_WEIGHT
	case models.SentimentNegative:
		p.Negative = LABEL_WEIGHT
	default:
		p.Neutral = LABEL_WEIGHT
	}
	return p
}

func Neutral() models.EmotionScores {
	return models.EmotionScores{
		models.EmotionJoy:      0,
		models.EmotionSadness:  0,
		models.EmotionAnger:    0,
		models.EmotionFear:     0,
		models.EmotionSurprise: 0,
		models.EmotionNeutral:  1,
	}
}

func count(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func isMixed(p Probabilities) bool {
	return (p.Positive > 0.2 && p.Negative > 0.2) ||
		(p.Positive > 0.3 && p.Negative > 0.15) ||
		(p.Positive > 0.15 && p.Negative > 0.3)
}

// Score combines sentiment probabilities with cue word counts. The result
// is normalized to sum to 1; empty text scores as neutral.
func Score(text string, p Probabilities) models.EmotionScores {
	if strings.TrimSpace(text) == "" {
		return Neutral()
	}
	lower := strings.ToLower(text)
	joy := float64(count(lower, joyWords))
	sadness := float64(count(lower, sadnessWords))
	anger := float64(count(lower, angerWords))
	fear := float64(count(lower, fearWords))
	surprise := float64(count(lower, surpriseWords))

	s := models.EmotionScores{
		models.EmotionJoy:      0,
		models.EmotionSadness:  0,
		models.EmotionAnger:    0,
		models.EmotionFear:     0,
		models.EmotionSurprise: 0,
		models.EmotionNeutral:  p.Neutral,
	}

	switch {
	case isMixed(p):
		s[models.EmotionJoy] = p.Positive*0.5 + min(0.5, joy*0.08)*p.Positive
		s[models.EmotionSadness] = p.Negative*0.5 + min(0.5, sadness*0.08)*p.Negative
		if anger > 0 {
			s[models.EmotionAnger] = p.Negative * (0.25 + min(0.25, anger*0.1))
		} else {
			s[models.EmotionAnger] = p.Negative * 0.1
		}
		s[models.EmotionNeutral] = p.Neutral * 0.4
		if surprise > 0 {
			s[models.EmotionSurprise] = 0.1
		}
	case p.Positive > 0.4:
		if surprise > 0 {
			s[models.EmotionSurprise] = p.Positive * 0.6
			s[models.EmotionJoy] = p.Positive * 0.4
		} else {
			s[models.EmotionJoy] = p.Positive*0.7 + min(0.3, joy*0.05)
		}
	case p.Negative > 0.4:
		switch {
		case anger > sadness && anger > 0:
			s[models.EmotionAnger] = p.Negative * 0.7
			s[models.EmotionSadness] = p.Negative * 0.3
		case fear > 0:
			s[models.EmotionFear] = p.Negative * 0.6
			s[models.EmotionSadness] = p.Negative * 0.4
		default:
			s[models.EmotionSadness] = p.Negative*0.7 + min(0.3, sadness*0.08)
			s[models.EmotionAnger] = p.Negative * 0.15
		}
	default:
		if joy > 0 {
			s[models.EmotionJoy] = min(0.4, joy*0.1)
		}
		if sadness > 0 {
			s[models.EmotionSadness] = min(0.4, sadness*0.1)
		}
		if anger > 0 {
			s[models.EmotionAnger] = min(0.3, anger*0.1)
		}
	}

	total := 0.0
	for _, v := range s {
		total += v
	}
	if total > 0 {
		for k, v := range s {
			s[k] = v / total
		}
	}
	return s
}

// Analyzer classifies whole items and scores their emotions.
type Analyzer struct {
	classifier sentiment.Classifier
}

func NewAnalyzer(c sentiment.Classifier) *Analyzer {
	return &Analyzer{classifier: c}
}

// Analyze never fails; a classifier error scores the item as neutral.
func (a *Analyzer) Analyze(ctx context.Context, text string) models.EmotionScores {
	if strings.TrimSpace(text) == "" {
		return Neutral()
	}
	c, err := a.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("[Emotion] Classification failed, scoring as neutral", slog.String("error", err.Error()))
		return Neutral()
	}
	return Score(text, FromLabel(c.Label))
}

// Aggregate averages item scores, counts dominant emotions and measures
// diversity. It returns nil for no items.
func Aggregate(items []models.EmotionScores) *models.EmotionSummary {
	if len(items) == 0 {
		return nil
	}
	sum := &models.EmotionSummary{
		AverageScores: models.EmotionScores{},
		Distribution:  map[models.Emotion]int{},
		Analyzed:      len(items),
	}
	for _, em := range models.Emotions {
		sum.Distribution[em] = 0
		total := 0.0
		for _, it := range items {
			total += it[em]
		}
		sum.AverageScores[em] = total / float64(len(items))
	}
	for _, it := range items {
		sum.Distribution[it.Dominant()]++
	}
	sum.Dominant = sum.AverageScores.Dominant()
	sum.Diversity = Diversity(sum.AverageScores)
	return sum
}

// Diversity is the Shannon entropy of the scores divided by log(categories).
func Diversity(scores models.EmotionScores) float64 {
	total := 0.0
	for _, em := range models.Emotions {
		total += scores[em]
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, em := range models.Emotions {
		if p := scores[em] / total; p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	return entropy / math.Log(float64(len(models.Emotions)))
}
