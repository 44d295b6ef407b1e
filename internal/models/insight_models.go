package models

type Emotion string

const (
	EmotionJoy      Emotion = "joy"
	EmotionSadness  Emotion = "sadness"
	EmotionAnger    Emotion = "anger"
	EmotionFear     Emotion = "fear"
	EmotionSurprise Emotion = "surprise"
	EmotionNeutral  Emotion = "neutral"
)

// Emotions is the fixed category order; ties resolve to the earlier entry.
var Emotions = []Emotion{EmotionJoy, EmotionSadness, EmotionAnger, EmotionFear, EmotionSurprise, EmotionNeutral}

// EmotionScores maps every category to a share; the shares sum to 1.
type EmotionScores map[Emotion]float64

// Dominant returns the highest scoring category, neutral for empty scores.
func (e EmotionScores) Dominant() Emotion {
	best, bestScore := EmotionNeutral, -1.0
	for _, em := range Emotions {
		if v, ok := e[em]; ok && v > bestScore {
			best, bestScore = em, v
		}
	}
	return best
}

type EmotionSummary struct {
	AverageScores EmotionScores   `json:"average_scores"`
	Distribution  map[Emotion]int `json:"emotion_distribution"`
	Dominant      Emotion         `json:"dominant_emotion"`
	// Diversity is the Shannon entropy of AverageScores normalized to 0..1.
	Diversity float64 `json:"emotion_diversity"`
	Analyzed  int     `json:"analyzed"`
}

type Topic struct {
	ID                      int      `json:"topic_id"`
	Keywords                []string `json:"keywords"`
	Count                   int      `json:"count"`
	RepresentativeDocuments []string `json:"representative_docs"`
}

type TopicResult struct {
	Topics   []Topic `json:"topics"`
	Outliers int     `json:"outliers"`
}

func (t TopicResult) NumTopics() int {
	return len(t.Topics)
}
