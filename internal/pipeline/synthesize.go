package pipeline

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/ranking"
)

const (
	ACTION_MIN_MENTIONS  = 3
	ACTION_MIN_NEGATIVE  = 0.5
	ACTION_HIGH_NEGATIVE = 0.6
	MAX_ACTION_ITEMS     = 10

	EMOTION_DOMINANT_SHARE = 0.5
	EMOTION_HIGH_JOY       = 0.4
	EMOTION_HIGH_SADNESS   = 0.3
	EMOTION_HIGH_ANGER     = 0.3
	EMOTION_DIVERSE        = 0.8
	EMOTION_UNIFORM        = 0.3
	TOPIC_DOMINANT_SHARE   = 0.4
	MAX_THEME_INSIGHTS     = 3
	THEME_KEYWORDS         = 3
)

// ActionItems flags aspects where more than half of at least three
// mentions are negative. HIGH items come first, then by mention count.
func ActionItems(result models.AnalysisResult) []models.ActionItem {
	items := []models.ActionItem{}
	for _, a := range result.Aspects {
		if a.MentionCount < ACTION_MIN_MENTIONS {
			continue
		}
		neg := float64(a.SentimentBreakdown.Negative) / float64(a.MentionCount)
		if neg <= ACTION_MIN_NEGATIVE {
			continue
		}
		p := models.PriorityMedium
		if neg > ACTION_HIGH_NEGATIVE {
			p = models.PriorityHigh
		}
		items = append(items, models.ActionItem{
			Priority:           p,
			Aspect:             a.Aspect,
			Action:             fmt.Sprintf("Address %s issues immediately", a.Aspect),
			Impact:             fmt.Sprintf("Could improve satisfaction for %d customers", int(float64(a.MentionCount)*neg)),
			NegativePercentage: math.Round(neg*1000) / 10,
			MentionCount:       a.MentionCount,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		hi, hj := items[i].Priority == models.PriorityHigh, items[j].Priority == models.PriorityHigh
		if hi != hj {
			return hi
		}
		return items[i].MentionCount > items[j].MentionCount
	})
	if len(items) > MAX_ACTION_ITEMS {
		items = items[:MAX_ACTION_ITEMS]
	}
	return items
}

// Insights lists strengths and improvements cut to the compact
// recommendation size.
func Insights(result models.AnalysisResult, actions []models.ActionItem) []string {
	insights := []string{}
	if len(result.Aspects) == 0 {
		return insights
	}
	top := ranking.CompactConfig().TopN

	insights = append(insights, fmt.Sprintf("Analyzed %d distinct aspects across feedback", len(result.Aspects)))
	if s := result.Recommendations.Strengths; len(s) > 0 {
		insights = append(insights, "Top strengths: "+strings.Join(s[:min(len(s), top)], ", "))
	}
	if s := result.Recommendations.Improvements; len(s) > 0 {
		insights = append(insights, "Areas needing attention: "+strings.Join(s[:min(len(s), top)], ", "))
	}

	var urgent []models.ActionItem
	for _, a := range actions {
		if a.Priority == models.PriorityHigh {
			urgent = append(urgent, a)
		}
	}
	if len(urgent) > 0 {
		insights = append(insights, fmt.Sprintf("URGENT: %d high-priority issue(s) detected - review %s immediately",
			len(urgent), urgent[0].Aspect))
	}
	return insights
}

// EmotionInsights describes the dominant-emotion distribution. It returns
// nothing for a nil summary.
func EmotionInsights(e *models.EmotionSummary) []string {
	insights := []string{}
	if e == nil || e.Analyzed == 0 {
		return insights
	}
	total := float64(e.Analyzed)
	share := func(em models.Emotion) float64 { return float64(e.Distribution[em]) / total }

	ranked := slices.Clone(models.Emotions)
	sort.SliceStable(ranked, func(i, j int) bool {
		return e.Distribution[ranked[i]] > e.Distribution[ranked[j]]
	})

	if share(ranked[0]) > EMOTION_DOMINANT_SHARE {
		insights = append(insights, fmt.Sprintf("Dominant emotion: %s (%.1f%% of feedback)", ranked[0], share(ranked[0])*100))
	} else {
		parts := make([]string, 0, 3)
		for _, em := range ranked[:3] {
			parts = append(parts, fmt.Sprintf("%s (%.1f%%)", em, share(em)*100))
		}
		insights = append(insights, "Mixed emotions: "+strings.Join(parts, ", "))
	}

	if v := share(models.EmotionJoy); v > EMOTION_HIGH_JOY {
		insights = append(insights, fmt.Sprintf("High levels of joy and satisfaction detected (%.1f%%)", v*100))
	}
	if v := share(models.EmotionSadness); v > EMOTION_HIGH_SADNESS {
		insights = append(insights, fmt.Sprintf("Notable sadness in feedback (%.1f%%)", v*100))
	}
	if v := share(models.EmotionAnger); v > EMOTION_HIGH_ANGER {
		insights = append(insights, fmt.Sprintf("Significant anger detected - attention needed (%.1f%%)", v*100))
	}

	switch {
	case e.Diversity > EMOTION_DIVERSE:
		insights = append(insights, "High emotional diversity - feedback covers wide range of emotions")
	case e.Diversity < EMOTION_UNIFORM:
		insights = append(insights, "Low emotional diversity - feedback is emotionally uniform")
	}
	return insights
}

// TopicInsights names the largest discussion themes. It returns nothing for
// a nil result.
func TopicInsights(t *models.TopicResult) []string {
	if t == nil {
		return []string{}
	}
	if t.NumTopics() == 0 {
		return []string{"No distinct topics identified in feedback"}
	}
	insights := []string{fmt.Sprintf("Identified %d distinct discussion themes", t.NumTopics())}

	ranked := slices.Clone(t.Topics)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	for i, topic := range ranked[:min(len(ranked), MAX_THEME_INSIGHTS)] {
		kw := topic.Keywords[:min(len(topic.Keywords), THEME_KEYWORDS)]
		insights = append(insights, fmt.Sprintf("Theme #%d: %s (%d mentions)", i+1, strings.Join(kw, ", "), topic.Count))
	}

	total := 0
	for _, topic := range t.Topics {
		total += topic.Count
	}
	if total > 0 {
		if share := float64(ranked[0].Count) / float64(total); share > TOPIC_DOMINANT_SHARE {
			insights = append(insights, fmt.Sprintf("Dominant theme accounts for %.1f%% of feedback", share*100))
		}
	}
	if t.Outliers > 0 {
		insights = append(insights, fmt.Sprintf("%d feedback entries don't fit main themes (unique concerns)", t.Outliers))
	}
	return insights
}

type DefaultSynthesizer struct {
	summarizer Summarizer
}

// NewSynthesizer accepts a nil summarizer; the report then carries no
// narrative summary.
func NewSynthesizer(s Summarizer) *DefaultSynthesizer {
	return &DefaultSynthesizer{summarizer: s}
}

func (s *DefaultSynthesizer) Synthesize(ctx context.Context, batch models.Batch, analysis AnalysisOutput, retrieval RetrievalOutput) (models.Report, error) {
	actions := ActionItems(analysis.Result)
	insights := slices.Concat(
		Insights(analysis.Result, actions),
		EmotionInsights(analysis.Emotions),
		TopicInsights(analysis.Topics),
	)
	report := models.Report{
		Insights: insights,
		Actions:  actions,
		Context:  retrieval.Context,
	}

	if s.summarizer == nil || len(analysis.Result.Aspects) == 0 {
		return report, nil
	}

	summary, err := s.summarizer.Summarize(ctx, analysis.Result, report.Insights)
	if err != nil {
		return report, fmt.Errorf("[Synthesizer] failed to summarize batch %s: %w", batch.ID, err)
	}
	report.Summary = strings.TrimSpace(summary)
	return report, nil
}
