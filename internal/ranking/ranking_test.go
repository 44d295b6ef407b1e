package ranking

import (
	"fmt"
	"testing"

	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func breakdown(pos, neu, neg int) models.SentimentBreakdown {
	return models.SentimentBreakdown{Positive: pos, Neutral: neu, Negative: neg}
}

func summary(aspect string, pos, neu, neg int) models.AspectSummary {
	b := breakdown(pos, neu, neg)
	return models.AspectSummary{Aspect: aspect, MentionCount: b.Total(), SentimentBreakdown: b}
}

func TestAllNegativeIsHigh(t *testing.T) {
	a := NewRanker(DefaultPolicy()).Assess(breakdown(0, 0, 3))

	assert.Equal(t, models.PriorityHigh, a.Priority)
	assert.Equal(t, models.SentimentNegative, a.Dominant)
	assert.InDelta(t, -100.0, a.NetSentiment, 1e-9)
}

func TestPositiveMajorityIsLow(t *testing.T) {
	a := NewRanker(DefaultPolicy()).Assess(breakdown(3, 2, 0))

	assert.Equal(t, models.PriorityLow, a.Priority)
	assert.Equal(t, models.SentimentPositive, a.Dominant)
	assert.InDelta(t, 60.0, a.NetSentiment, 1e-9)
}

func TestPriorityRules(t *testing.T) {
	r := NewRanker(DefaultPolicy())
	cases := []struct {
		b    models.SentimentBreakdown
		want models.Priority
	}{
		{breakdown(1, 1, 2), models.PriorityHigh},
		{breakdown(0, 4, 1), models.PriorityLow},
		{breakdown(5, 0, 4), models.PriorityLow},
		// ties default to MEDIUM; this is an assumed policy, see Policy
		{breakdown(2, 0, 2), models.PriorityMedium},
		{breakdown(0, 2, 2), models.PriorityMedium},
		{breakdown(2, 2, 0), models.PriorityMedium},
		{breakdown(1, 1, 1), models.PriorityMedium},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Assess(tc.b).Priority, fmt.Sprintf("%+v", tc.b))
	}
}

func TestTiePolicyIsConfigurable(t *testing.T) {
	r := NewRanker(Policy{NegativeTie: models.PriorityHigh, NonNegativeTie: models.PriorityLow})

	assert.Equal(t, models.PriorityHigh, r.Assess(breakdown(0, 2, 2)).Priority)
	assert.Equal(t, models.PriorityHigh, r.Assess(breakdown(1, 1, 1)).Priority)
	assert.Equal(t, models.PriorityLow, r.Assess(breakdown(2, 2, 0)).Priority)
	// strict majorities ignore the policy
	assert.Equal(t, models.PriorityLow, r.Assess(breakdown(3, 0, 1)).Priority)
}

func TestInvalidPolicyFallsBackToMedium(t *testing.T) {
	r := NewRanker(Policy{NegativeTie: "urgent"})
	assert.Equal(t, models.PriorityMedium, r.Assess(breakdown(2, 0, 2)).Priority)
}

func TestDominantTieBreak(t *testing.T) {
	assert.Equal(t, models.SentimentNegative, Dominant(breakdown(2, 2, 2)))
	assert.Equal(t, models.SentimentNegative, Dominant(breakdown(3, 0, 3)))
	assert.Equal(t, models.SentimentNeutral, Dominant(breakdown(3, 3, 0)))
	assert.Equal(t, models.SentimentPositive, Dominant(breakdown(4, 3, 0)))
}

func TestApplyFillsDerivedFields(t *testing.T) {
	s := NewRanker(DefaultPolicy()).Apply(summary("PRICE", 0, 0, 1))

	assert.Equal(t, models.PriorityHigh, s.Priority)
	assert.Equal(t, models.SentimentNegative, s.DominantSentiment)
	assert.InDelta(t, -100.0, s.NetSentiment, 1e-9)
}

func TestRecommendScenario(t *testing.T) {
	aspects := []models.AspectSummary{
		summary("PRICE", 0, 0, 1),
		summary("DELIVERY", 0, 0, 1),
		summary("PRODUCT", 1, 0, 0),
	}

	got := Recommend(aspects, DefaultConfig())
	assert.Equal(t, []string{"PRODUCT"}, got.Strengths)
	assert.Equal(t, []string{"PRICE", "DELIVERY"}, got.Improvements)
}

func TestRecommendOrdersByPercentage(t *testing.T) {
	aspects := []models.AspectSummary{
		summary("A", 3, 0, 2), // 60% positive
		summary("B", 9, 1, 0), // 90% positive
		summary("C", 0, 1, 3), // 75% negative
		summary("D", 0, 0, 2), // 100% negative
		summary("E", 1, 4, 0), // neutral, neither list
	}

	got := Recommend(aspects, DefaultConfig())
	assert.Equal(t, []string{"B", "A"}, got.Strengths)
	assert.Equal(t, []string{"D", "C"}, got.Improvements)
}

func TestRecommendTruncatesWithoutPadding(t *testing.T) {
	var aspects []models.AspectSummary
	for i := 0; i < 8; i++ {
		aspects = append(aspects, summary(fmt.Sprintf("P%d", i), 10-i, 0, i))
	}
	aspects = append(aspects, summary("N0", 0, 0, 1))

	got := Recommend(aspects, CompactConfig())
	assert.Equal(t, []string{"P0", "P1", "P2"}, got.Strengths)
	assert.Equal(t, []string{"N0", "P7", "P6"}, got.Improvements)

	got = Recommend(aspects, DefaultConfig())
	assert.Len(t, got.Strengths, 5)
}

func TestRecommendMinMentionCount(t *testing.T) {
	aspects := []models.AspectSummary{
		summary("NOISE", 1, 0, 0),
		summary("SIGNAL", 4, 1, 0),
	}

	got := Recommend(aspects, Config{TopN: 5, MinMentionCount: 2})
	assert.Equal(t, []string{"SIGNAL"}, got.Strengths)
}

func TestRecommendExclusive(t *testing.T) {
	aspects := []models.AspectSummary{
		summary("A", 2, 0, 2),
		summary("B", 2, 2, 2),
		summary("C", 3, 0, 1),
		summary("D", 1, 0, 3),
	}

	got := Recommend(aspects, DefaultConfig())
	for _, s := range got.Strengths {
		assert.NotContains(t, got.Improvements, s)
	}
}

func TestRecommendEmptyListsAreNonNil(t *testing.T) {
	got := Recommend(nil, DefaultConfig())
	assert.NotNil(t, got.Strengths)
	assert.NotNil(t, got.Improvements)
	assert.Empty(t, got.Strengths)
}
