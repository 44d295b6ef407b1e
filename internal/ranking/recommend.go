package ranking

import (
	"sort"

	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	DEFAULT_TOP_N = 5
	COMPACT_TOP_N = 3
)

type Config struct {
	TopN            int
	MinMentionCount int
}

func DefaultConfig() Config {
	return Config{TopN: DEFAULT_TOP_N, MinMentionCount: 1}
}

func CompactConfig() Config {
	return Config{TopN: COMPACT_TOP_N, MinMentionCount: 1}
}

type candidate struct {
	aspect  string
	percent float64
}

// Recommend splits aspects into strengths (dominant positive) and
// improvements (dominant negative). Ties keep input order.
func Recommend(aspects []models.AspectSummary, cfg Config) models.Recommendations {
	if cfg.TopN <= 0 {
		cfg.TopN = DEFAULT_TOP_N
	}

	var strengths, improvements []candidate
	for _, a := range aspects {
		if a.MentionCount < cfg.MinMentionCount || a.MentionCount == 0 {
			continue
		}
		switch Dominant(a.SentimentBreakdown) {
		case models.SentimentPositive:
			strengths = append(strengths, candidate{a.Aspect, a.Percent(models.SentimentPositive)})
		case models.SentimentNegative:
			improvements = append(improvements, candidate{a.Aspect, a.Percent(models.SentimentNegative)})
		}
	}

	return models.Recommendations{
		Strengths:    top(strengths, cfg.TopN),
		Improvements: top(improvements, cfg.TopN),
	}
}

func top(cs []candidate, n int) []string {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].percent > cs[j].percent
	})
	if len(cs) > n {
		cs = cs[:n]
	}
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.aspect)
	}
	return out
}
