package reporting

import (
	"sort"
	"strings"

	"github.com/spacesedan/aspectflow/internal/models"
)

type SortKey string

const (
	SortNone     SortKey = ""
	SortMentions SortKey = "mentions"
	SortNegative SortKey = "negative"
	SortPositive SortKey = "positive"
	SortAspect   SortKey = "aspect"
)

func ParseSortKey(raw string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case SortNone, SortMentions, SortNegative, SortPositive, SortAspect:
		return k, true
	}
	return SortNone, false
}

// View is a read-side projection over a canonical sequence.
type View struct {
	Sort        SortKey
	Priority    models.Priority
	MinMentions int
}

// ApplyView filters then sorts a copy of aspects. Ties keep input order.
func ApplyView(aspects []models.AspectSummary, v View) []models.AspectSummary {
	out := make([]models.AspectSummary, 0, len(aspects))
	for _, a := range aspects {
		if v.Priority != "" && a.Priority != v.Priority {
			continue
		}
		if a.MentionCount < v.MinMentions {
			continue
		}
		out = append(out, a)
	}

	var less func(a, b models.AspectSummary) bool
	switch v.Sort {
	case SortMentions:
		less = func(a, b models.AspectSummary) bool { return a.MentionCount > b.MentionCount }
	case SortNegative:
		less = func(a, b models.AspectSummary) bool {
			return a.Percent(models.SentimentNegative) > b.Percent(models.SentimentNegative)
		}
	case SortPositive:
		less = func(a, b models.AspectSummary) bool {
			return a.Percent(models.SentimentPositive) > b.Percent(models.SentimentPositive)
		}
	case SortAspect:
		less = func(a, b models.AspectSummary) bool { return a.Aspect < b.Aspect }
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}
