package aggregation

import (
	"sort"
	"strings"

	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/ranking"
)

// Shape is any representation the Normalizer accepts.
type Shape interface {
	shape()
}

func (*Tallies) shape() {}

// KeyedAspect is the legacy per-aspect record keyed by aspect name, with
// priority in whatever case the producer used.
type KeyedAspect struct {
	SentimentBreakdown models.SentimentBreakdown `json:"sentiment_breakdown"`
	MentionCount       int                       `json:"mention_count"`
	Priority           string                    `json:"priority,omitempty"`
}

type Keyed map[string]KeyedAspect

func (Keyed) shape() {}

// Sequence is already in canonical form.
type Sequence []models.AspectSummary

func (Sequence) shape() {}

type Order int

const (
	OrderInsertion Order = iota
	OrderMentions
	OrderAspect
)

func ParseOrder(raw string) Order {
	switch strings.ToLower(raw) {
	case "mentions":
		return OrderMentions
	case "aspect", "alphabetical":
		return OrderAspect
	default:
		return OrderInsertion
	}
}

type Normalizer struct {
	ranker *ranking.Ranker
	order  Order
}

func NewNormalizer(r *ranking.Ranker, order Order) *Normalizer {
	if r == nil {
		r = ranking.NewRanker(ranking.DefaultPolicy())
	}
	return &Normalizer{ranker: r, order: order}
}

// Normalize returns the canonical ordered sequence. Priority and the
// derived fields are always recomputed by the ranker, so feeding the
// output back in yields an identical sequence.
func (n *Normalizer) Normalize(s Shape) ([]models.AspectSummary, error) {
	var out []models.AspectSummary
	var err error

	switch v := s.(type) {
	case *Tallies:
		out, err = n.fromTallies(v)
	case Keyed:
		out, err = n.fromKeyed(v)
	case Sequence:
		out, err = n.fromSequence(v)
	case nil:
		return nil, &errs.FormatError{Reason: "nothing to normalize"}
	default:
		return nil, &errs.FormatError{Reason: "unsupported shape"}
	}
	if err != nil {
		return nil, err
	}

	n.sort(out)
	return out, nil
}

func (n *Normalizer) fromTallies(t *Tallies) ([]models.AspectSummary, error) {
	if t == nil {
		return []models.AspectSummary{}, nil
	}
	out := make([]models.AspectSummary, 0, len(t.order))
	for _, name := range t.order {
		tally := t.counts[name]
		s, err := n.build(name, tally.MentionCount, tally.Breakdown)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (n *Normalizer) fromKeyed(k Keyed) ([]models.AspectSummary, error) {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{}, len(k))
	out := make([]models.AspectSummary, 0, len(k))
	for _, key := range keys {
		entry := k[key]
		name := strings.ToUpper(strings.TrimSpace(key))
		if _, dup := seen[name]; dup {
			return nil, &errs.FormatError{Aspect: name, Reason: "duplicate aspect key"}
		}
		seen[name] = struct{}{}

		if entry.Priority != "" {
			if _, err := models.ParsePriority(entry.Priority); err != nil {
				return nil, &errs.FormatError{Aspect: name, Reason: "invalid priority", Err: err}
			}
		}

		s, err := n.build(name, entry.MentionCount, entry.SentimentBreakdown)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (n *Normalizer) fromSequence(seq Sequence) ([]models.AspectSummary, error) {
	seen := make(map[string]struct{}, len(seq))
	out := make([]models.AspectSummary, 0, len(seq))
	for _, in := range seq {
		if _, dup := seen[in.Aspect]; dup {
			return nil, &errs.FormatError{Aspect: in.Aspect, Reason: "duplicate aspect"}
		}
		seen[in.Aspect] = struct{}{}

		if in.Priority != "" && !in.Priority.Valid() {
			return nil, &errs.FormatError{Aspect: in.Aspect, Reason: "non-canonical priority " + string(in.Priority)}
		}

		s, err := n.build(in.Aspect, in.MentionCount, in.SentimentBreakdown)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (n *Normalizer) build(name string, mentions int, b models.SentimentBreakdown) (models.AspectSummary, error) {
	if strings.TrimSpace(name) == "" {
		return models.AspectSummary{}, &errs.FormatError{Reason: "empty aspect name"}
	}
	if err := CheckInvariant(name, mentions, b); err != nil {
		return models.AspectSummary{}, err
	}
	if mentions < 1 {
		return models.AspectSummary{}, &errs.FormatError{Aspect: name, Reason: "aspect without mentions"}
	}

	return n.ranker.Apply(models.AspectSummary{
		Aspect:             name,
		MentionCount:       mentions,
		SentimentBreakdown: b,
	}), nil
}

func (n *Normalizer) sort(out []models.AspectSummary) {
	switch n.order {
	case OrderMentions:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].MentionCount > out[j].MentionCount
		})
	case OrderAspect:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Aspect < out[j].Aspect
		})
	}
}

// Result normalizes a shape and attaches recommendations.
func (n *Normalizer) Result(s Shape, cfg ranking.Config) (models.AnalysisResult, error) {
	aspects, err := n.Normalize(s)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return models.AnalysisResult{
		Aspects:         aspects,
		Recommendations: ranking.Recommend(aspects, cfg),
	}, nil
}
