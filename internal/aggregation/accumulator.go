package aggregation

import (
	"github.com/spacesedan/aspectflow/internal/errs"
	"github.com/spacesedan/aspectflow/internal/models"
)

const MAX_EXAMPLES = 5

type bucket struct {
	breakdown models.SentimentBreakdown
	mentions  int
	examples  []string
}

// Accumulator is the mutable keyed tally for one analysis run. It is owned
// by a single goroutine and is not safe for concurrent use.
type Accumulator struct {
	order   []string
	buckets map[string]*bucket
}

func NewAccumulator() *Accumulator {
	return &Accumulator{buckets: make(map[string]*bucket)}
}

func (a *Accumulator) Add(m models.AspectMention) error {
	if err := validateMention(m); err != nil {
		return err
	}

	b := a.bucket(m.Aspect)
	switch m.Sentiment {
	case models.SentimentPositive:
		b.breakdown.Positive++
	case models.SentimentNeutral:
		b.breakdown.Neutral++
	case models.SentimentNegative:
		b.breakdown.Negative++
	}
	b.mentions++

	if m.Context != "" && len(b.examples) < MAX_EXAMPLES {
		b.examples = append(b.examples, m.Context)
	}
	return nil
}

// AddAll adds every mention or none of them.
func (a *Accumulator) AddAll(ms []models.AspectMention) error {
	for _, m := range ms {
		if err := validateMention(m); err != nil {
			return err
		}
	}
	for _, m := range ms {
		if err := a.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds other into a. Counts are commutative and associative; new
// aspects from other are appended after a's existing order.
func (a *Accumulator) Merge(other *Accumulator) {
	for _, name := range other.order {
		src := other.buckets[name]
		dst := a.bucket(name)
		dst.breakdown.Positive += src.breakdown.Positive
		dst.breakdown.Neutral += src.breakdown.Neutral
		dst.breakdown.Negative += src.breakdown.Negative
		dst.mentions += src.mentions
		for _, ex := range src.examples {
			if len(dst.examples) >= MAX_EXAMPLES {
				break
			}
			dst.examples = append(dst.examples, ex)
		}
	}
}

func (a *Accumulator) Len() int {
	return len(a.order)
}

func (a *Accumulator) Snapshot() *Tallies {
	t := &Tallies{
		order:    append([]string(nil), a.order...),
		counts:   make(map[string]Tally, len(a.order)),
		examples: make(map[string][]string, len(a.order)),
	}
	for _, name := range a.order {
		b := a.buckets[name]
		t.counts[name] = Tally{Breakdown: b.breakdown, MentionCount: b.mentions}
		t.examples[name] = append([]string(nil), b.examples...)
	}
	return t
}

func (a *Accumulator) bucket(name string) *bucket {
	b, ok := a.buckets[name]
	if !ok {
		b = &bucket{}
		a.buckets[name] = b
		a.order = append(a.order, name)
	}
	return b
}

func validateMention(m models.AspectMention) error {
	if m.Aspect == "" {
		return &errs.FormatError{Reason: "mention without aspect name"}
	}
	switch m.Sentiment {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		return nil
	}
	return &errs.FormatError{Aspect: m.Aspect, Reason: "unknown sentiment " + string(m.Sentiment)}
}

type Tally struct {
	Breakdown    models.SentimentBreakdown
	MentionCount int
}

// Tallies is the frozen keyed form, consumed only by the Normalizer.
type Tallies struct {
	order    []string
	counts   map[string]Tally
	examples map[string][]string
}

func (t *Tallies) Get(aspect string) (Tally, bool) {
	v, ok := t.counts[aspect]
	return v, ok
}

func (t *Tallies) Len() int {
	return len(t.order)
}

func (t *Tallies) Examples() []models.AspectExamples {
	out := make([]models.AspectExamples, 0, len(t.order))
	for _, name := range t.order {
		if len(t.examples[name]) == 0 {
			continue
		}
		out = append(out, models.AspectExamples{Aspect: name, Contexts: t.examples[name]})
	}
	return out
}

// CheckInvariant fails when a mention count disagrees with its breakdown.
func CheckInvariant(aspect string, mentionCount int, b models.SentimentBreakdown) error {
	if sum := b.Total(); sum != mentionCount {
		return &errs.AggregationInvariantError{Aspect: aspect, MentionCount: mentionCount, Sum: sum}
	}
	return nil
}
