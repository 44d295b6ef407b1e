package ranking

import (
	"github.com/spacesedan/aspectflow/internal/models"
)

// Policy decides the priority when no single sentiment strictly dominates.
// NegativeTie applies when negative shares the top count, NonNegativeTie
// when positive and neutral share it.
type Policy struct {
	NegativeTie    models.Priority
	NonNegativeTie models.Priority
}

func DefaultPolicy() Policy {
	return Policy{
		NegativeTie:    models.PriorityMedium,
		NonNegativeTie: models.PriorityMedium,
	}
}

type Assessment struct {
	Priority     models.Priority
	Dominant     models.Sentiment
	NetSentiment float64
}

type Ranker struct {
	policy Policy
}

func NewRanker(p Policy) *Ranker {
	if !p.NegativeTie.Valid() {
		p.NegativeTie = models.PriorityMedium
	}
	if !p.NonNegativeTie.Valid() {
		p.NonNegativeTie = models.PriorityMedium
	}
	return &Ranker{policy: p}
}

func (r *Ranker) Assess(b models.SentimentBreakdown) Assessment {
	return Assessment{
		Priority:     r.priority(b),
		Dominant:     Dominant(b),
		NetSentiment: NetSentiment(b),
	}
}

// Apply fills the derived fields of an aspect summary.
func (r *Ranker) Apply(s models.AspectSummary) models.AspectSummary {
	a := r.Assess(s.SentimentBreakdown)
	s.Priority = a.Priority
	s.DominantSentiment = a.Dominant
	s.NetSentiment = a.NetSentiment
	return s
}

func (r *Ranker) priority(b models.SentimentBreakdown) models.Priority {
	pos, neu, neg := b.Positive, b.Neutral, b.Negative

	switch {
	case neg > pos && neg > neu:
		return models.PriorityHigh
	case pos > neu && pos > neg, neu > pos && neu > neg:
		return models.PriorityLow
	case neg >= pos && neg >= neu:
		return r.policy.NegativeTie
	default:
		return r.policy.NonNegativeTie
	}
}

// Dominant breaks ties toward negative, then neutral.
func Dominant(b models.SentimentBreakdown) models.Sentiment {
	switch {
	case b.Negative >= b.Neutral && b.Negative >= b.Positive:
		return models.SentimentNegative
	case b.Neutral >= b.Positive:
		return models.SentimentNeutral
	default:
		return models.SentimentPositive
	}
}

// NetSentiment is (positive - negative) / total as a percentage.
func NetSentiment(b models.SentimentBreakdown) float64 {
	total := b.Total()
	if total == 0 {
		return 0
	}
	return float64(b.Positive-b.Negative) / float64(total) * 100
}
