package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func ParseSentiment(raw string) (Sentiment, error) {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return s, nil
	default:
		return "", fmt.Errorf("[Models] unknown sentiment label %q", raw)
	}
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority is the only place a priority token is re-cased.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(raw))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("[Models] unknown priority %q", raw)
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePriority(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// AspectMention is one (aspect, sentiment) pair for one item.
type AspectMention struct {
	ItemID    string
	Aspect    string
	Sentiment Sentiment
	Context   string
}

type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

func (b SentimentBreakdown) Total() int {
	return b.Positive + b.Neutral + b.Negative
}

func (b SentimentBreakdown) Count(s Sentiment) int {
	switch s {
	case SentimentPositive:
		return b.Positive
	case SentimentNeutral:
		return b.Neutral
	case SentimentNegative:
		return b.Negative
	}
	return 0
}

type AspectSummary struct {
	Aspect             string             `json:"aspect"`
	MentionCount       int                `json:"mention_count"`
	Priority           Priority           `json:"priority"`
	SentimentBreakdown SentimentBreakdown `json:"sentiment_breakdown"`

	DominantSentiment Sentiment `json:"-"`
	NetSentiment      float64   `json:"-"`
}

// Percent returns the share of mentions with the given label, 0-100.
func (a AspectSummary) Percent(s Sentiment) float64 {
	if a.MentionCount == 0 {
		return 0
	}
	return float64(a.SentimentBreakdown.Count(s)) / float64(a.MentionCount) * 100
}

type Recommendations struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

type AnalysisResult struct {
	Aspects         []AspectSummary `json:"aspects"`
	Recommendations Recommendations `json:"recommendations"`
}

// EmptyResult renders as empty arrays rather than null.
func EmptyResult() AnalysisResult {
	return AnalysisResult{
		Aspects: []AspectSummary{},
		Recommendations: Recommendations{
			Strengths:    []string{},
			Improvements: []string{},
		},
	}
}
