// Package topics groups feedback texts into discussion themes.
package topics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/spacesedan/aspectflow/internal/models"
)

const (
	MIN_TEXTS          = 10
	MIN_TOPIC_SIZE     = 2
	MAX_TOPICS         = 10
	MAX_KEYWORDS       = 10
	REPRESENTATIVE_DOC = 3
	MIN_TERM_LENGTH    = 3
)

type Extractor interface {
	Extract(ctx context.Context, texts []string) (models.TopicResult, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, texts []string) (models.TopicResult, error)

func (f ExtractorFunc) Extract(ctx context.Context, texts []string) (models.TopicResult, error) {
	return f(ctx, texts)
}

type Options struct {
	MinTopicSize int
	MaxTopics    int
}

// KeywordExtractor seeds topics greedily from the unigram that covers the
// most unassigned texts. Each text belongs to at most one topic; texts no
// seed covers are outliers.
type KeywordExtractor struct {
	opts Options
}

func NewKeywordExtractor(opts Options) *KeywordExtractor {
	if opts.MinTopicSize <= 0 {
		opts.MinTopicSize = MIN_TOPIC_SIZE
	}
	if opts.MaxTopics <= 0 {
		opts.MaxTopics = MAX_TOPICS
	}
	return &KeywordExtractor{opts: opts}
}

type document struct {
	unigrams map[string]struct{}
	terms    map[string]struct{}
}

func (k *KeywordExtractor) Extract(ctx context.Context, texts []string) (models.TopicResult, error) {
	docs := make([]document, len(texts))
	for i, t := range texts {
		docs[i] = parse(t)
	}

	assigned := make([]bool, len(texts))
	result := models.TopicResult{Topics: []models.Topic{}}
	for len(result.Topics) < k.opts.MaxTopics {
		if err := ctx.Err(); err != nil {
			return models.TopicResult{}, err
		}
		seed, members := k.nextSeed(docs, assigned)
		if seed == "" {
			break
		}
		for _, i := range members {
			assigned[i] = true
		}
		result.Topics = append(result.Topics, topicOf(len(result.Topics), seed, members, docs, texts))
	}

	for _, a := range assigned {
		if !a {
			result.Outliers++
		}
	}

	slog.Debug("[Topics] Extracted topics",
		slog.Int("texts", len(texts)),
		slog.Int("topics", len(result.Topics)),
		slog.Int("outliers", result.Outliers))
	return result, nil
}

// nextSeed returns the unigram covering the most unassigned documents, the
// alphabetically first on ties, and the documents it covers.
func (k *KeywordExtractor) nextSeed(docs []document, assigned []bool) (string, []int) {
	coverage := map[string][]int{}
	for i, d := range docs {
		if assigned[i] {
			continue
		}
		for w := range d.unigrams {
			coverage[w] = append(coverage[w], i)
		}
	}

	best := ""
	for w, idx := range coverage {
		if len(idx) < k.opts.MinTopicSize {
			continue
		}
		if best == "" || len(idx) > len(coverage[best]) || (len(idx) == len(coverage[best]) && w < best) {
			best = w
		}
	}
	if best == "" {
		return "", nil
	}
	members := coverage[best]
	sort.Ints(members)
	return best, members
}

func topicOf(id int, seed string, members []int, docs []document, texts []string) models.Topic {
	freq := map[string]int{}
	for _, i := range members {
		for term := range docs[i].terms {
			freq[term]++
		}
	}
	delete(freq, seed)

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	keywords := append([]string{seed}, terms[:min(len(terms), MAX_KEYWORDS-1)]...)
	reps := make([]string, 0, REPRESENTATIVE_DOC)
	for _, i := range members[:min(len(members), REPRESENTATIVE_DOC)] {
		reps = append(reps, texts[i])
	}
	return models.Topic{ID: id, Keywords: keywords, Count: len(members), RepresentativeDocuments: reps}
}

// parse keeps lowercase words of at least MIN_TERM_LENGTH letters that are
// not stopwords, as unigrams and adjacent bigrams.
func parse(text string) document {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	d := document{unigrams: map[string]struct{}{}, terms: map[string]struct{}{}}
	prev := ""
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len(w) < MIN_TERM_LENGTH || stopwords[w] {
			prev = ""
			continue
		}
		d.unigrams[w] = struct{}{}
		d.terms[w] = struct{}{}
		if prev != "" {
			d.terms[prev+" "+w] = struct{}{}
		}
		prev = w
	}
	return d
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "any": true, "can": true, "had": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "have": true, "his": true, "how": true, "its": true,
	"may": true, "new": true, "now": true, "own": true, "see": true, "two": true, "who": true,
	"did": true, "get": true, "got": true, "him": true, "let": true, "she": true, "too": true,
	"use": true, "way": true, "this": true, "that": true, "with": true, "from": true, "they": true,
	"them": true, "then": true, "than": true, "there": true, "their": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "were": true, "will": true,
	"would": true, "could": true, "should": true, "been": true, "being": true, "into": true,
	"just": true, "very": true, "really": true, "also": true, "some": true, "such": true,
	"only": true, "other": true, "over": true, "after": true, "before": true, "about": true,
	"again": true, "because": true, "does": true, "doing": true, "each": true, "few": true,
	"more": true, "most": true, "much": true, "here": true, "these": true, "those": true,
	"your": true, "yours": true, "mine": true, "ours": true, "it's": true, "i'm": true,
	"don't": true, "didn't": true, "isn't": true, "wasn't": true, "can't": true, "won't": true,
	"every": true, "even": true, "still": true, "ever": true, "lot": true, "like": true,
	"make": true, "made": true, "well": true, "yet": true, "thing": true, "things": true,
}
