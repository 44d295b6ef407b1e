package aspects

import (
	"strings"
)

type Source string

const (
	SourcePredefined Source = "predefined"
	SourceDiscovered Source = "discovered"
)

const DEFAULT_CONTEXT_WINDOW = 100

// Detection is one aspect found in one text. Aspect is already upper-cased.
type Detection struct {
	Aspect   string
	Term     string
	Context  string
	Position int
	Source   Source
}

type Options struct {
	ContextWindow int
	Discovery     bool
}

type compiledCategory struct {
	name     string
	keywords []compiledKeyword
}

type compiledKeyword struct {
	raw    string
	tokens []string
}

type Detector struct {
	categories []compiledCategory
	// every stemmed keyword token, used to suppress discovered phrases
	keywordTokens map[string]struct{}
	rawKeywords   []string
	window        int
	discovery     bool
}

func NewDetector(t Taxonomy, opts Options) *Detector {
	d := &Detector{
		keywordTokens: make(map[string]struct{}),
		window:        opts.ContextWindow,
		discovery:     opts.Discovery,
	}
	if d.window <= 0 {
		d.window = DEFAULT_CONTEXT_WINDOW
	}

	for _, c := range t.Categories {
		cc := compiledCategory{name: strings.ToUpper(c.Name)}
		for _, kw := range c.Keywords {
			tokens := normalizePhrase(kw)
			if len(tokens) == 0 {
				continue
			}
			cc.keywords = append(cc.keywords, compiledKeyword{raw: strings.ToLower(kw), tokens: tokens})
			d.rawKeywords = append(d.rawKeywords, strings.ToLower(kw))
			for _, tok := range tokens {
				d.keywordTokens[tok] = struct{}{}
			}
		}
		d.categories = append(d.categories, cc)
	}
	return d
}

// Detect never returns duplicates. Taxonomy categories come first in
// taxonomy order, then discovered phrases in text order.
func (d *Detector) Detect(text string) []Detection {
	runes := []rune(text)
	tokens := tokenize(runes)
	if len(tokens) == 0 {
		return nil
	}

	var found []Detection
	seen := make(map[string]struct{})

	for _, c := range d.categories {
		for _, kw := range c.keywords {
			pos, ok := matchSequence(tokens, kw.tokens)
			if !ok {
				continue
			}
			found = append(found, Detection{
				Aspect:   c.name,
				Term:     kw.raw,
				Context:  contextWindow(runes, tokens[pos].start, d.window),
				Position: tokens[pos].start,
				Source:   SourcePredefined,
			})
			seen[c.name] = struct{}{}
			break // one match per category
		}
	}

	if !d.discovery {
		return found
	}

	for _, p := range discoverPhrases(tokens) {
		if d.overlapsTaxonomy(p) {
			continue
		}
		name := strings.ToUpper(p.text)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		found = append(found, Detection{
			Aspect:   name,
			Term:     p.text,
			Context:  contextWindow(runes, p.start, d.window),
			Position: p.start,
			Source:   SourceDiscovered,
		})
	}
	return found
}

func (d *Detector) overlapsTaxonomy(p phrase) bool {
	for _, tok := range p.norms {
		if _, ok := d.keywordTokens[tok]; ok {
			return true
		}
	}
	for _, kw := range d.rawKeywords {
		if strings.Contains(p.text, kw) {
			return true
		}
	}
	return false
}

func matchSequence(tokens []token, seq []string) (int, bool) {
	for i := 0; i+len(seq) <= len(tokens); i++ {
		matched := true
		for j, s := range seq {
			if tokens[i+j].norm != s {
				matched = false
				break
			}
		}
		if matched {
			return i, true
		}
	}
	return 0, false
}

func contextWindow(runes []rune, position, window int) string {
	start := max(0, position-window)
	end := min(len(runes), position+window)
	return strings.TrimSpace(string(runes[start:end]))
}
