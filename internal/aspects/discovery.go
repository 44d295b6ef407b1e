package aspects

import "strings"

const MAX_PHRASE_TOKENS = 2

var determiners = map[string]struct{}{
	"the": {}, "my": {}, "your": {}, "our": {}, "their": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "his": {}, "her": {}, "its": {},
}

// Opinion words sit between a determiner and the noun but are not aspects.
var modifiers = map[string]struct{}{
	"great": {}, "good": {}, "bad": {}, "terrible": {}, "awful": {}, "amazing": {},
	"new": {}, "old": {}, "best": {}, "worst": {}, "poor": {}, "nice": {},
	"whole": {}, "entire": {}, "very": {}, "really": {}, "first": {}, "last": {},
}

var stopwords = map[string]struct{}{
	"is": {}, "was": {}, "are": {}, "were": {}, "be": {}, "been": {}, "am": {},
	"has": {}, "have": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"and": {}, "or": {}, "but": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "at": {}, "by": {}, "from": {}, "as": {}, "so": {},
	"not": {}, "no": {}, "too": {}, "very": {}, "just": {}, "really": {},
	"a": {}, "an": {}, "it": {}, "can": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "keeps": {}, "broke": {}, "died": {}, "works": {}, "stopped": {},
}

var genericWords = map[string]struct{}{
	"it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "thing": {},
	"something": {}, "i": {}, "you": {}, "we": {}, "they": {}, "he": {}, "she": {},
	"which": {}, "who": {}, "what": {}, "issue": {}, "problem": {}, "everything": {},
	"anything": {}, "one": {}, "time": {}, "way": {}, "lot": {},
}

// Present-tense verbs that commonly follow the noun they describe.
var verbs = map[string]struct{}{
	"crashes": {}, "crash": {}, "freezes": {}, "freeze": {}, "fails": {}, "fail": {},
	"breaks": {}, "break": {}, "lags": {}, "loads": {}, "runs": {}, "feels": {},
	"looks": {}, "seems": {}, "gets": {}, "takes": {}, "makes": {}, "comes": {},
	"goes": {}, "needs": {}, "drains": {}, "dies": {}, "stops": {}, "hangs": {},
	"sucks": {}, "rocks": {}, "leaks": {}, "overheats": {}, "glitches": {},
}

type phrase struct {
	text  string
	norms []string
	start int
}

// discoverPhrases takes up to two content tokens following a determiner.
func discoverPhrases(tokens []token) []phrase {
	var out []phrase
	for i := 0; i < len(tokens); i++ {
		if _, ok := determiners[strings.ToLower(tokens[i].raw)]; !ok {
			continue
		}

		j := i + 1
		for j < len(tokens) {
			if _, ok := modifiers[strings.ToLower(tokens[j].raw)]; !ok {
				break
			}
			j++
		}

		var words []token
		for k := j; k < len(tokens) && len(words) < MAX_PHRASE_TOKENS; k++ {
			lower := strings.ToLower(tokens[k].raw)
			if isBoundary(lower) || (len(words) > 0 && isSibilantVerb(lower)) {
				break
			}
			words = append(words, tokens[k])
		}
		if len(words) == 0 {
			continue
		}

		p := phrase{start: words[0].start}
		parts := make([]string, 0, len(words))
		for _, w := range words {
			parts = append(parts, strings.ToLower(w.raw))
			p.norms = append(p.norms, w.norm)
		}
		p.text = strings.Join(parts, " ")

		if isGeneric(p) || len(p.text) <= 1 {
			continue
		}
		out = append(out, p)
		i = j + len(words) - 1
	}
	return out
}

func isGeneric(p phrase) bool {
	if _, ok := genericWords[p.text]; ok {
		return true
	}
	_, ok := genericWords[strings.Join(p.norms, " ")]
	return ok
}

func isBoundary(lower string) bool {
	if _, ok := stopwords[lower]; ok {
		return true
	}
	if _, ok := determiners[lower]; ok {
		return true
	}
	if _, ok := modifiers[lower]; ok {
		return true
	}
	if _, ok := verbs[lower]; ok {
		return true
	}
	// verbs and adverbs, roughly
	return strings.HasSuffix(lower, "ed") || strings.HasSuffix(lower, "ly") ||
		strings.HasSuffix(lower, "ing")
}

// isSibilantVerb matches -es verb forms such as "smashes" or "fizzes". It is
// only applied after the first noun so plurals like "boxes" still start a phrase.
func isSibilantVerb(lower string) bool {
	for _, suffix := range []string{"shes", "ches", "xes", "zes", "sses"} {
		if len(lower) > len(suffix)+1 && strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
