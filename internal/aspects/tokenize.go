package aspects

import (
	"strings"
	"unicode"
)

type token struct {
	raw   string
	norm  string
	start int // rune offset into the source text
}

// tokenize splits on anything that is not a letter or digit and keeps rune
// offsets so context windows can be cut from the original text.
func tokenize(runes []rune) []token {
	var tokens []token
	start := -1
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = appendToken(tokens, runes[start:i], start)
			start = -1
		}
	}
	if start >= 0 {
		tokens = appendToken(tokens, runes[start:], start)
	}
	return tokens
}

func appendToken(tokens []token, word []rune, start int) []token {
	raw := strings.Trim(string(word), "'")
	if raw == "" {
		return tokens
	}
	return append(tokens, token{raw: raw, norm: stem(strings.ToLower(raw)), start: start})
}

// stem strips common English inflections. Both keywords and text pass
// through it so the two sides always agree.
func stem(w string) string {
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case n > 4 && strings.HasSuffix(w, "sses"):
		return w[:n-2]
	case n > 4 && (strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "xes")):
		return w[:n-2]
	case n > 5 && strings.HasSuffix(w, "ing"):
		return w[:n-3]
	case n > 4 && strings.HasSuffix(w, "ed") && !strings.HasSuffix(w, "eed"):
		return w[:n-2]
	case n > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

func normalizePhrase(phrase string) []string {
	tokens := tokenize([]rune(phrase))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.norm)
	}
	return out
}
