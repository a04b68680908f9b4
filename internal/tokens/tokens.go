// Package tokens normalizes free-text tags and titles into canonical token
// sets used for fingerprinting context and image matching.
package tokens

import (
	"sort"
	"strings"
)

// Set is a canonical token set. Values are always normalized before insert.
type Set map[string]struct{}

// NewSet builds a set from already-normalized tokens.
func NewSet(toks ...string) Set {
	s := make(Set, len(toks))
	for _, t := range toks {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports membership.
func (s Set) Has(tok string) bool {
	_, ok := s[tok]
	return ok
}

// Add inserts a normalized token.
func (s Set) Add(tok string) {
	if tok != "" {
		s[tok] = struct{}{}
	}
}

// List returns the tokens sorted, for stable output and logging.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Strong returns only the non-generic tokens, sorted.
func (s Set) Strong() []string {
	var out []string
	for t := range s {
		if !IsGeneric(t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"over": {}, "under": {}, "after": {}, "before": {}, "about": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "has": {}, "have": {},
	"was": {}, "were": {}, "will": {}, "are": {}, "his": {}, "her": {},
	"its": {}, "their": {}, "amid": {}, "says": {}, "say": {}, "said": {},
	"new": {}, "latest": {}, "today": {}, "update": {}, "live": {},
}

// generic lists overly broad topical words. Generic tokens participate in
// matching but must never be sufficient alone to justify a selection.
var generic = map[string]struct{}{
	"news": {}, "world": {}, "politics": {}, "breaking": {}, "national": {},
	"international": {}, "india": {}, "global": {}, "trending": {},
	"headline": {}, "story": {}, "report": {}, "sport": {}, "top": {},
}

// synonyms maps narrow forms to a broader token emitted alongside them.
var synonyms = map[string]string{
	"ipl":      "cricket",
	"t20":      "cricket",
	"odi":      "cricket",
	"fifa":     "football",
	"epl":      "football",
	"nba":      "basketball",
	"poll":     "election",
	"sensex":   "market",
	"nifty":    "market",
	"bollywood": "cinema",
}

// IsGeneric reports whether a token is too broad to justify a match alone.
func IsGeneric(tok string) bool {
	_, ok := generic[tok]
	return ok
}

// Normalize lowercases a raw tag, strips a leading hash mark and any
// character outside [a-z0-9_-].
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "#")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canon reduces one raw tag to the canonical form used for matching against
// an extracted set. Generic words are kept verbatim so they stay on the
// generic list after canonicalization ("news" must not become "new").
func Canon(raw string) string {
	tok := Normalize(raw)
	if IsGeneric(tok) {
		return tok
	}
	return stem(tok)
}

// stem applies light suffix stripping: "ies" -> "y", trailing "s" on words
// longer than 3 characters. Callers exempt generic words first.
func stem(tok string) string {
	if strings.HasSuffix(tok, "ies") && len(tok) > 3 {
		return tok[:len(tok)-3] + "y"
	}
	if strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 3 {
		return tok[:len(tok)-1]
	}
	return tok
}

// Extract derives the canonical token set for an article from its title,
// summary, category, and any pre-existing tags. Compound tags split into
// their parts plus the joined form; the synonym table runs after base
// extraction.
func Extract(title, summary, category string, tags []string) Set {
	set := make(Set)

	add := func(raw string) {
		tok := Normalize(raw)
		if tok == "" {
			return
		}
		for _, part := range expand(tok) {
			if !IsGeneric(part) {
				part = stem(part)
			}
			if len(part) < 3 {
				continue
			}
			if _, stop := stopwords[part]; stop {
				continue
			}
			set[part] = struct{}{}
		}
	}

	for _, t := range tags {
		add(t)
	}
	for _, w := range strings.Fields(title) {
		add(w)
	}
	for _, w := range strings.Fields(summary) {
		add(w)
	}
	if category != "" {
		add(category)
	}

	// Synonym pass over the extracted set.
	var broadened []string
	for tok := range set {
		if broad, ok := synonyms[tok]; ok {
			broadened = append(broadened, broad)
		}
	}
	for _, tok := range broadened {
		set[tok] = struct{}{}
	}

	return set
}

// expand splits a compound token on '_' and '-' into its parts plus the
// joined form, so "iran_missile" yields "iran", "missile", "iranmissile".
func expand(tok string) []string {
	if !strings.ContainsAny(tok, "_-") {
		return []string{tok}
	}

	parts := strings.FieldsFunc(tok, func(r rune) bool {
		return r == '_' || r == '-'
	})
	joined := strings.Join(parts, "")

	out := make([]string, 0, len(parts)+1)
	out = append(out, parts...)
	if joined != "" {
		out = append(out, joined)
	}
	return out
}
