// Package fingerprint reduces a title+link into a stable topic key used to
// detect re-coverage of the same story across sources.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// maxTokens bounds key cardinality so minor re-ordering or extra words in a
// headline still hash to the same topic. Changing it changes key identity for
// every stored fingerprint, so it is a constant, not configuration.
const maxTokens = 16

var (
	bracketRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
)

// Headline stopwords. Broader than everyday articles and prepositions: filler
// words news outlets rotate freely ("today", "breaking") must not change the key.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "by": {}, "with": {}, "from": {},
	"as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "has": {},
	"have": {}, "had": {}, "its": {}, "his": {}, "her": {}, "their": {},
	"after": {}, "before": {}, "amid": {}, "over": {}, "under": {},
	"today": {}, "tonight": {}, "yesterday": {}, "update": {}, "updates": {},
	"breaking": {}, "live": {}, "watch": {}, "latest": {}, "exclusive": {},
	"news": {}, "report": {}, "says": {}, "say": {}, "said": {},
	"hold": {}, "held": {}, "ahead": {}, "set": {}, "near": {},
}

// stem strips light plural suffixes so "elections" and "election" are one token.
func stem(tok string) string {
	if strings.HasSuffix(tok, "ies") && len(tok) > 3 {
		return tok[:len(tok)-3] + "y"
	}
	if strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 3 {
		return tok[:len(tok)-1]
	}
	return tok
}

// Compute derives the topic key for a title and link. Equivalent inputs — the
// same salient tokens in any order, with extra stopwords, plus the same link
// path — always yield the same key.
func Compute(title, link string) (string, error) {
	toks := salientTokens(title)
	if len(toks) == 0 && link == "" {
		return "", fmt.Errorf("nothing to fingerprint")
	}

	payload := strings.Join(toks, " ") + "|" + linkPath(link)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

// salientTokens normalizes a title into its sorted, deduplicated, bounded
// token list.
func salientTokens(title string) []string {
	s := strings.ToLower(title)
	s = bracketRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	seen := make(map[string]struct{})
	var toks []string
	for _, tok := range strings.Fields(b.String()) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tok = stem(tok)
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		toks = append(toks, tok)
	}

	sort.Strings(toks)
	if len(toks) > maxTokens {
		toks = toks[:maxTokens]
	}
	return toks
}

// linkPath strips scheme and host, keeping only the path as a second signal.
func linkPath(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return strings.TrimSpace(link)
	}
	return strings.TrimSuffix(u.EscapedPath(), "/")
}
