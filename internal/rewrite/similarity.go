package rewrite

import (
	"sort"
	"strings"
)

// words lowercases text and strips punctuation, returning its token stream.
func words(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// trigrams returns the multiset of 3-token windows in text.
func trigrams(text string) map[string]int {
	toks := words(text)
	if len(toks) < 3 {
		return nil
	}
	grams := make(map[string]int, len(toks)-2)
	for i := 0; i+3 <= len(toks); i++ {
		grams[strings.Join(toks[i:i+3], " ")]++
	}
	return grams
}

// Similarity is 3-gram Jaccard similarity: intersection over union of the
// distinct 3-token windows of both texts. Texts too short to yield a single
// 3-gram score 0.
func Similarity(a, b string) float64 {
	ga := trigrams(a)
	gb := trigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}

	intersection := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			intersection++
		}
	}
	union := len(ga) + len(gb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SharedTrigrams returns the top-n 3-grams present in both texts, most
// frequent first. These become the "avoid these phrases" feedback on retry.
func SharedTrigrams(a, b string, n int) []string {
	ga := trigrams(a)
	gb := trigrams(b)

	type shared struct {
		gram  string
		count int
	}
	var all []shared
	for g, ca := range ga {
		if cb, ok := gb[g]; ok {
			all = append(all, shared{gram: g, count: ca + cb})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].gram < all[j].gram
	})

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.gram
	}
	return out
}

// WordCount counts tokens in already-markup-free text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
