package rewrite

import (
	"strings"
	"testing"
)

const sample = "The quick brown fox jumps over the lazy dog near the river bank every single morning"

func TestSimilarityIdentity(t *testing.T) {
	if sim := Similarity(sample, sample); sim != 1.0 {
		t.Errorf("expected similarity 1.0 for identical text, got %v", sim)
	}
}

func TestSimilarityUnrelated(t *testing.T) {
	other := "Parliament passed the annual budget after a long debate on infrastructure spending priorities"
	if sim := Similarity(sample, other); sim > 0.05 {
		t.Errorf("expected near-zero similarity for unrelated text, got %v", sim)
	}
}

func TestSimilarityFillerLowersScore(t *testing.T) {
	copyish := sample
	padded := sample + " Meanwhile officials in the capital discussed entirely different matters concerning trade policy and agriculture"

	simCopy := Similarity(sample, copyish)
	simPadded := Similarity(sample, padded)

	if simPadded >= simCopy {
		t.Errorf("expected filler to lower similarity: %v >= %v", simPadded, simCopy)
	}
}

func TestSimilarityTooShort(t *testing.T) {
	if sim := Similarity("two words", sample); sim != 0 {
		t.Errorf("expected 0 similarity when a text has no 3-grams, got %v", sim)
	}
	if sim := Similarity("", ""); sim != 0 {
		t.Errorf("expected 0 similarity for empty texts, got %v", sim)
	}
}

func TestSimilarityIgnoresCaseAndPunctuation(t *testing.T) {
	a := "The Quick Brown Fox!"
	b := "the quick... brown fox"
	if sim := Similarity(a, b); sim != 1.0 {
		t.Errorf("expected 1.0 across case/punctuation, got %v", sim)
	}
}

func TestSharedTrigrams(t *testing.T) {
	a := "the prime minister said the economy is growing fast this year"
	b := "reports claim the prime minister said the economy is improving"

	shared := SharedTrigrams(a, b, 3)
	if len(shared) == 0 {
		t.Fatal("expected shared trigrams")
	}
	if len(shared) > 3 {
		t.Errorf("expected at most 3 trigrams, got %d", len(shared))
	}
	for _, g := range shared {
		if len(strings.Fields(g)) != 3 {
			t.Errorf("expected 3-token grams, got %q", g)
		}
		if !strings.Contains(a, g) || !strings.Contains(b, g) {
			t.Errorf("gram %q not present in both texts", g)
		}
	}
}

func TestSharedTrigramsDisjoint(t *testing.T) {
	if shared := SharedTrigrams(sample, "totally different words entirely here now", 5); len(shared) != 0 {
		t.Errorf("expected no shared trigrams, got %v", shared)
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("one two  three\nfour"); n != 4 {
		t.Errorf("expected 4 words, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Errorf("expected 0 words, got %d", n)
	}
}
