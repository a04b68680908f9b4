package pipeline

import (
	"strings"

	"github.com/driftwire/newsmint/internal/database"
	"github.com/driftwire/newsmint/internal/imagesel"
	"github.com/driftwire/newsmint/internal/tokens"
)

const (
	maxSlugLen     = 80
	maxMetaTitle   = 60
	maxMetaDescLen = 160
)

// buildDraft assembles the draft record from the item, its generated text,
// and the image pick.
func buildDraft(item *database.SourceItem, gen *database.GeneratedPayload, pick *imagesel.Pick, category string, tags []string) *database.Draft {
	return &database.Draft{
		ItemID:          item.ID,
		Title:           gen.Title,
		Slug:            slugify(gen.Title),
		Summary:         gen.Summary,
		BodyHTML:        gen.BodyHTML,
		Category:        category,
		Tags:            tags,
		ImagePublicID:   pick.PublicID,
		ImageURL:        pick.URL,
		ImageTier:       pick.Tier,
		ImageAlt:        gen.Title,
		MetaTitle:       truncate(gen.Title, maxMetaTitle),
		MetaDescription: truncate(gen.Summary, maxMetaDescLen),
		GeoMode:         "global",
		SourceURL:       item.Link,
		SourceLabel:     deref(item.Source),
		Similarity:      gen.Similarity,
		Strict:          gen.Strict,
		WordCount:       gen.WordCount,
	}
}

// draftTags canonicalizes the generator's keywords into the draft tag list.
// A tag list of only generic terms would make the draft unroutable, so when
// the keywords carry no topical tag the strong tokens extracted from the
// item fill in.
func draftTags(keywords []string, toks tokens.Set) []string {
	var out []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		tok := tokens.Canon(kw)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	if !hasTopicalTag(out) {
		for _, tok := range toks.Strong() {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// hasTopicalTag reports whether at least one tag is non-generic.
func hasTopicalTag(tags []string) bool {
	for _, tag := range tags {
		if !tokens.IsGeneric(tag) {
			return true
		}
	}
	return false
}

// slugify turns a title into a URL slug, cut at a hyphen boundary.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) <= maxSlugLen {
		return slug
	}
	cut := strings.LastIndexByte(slug[:maxSlugLen], '-')
	if cut <= 0 {
		cut = maxSlugLen
	}
	return slug[:cut]
}

// truncate cuts text at a word boundary within max runes.
func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := strings.LastIndexByte(text[:max], ' ')
	if cut <= 0 {
		cut = max
	}
	return strings.TrimRight(text[:cut], " .,;:") + "…"
}
