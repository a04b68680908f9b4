// Package imagesel picks a hero image for an article from the tagged asset
// catalog, falling through a fixed ladder of tiers so every article ends up
// with an image even when the catalog has nothing relevant.
package imagesel

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/driftwire/newsmint/internal/database"
	"github.com/driftwire/newsmint/internal/tokens"
)

// Selection tiers, in fall-through order.
const (
	TierStrong   = 1 // tag intersection with the article's tokens
	TierCategory = 2 // same category, no tag overlap needed
	TierDefault  = 3 // asset explicitly tagged "default"
	TierFallback = 4 // static config value, not a real catalog pick
)

const defaultTag = "default"

// Catalog is the slice of the store the selector needs.
type Catalog interface {
	AssetsMatchingTags(tags []string, limit int) ([]database.ImageAsset, error)
	AssetsByCategory(category string, limit int) ([]database.ImageAsset, error)
	AssetsWithTag(tag string, limit int) ([]database.ImageAsset, error)
}

// Config tunes eligibility and scan bounds.
type Config struct {
	MinStrongMatches int
	CandidateLimit   int
	FallbackPublicID string
	FallbackURL      string
}

// Pick is the selection outcome, with enough detail to audit why an image
// was chosen.
type Pick struct {
	PublicID string
	URL      string
	Tier     int
	Reason   string
	Matched  []string
	Real     bool // false only for the static fallback
}

// Selector scores catalog assets against article tokens.
type Selector struct {
	catalog Catalog
	cfg     Config
}

// New creates a selector over a catalog.
func New(catalog Catalog, cfg Config) *Selector {
	if cfg.MinStrongMatches <= 0 {
		cfg.MinStrongMatches = 1
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	return &Selector{catalog: catalog, cfg: cfg}
}

// Select walks the tiers until one yields an image. It never returns a nil
// pick: when the catalog is empty or unavailable the static fallback is
// returned flagged Real=false. Catalog errors degrade to later tiers rather
// than failing the item.
func (s *Selector) Select(ctx context.Context, toks tokens.Set, category string) (*Pick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if pick := s.strongMatch(toks, category); pick != nil {
		return pick, nil
	}
	if pick := s.categoryFallback(category); pick != nil {
		return pick, nil
	}
	if pick := s.taggedDefault(category); pick != nil {
		return pick, nil
	}

	return &Pick{
		PublicID: s.cfg.FallbackPublicID,
		URL:      s.cfg.FallbackURL,
		Tier:     TierFallback,
		Reason:   "static fallback, catalog empty or unavailable",
		Real:     false,
	}, nil
}

// scored pairs an asset with its tier-1 score for comparison.
type scored struct {
	asset   database.ImageAsset
	score   int
	matched []string
}

// strongMatch scores every candidate sharing at least one tag with the
// article. Generic tags contribute to the score but never make an asset
// eligible on their own.
func (s *Selector) strongMatch(toks tokens.Set, category string) *Pick {
	if len(toks) == 0 {
		return nil
	}

	candidates, err := s.catalog.AssetsMatchingTags(toks.List(), s.cfg.CandidateLimit)
	if err != nil {
		log.Printf("image selection: tag query failed: %v", err)
		return nil
	}

	var best *scored
	for _, asset := range candidates {
		strong, generic := matchTags(asset.Tags, toks)
		if len(strong) < s.cfg.MinStrongMatches {
			continue
		}

		score := 100*len(strong) + 5*len(generic)
		if strings.EqualFold(asset.Category, category) && category != "" {
			score += 20
		}
		score += asset.Priority

		// Candidates arrive ordered by priority then recency, so a
		// strict comparison keeps the right winner on score ties.
		if best == nil || score > best.score {
			best = &scored{asset: asset, score: score, matched: append(strong, generic...)}
		}
	}
	if best == nil {
		return nil
	}

	return &Pick{
		PublicID: best.asset.PublicID,
		URL:      best.asset.URL,
		Tier:     TierStrong,
		Reason:   fmt.Sprintf("tag match, score %d", best.score),
		Matched:  best.matched,
		Real:     true,
	}
}

// categoryFallback picks the highest-priority asset in the article's
// category, skipping assets that are themselves the tagged default.
func (s *Selector) categoryFallback(category string) *Pick {
	if category == "" {
		return nil
	}

	assets, err := s.catalog.AssetsByCategory(category, s.cfg.CandidateLimit)
	if err != nil {
		log.Printf("image selection: category query failed: %v", err)
		return nil
	}

	for _, asset := range assets {
		if hasTag(asset.Tags, defaultTag) {
			continue
		}
		return &Pick{
			PublicID: asset.PublicID,
			URL:      asset.URL,
			Tier:     TierCategory,
			Reason:   "category fallback: " + category,
			Real:     true,
		}
	}
	return nil
}

// taggedDefault picks a "default"-tagged asset, preferring one scoped to the
// article's category, then one scoped "global", then any.
func (s *Selector) taggedDefault(category string) *Pick {
	assets, err := s.catalog.AssetsWithTag(defaultTag, s.cfg.CandidateLimit)
	if err != nil {
		log.Printf("image selection: default query failed: %v", err)
		return nil
	}
	if len(assets) == 0 {
		return nil
	}

	chosen := assets[0]
	rank := func(a database.ImageAsset) int {
		switch {
		case category != "" && strings.EqualFold(a.Category, category):
			return 0
		case strings.EqualFold(a.Category, "global"):
			return 1
		default:
			return 2
		}
	}
	for _, asset := range assets[1:] {
		if rank(asset) < rank(chosen) {
			chosen = asset
		}
	}

	return &Pick{
		PublicID: chosen.PublicID,
		URL:      chosen.URL,
		Tier:     TierDefault,
		Reason:   "tagged default, scope " + chosen.Category,
		Real:     true,
	}
}

// matchTags splits the intersection of normalized asset tags and article
// tokens into strong (topical) and generic matches.
func matchTags(assetTags []string, toks tokens.Set) (strong, generic []string) {
	seen := map[string]bool{}
	for _, raw := range assetTags {
		tag := tokens.Canon(raw)
		if tag == "" || seen[tag] || !toks.Has(tag) {
			continue
		}
		seen[tag] = true
		if tokens.IsGeneric(tag) {
			generic = append(generic, tag)
		} else {
			strong = append(strong, tag)
		}
	}
	return strong, generic
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
