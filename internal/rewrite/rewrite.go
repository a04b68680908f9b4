// Package rewrite wraps the external text generator in a
// similarity-check/retry loop so rewritten articles never lean on the source
// text too heavily.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/driftwire/newsmint/internal/llm"
)

var (
	// ErrGenerationExhausted means no attempt produced a usable candidate.
	ErrGenerationExhausted = errors.New("generation attempts exhausted")
	// ErrBodyTooShort means the body stayed under the minimum after expansion.
	ErrBodyTooShort = errors.New("body too short")
)

const rewritePrompt = `You are rewriting a syndicated news story into a fully original article for republication.

Rules:
- Write completely in your own words. Never reuse more than 10 consecutive words from the source.
- Keep every fact, name, number, and quote accurate. Attribute quotes; do not invent any.
- Neutral newsroom tone. No marketing language, no first person.
- Target length: %d to %d words.
- Category: %s
%s
Source story (from %s):
Title: %s
%s

Respond with ONLY this JSON:
{
    "title": "An original headline, max 12 words",
    "summary": "A 2-3 sentence standfirst",
    "body": "The full article body in markdown paragraphs",
    "keywords": ["5-8 topical keywords"]
}`

const expandPrompt = `The article body below is %d words; it must reach at least %d words.

Continue the article with additional markdown paragraphs of context and background. Do not repeat facts already stated, do not contradict them, and do not copy from anywhere.

Article so far:
%s

Respond with ONLY the additional markdown paragraphs.`

// Source is the input blob handed to the generator.
type Source struct {
	Title    string
	Summary  string
	Body     string
	Link     string
	Label    string
	Category string
}

// Result is one accepted rewrite.
type Result struct {
	Title      string
	Summary    string
	BodyHTML   string
	BodyText   string
	Keywords   []string
	Similarity float64
	Strict     bool
	Attempts   int
	Expansions int
	WordCount  int
}

// Config tunes the guard. Thresholds are empirical, not invariants.
type Config struct {
	SimilarityThreshold float64
	MaxAttempts         int
	AvoidPhrases        int
	MinWords            int
	MaxWords            int
	ExpandRetries       int
	MaxTokens           int
}

// Guard drives generate-check-retry for one source item at a time.
type Guard struct {
	provider llm.Provider
	policy   *llm.CallPolicy
	cfg      Config
}

// NewGuard creates a guard over a provider.
func NewGuard(provider llm.Provider, cfg Config) *Guard {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AvoidPhrases <= 0 {
		cfg.AvoidPhrases = 8
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Guard{
		provider: provider,
		policy:   llm.NewCallPolicy(1, 90*time.Second),
		cfg:      cfg,
	}
}

// Rewrite produces an original rendition of the source. When every attempt
// overlaps the source at or above the threshold, the best-scoring attempt is
// returned with Strict=false and the caller decides whether that is
// acceptable. ErrBodyTooShort may accompany a non-nil Result.
func (g *Guard) Rewrite(ctx context.Context, src Source) (*Result, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("no generator provider configured")
	}

	sourceText := strings.Join(strings.Fields(src.Title+". "+src.Summary+" "+src.Body), " ")

	var best *Result
	var avoid []string

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		prompt := g.buildPrompt(src, avoid)

		cand, err := g.generateCandidate(ctx, prompt, sourceText)
		if err != nil {
			log.Printf("rewrite attempt %d failed: %v", attempt, err)
			continue
		}
		cand.Attempts = attempt

		if best == nil || cand.Similarity < best.Similarity {
			best = cand
		}

		if cand.Similarity < g.cfg.SimilarityThreshold {
			best = cand
			best.Strict = true
			break
		}

		log.Printf("rewrite attempt %d too similar (%.3f >= %.3f), retrying with avoid list",
			attempt, cand.Similarity, g.cfg.SimilarityThreshold)
		avoid = mergeAvoid(avoid, SharedTrigrams(sourceText, cand.BodyText, g.cfg.AvoidPhrases))
	}

	if best == nil {
		return nil, ErrGenerationExhausted
	}
	if !best.Strict {
		log.Printf("accepting non-strict rewrite (best similarity %.3f)", best.Similarity)
	}

	return g.ensureLength(ctx, best)
}

// mergeAvoid unions newly shared phrases into the carried avoid list, so a
// later attempt still steers away from overlap found in earlier ones.
func mergeAvoid(avoid, shared []string) []string {
	seen := make(map[string]bool, len(avoid))
	for _, p := range avoid {
		seen[p] = true
	}
	for _, p := range shared {
		if !seen[p] {
			seen[p] = true
			avoid = append(avoid, p)
		}
	}
	return avoid
}

// generateCandidate runs one generator call and turns the response into a
// scored candidate. Malformed output gets one local re-ask before giving up.
func (g *Guard) generateCandidate(ctx context.Context, prompt, sourceText string) (*Result, error) {
	raw, err := g.policy.Generate(ctx, g.provider, prompt, g.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	parsed := llm.ParseJSONResponse(raw)
	if parsed == nil {
		raw, err = g.policy.Generate(ctx, g.provider, prompt, g.cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		parsed = llm.ParseJSONResponse(raw)
	}
	if parsed == nil {
		return nil, fmt.Errorf("malformed generator output")
	}

	title := strings.TrimSpace(llm.GetString(parsed, "title", ""))
	body := strings.TrimSpace(llm.GetString(parsed, "body", ""))
	if title == "" || body == "" {
		return nil, fmt.Errorf("generator output missing title or body")
	}

	bodyHTML, err := RenderBody(body)
	if err != nil {
		return nil, err
	}
	bodyText := PlainText(bodyHTML)

	return &Result{
		Title:      title,
		Summary:    strings.TrimSpace(llm.GetString(parsed, "summary", "")),
		BodyHTML:   bodyHTML,
		BodyText:   bodyText,
		Keywords:   llm.GetStringList(parsed, "keywords"),
		Similarity: Similarity(sourceText, bodyText),
		WordCount:  WordCount(bodyText),
	}, nil
}

// ensureLength runs bounded expansion calls until the body reaches the
// configured minimum. A body still short afterwards returns the result
// together with ErrBodyTooShort so the caller keeps the partial output.
func (g *Guard) ensureLength(ctx context.Context, r *Result) (*Result, error) {
	if g.cfg.MinWords <= 0 {
		return r, nil
	}

	for i := 0; r.WordCount < g.cfg.MinWords && i < g.cfg.ExpandRetries; i++ {
		prompt := fmt.Sprintf(expandPrompt, r.WordCount, g.cfg.MinWords, r.BodyText)
		raw, err := g.policy.Generate(ctx, g.provider, prompt, g.cfg.MaxTokens)
		if err != nil {
			log.Printf("expansion call failed: %v", err)
			break
		}

		extraHTML, err := RenderBody(raw)
		if err != nil || strings.TrimSpace(extraHTML) == "" {
			continue
		}

		r.BodyHTML += "\n" + extraHTML
		r.BodyText = PlainText(r.BodyHTML)
		r.WordCount = WordCount(r.BodyText)
		r.Expansions++
	}

	if r.WordCount < g.cfg.MinWords {
		return r, ErrBodyTooShort
	}
	if g.cfg.MaxWords > 0 && r.WordCount > g.cfg.MaxWords {
		log.Printf("body exceeds word band (%d > %d), keeping as-is", r.WordCount, g.cfg.MaxWords)
	}
	return r, nil
}

func (g *Guard) buildPrompt(src Source, avoid []string) string {
	avoidBlock := ""
	if len(avoid) > 0 {
		avoidBlock = "- Avoid these phrases entirely: \"" + strings.Join(avoid, "\", \"") + "\"\n"
	}

	category := src.Category
	if category == "" {
		category = "General"
	}
	label := src.Label
	if label == "" {
		label = "unknown source"
	}

	sourceBody := strings.TrimSpace(src.Summary + "\n" + src.Body)
	if len(sourceBody) > 6000 {
		sourceBody = sourceBody[:6000] + "..."
	}

	return fmt.Sprintf(rewritePrompt,
		g.cfg.MinWords, g.cfg.MaxWords, category, avoidBlock, label, src.Title, sourceBody)
}
