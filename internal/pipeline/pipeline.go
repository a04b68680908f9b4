// Package pipeline orchestrates the per-item state machine that turns
// collected source items into drafts: fingerprint, rewrite, hero image,
// draft record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/driftwire/newsmint/internal/database"
	"github.com/driftwire/newsmint/internal/fingerprint"
	"github.com/driftwire/newsmint/internal/imagesel"
	"github.com/driftwire/newsmint/internal/metrics"
	"github.com/driftwire/newsmint/internal/rewrite"
	"github.com/driftwire/newsmint/internal/tokens"
)

// Rewriter produces an original rendition of a source. Satisfied by
// rewrite.Guard.
type Rewriter interface {
	Rewrite(ctx context.Context, src rewrite.Source) (*rewrite.Result, error)
}

// ImagePicker selects a hero image. Satisfied by imagesel.Selector.
type ImagePicker interface {
	Select(ctx context.Context, toks tokens.Set, category string) (*imagesel.Pick, error)
}

// Config tunes batch size and strictness.
type Config struct {
	BatchSize int
	// Strict rejects rewrites that exhausted their attempts without
	// clearing the similarity threshold instead of drafting them.
	Strict bool
}

// Runner drives items through the pipeline stages.
type Runner struct {
	db       *database.DB
	rewriter Rewriter
	images   ImagePicker
	cfg      Config
}

// New creates a runner.
func New(db *database.DB, rewriter Rewriter, images ImagePicker, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Runner{db: db, rewriter: rewriter, images: images, cfg: cfg}
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Processed int
	Drafted   int
	Skipped   int
	Failed    int
}

// Run processes one bounded page of pending items. Items are independent:
// one item's failure never aborts the batch. Cancellation is honored
// between items; an in-flight external call finishes or times out on its
// own.
func (r *Runner) Run(ctx context.Context) (*BatchResult, error) {
	items, err := r.db.GetItemsByStatus(database.StatusNew, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("loading pending items: %w", err)
	}

	res := &BatchResult{}
	for i := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Processed++
		switch r.processNew(ctx, &items[i]) {
		case database.StatusDrafted:
			res.Drafted++
		case database.StatusSkipped:
			res.Skipped++
		case database.StatusFailed:
			res.Failed++
		}
	}

	log.Printf("Batch complete: %d processed, %d drafted, %d skipped, %d failed",
		res.Processed, res.Drafted, res.Skipped, res.Failed)
	return res, nil
}

// RunItem runs all remaining stages for one item, resuming from whatever
// its current status allows. Drafted and skipped items are left alone, so
// an operator rerun racing a batch can never double-draft.
func (r *Runner) RunItem(ctx context.Context, id int64) (string, error) {
	item, err := r.db.GetItem(id)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", fmt.Errorf("item %d not found", id)
	}

	switch item.Status {
	case database.StatusDrafted, database.StatusSkipped:
		return item.Status, nil

	case database.StatusNew:
		return r.processNew(ctx, item), nil

	case database.StatusGenerating:
		// A previous run died mid-generate; redo the rewrite.
		return r.generateAndImage(ctx, item), nil

	case database.StatusGenerated:
		return r.imageStage(ctx, item), nil

	case database.StatusImaging:
		// A previous run died mid-imaging; the generated text is intact.
		return r.finishImaging(ctx, item), nil

	case database.StatusFailed:
		return r.retryFailed(ctx, item), nil
	}

	return item.Status, nil
}

// processNew takes an item from new to its terminal status for this run.
func (r *Runner) processNew(ctx context.Context, item *database.SourceItem) string {
	if r.isDuplicate(item) {
		if ok, err := r.db.TransitionItem(item.ID, database.StatusNew, database.StatusSkipped); err != nil || !ok {
			return item.Status
		}
		log.Printf("Skipping item %d: topic already covered", item.ID)
		metrics.ItemsSkipped.Inc()
		return database.StatusSkipped
	}

	if ok, err := r.db.TransitionItem(item.ID, database.StatusNew, database.StatusGenerating); err != nil || !ok {
		// Another run claimed the item first.
		return item.Status
	}
	return r.generateAndImage(ctx, item)
}

// isDuplicate computes and records the topic fingerprint. Fingerprinting
// fails open: a store or compute error lets the item through rather than
// losing coverage of a possibly fresh topic.
func (r *Runner) isDuplicate(item *database.SourceItem) bool {
	key, err := fingerprint.Compute(item.Title, item.Link)
	if err != nil {
		log.Printf("Fingerprint failed for item %d: %v", item.ID, err)
		return false
	}
	if err := r.db.SetItemFingerprint(item.ID, key); err != nil {
		log.Printf("Failed to store fingerprint for item %d: %v", item.ID, err)
	}

	duplicate, err := r.db.RecordFingerprint(key, item.Title, item.Link, deref(item.Source))
	if err != nil {
		log.Printf("Fingerprint check failed for item %d: %v", item.ID, err)
		return false
	}
	return duplicate
}

func (r *Runner) generateAndImage(ctx context.Context, item *database.SourceItem) string {
	if err := r.generate(ctx, item); err != nil {
		return r.fail(item, database.StatusGenerating, err)
	}
	return r.imageStage(ctx, item)
}

// generate runs the originality guard and stores the result on the item.
// The item enters in generating status.
func (r *Runner) generate(ctx context.Context, item *database.SourceItem) error {
	src := rewrite.Source{
		Title:    item.Title,
		Summary:  deref(item.Summary),
		Body:     deref(item.Body),
		Link:     item.Link,
		Label:    deref(item.Source),
		Category: deref(item.Category),
	}

	result, err := r.rewriter.Rewrite(ctx, src)
	if result != nil {
		metrics.RewriteAttempts.Add(float64(result.Attempts))
	}
	if err != nil {
		if errors.Is(err, rewrite.ErrBodyTooShort) {
			return fmt.Errorf("generated body too short after expansion: %w", err)
		}
		return fmt.Errorf("rewrite: %w", err)
	}
	if r.cfg.Strict && !result.Strict {
		return fmt.Errorf("rewrite stayed too similar (%.3f) and strict mode is on", result.Similarity)
	}

	gen := &database.GeneratedPayload{
		Title:      result.Title,
		Summary:    result.Summary,
		BodyHTML:   result.BodyHTML,
		Keywords:   result.Keywords,
		Similarity: result.Similarity,
		Strict:     result.Strict,
		WordCount:  result.WordCount,
	}
	if err := r.db.SetItemGenerated(item.ID, gen); err != nil {
		return fmt.Errorf("storing generated text: %w", err)
	}
	item.Generated = gen

	if ok, err := r.db.TransitionItem(item.ID, database.StatusGenerating, database.StatusGenerated); err != nil {
		return fmt.Errorf("advancing to generated: %w", err)
	} else if !ok {
		return fmt.Errorf("item %d left generating status mid-run", item.ID)
	}
	return nil
}

// imageStage claims the imaging stage and finishes it. The item enters in
// generated status.
func (r *Runner) imageStage(ctx context.Context, item *database.SourceItem) string {
	if ok, err := r.db.TransitionItem(item.ID, database.StatusGenerated, database.StatusImaging); err != nil || !ok {
		return item.Status
	}
	return r.finishImaging(ctx, item)
}

// finishImaging selects the hero image and writes the draft. The item
// enters in imaging status; its generated payload is never discarded on
// failure, so the stage can be retried alone.
func (r *Runner) finishImaging(ctx context.Context, item *database.SourceItem) string {
	if err := r.draftItem(ctx, item); err != nil {
		return r.fail(item, database.StatusImaging, err)
	}

	if ok, err := r.db.TransitionItem(item.ID, database.StatusImaging, database.StatusDrafted); err != nil || !ok {
		return item.Status
	}
	metrics.ItemsDrafted.Inc()
	log.Printf("Drafted item %d", item.ID)
	return database.StatusDrafted
}

func (r *Runner) draftItem(ctx context.Context, item *database.SourceItem) error {
	gen := item.Generated
	if gen == nil {
		return fmt.Errorf("item %d has no generated text to draft", item.ID)
	}

	category := deref(item.Category)
	if category == "" {
		category = "General"
	}

	toks := tokens.Extract(gen.Title, gen.Summary, category, gen.Keywords)
	pick, err := r.images.Select(ctx, toks, category)
	if err != nil {
		return fmt.Errorf("selecting image: %w", err)
	}
	metrics.RecordImagePick(pick.Tier)
	if !pick.Real {
		log.Printf("Item %d fell back to the static image", item.ID)
	}

	tags := draftTags(gen.Keywords, toks)
	if !hasTopicalTag(tags) {
		return fmt.Errorf("item %d yields no topical tags", item.ID)
	}

	draft := buildDraft(item, gen, pick, category, tags)
	if _, err := r.db.InsertDraft(draft); err != nil {
		return fmt.Errorf("storing draft: %w", err)
	}
	return nil
}

// retryFailed reruns a failed item, resuming from imaging when generated
// text survived the earlier failure.
func (r *Runner) retryFailed(ctx context.Context, item *database.SourceItem) string {
	if item.Generated != nil {
		if ok, err := r.db.TransitionItem(item.ID, database.StatusFailed, database.StatusGenerated); err != nil || !ok {
			return item.Status
		}
		return r.imageStage(ctx, item)
	}

	if ok, err := r.db.TransitionItem(item.ID, database.StatusFailed, database.StatusGenerating); err != nil || !ok {
		return item.Status
	}
	return r.generateAndImage(ctx, item)
}

// fail records the error, which also moves the item to failed.
func (r *Runner) fail(item *database.SourceItem, stage string, cause error) string {
	log.Printf("Item %d failed during %s: %v", item.ID, stage, cause)
	if err := r.db.SetItemError(item.ID, cause.Error()); err != nil {
		log.Printf("Failed to record error for item %d: %v", item.ID, err)
	}
	metrics.ItemsFailed.Inc()
	return database.StatusFailed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
