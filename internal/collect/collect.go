// Package collect pulls items from configured syndication feeds and stores
// them as pending source items.
package collect

import (
	"context"
	"log"
	"strings"

	"github.com/driftwire/newsmint/internal/database"
)

// EntrySource yields normalized feed entries. Satisfied by Parser.
type EntrySource interface {
	ParseAll(ctx context.Context, daysBack int) []Entry
}

// BodyFetcher retrieves readable article text for a link. Satisfied by
// fetch.Fetcher; optional.
type BodyFetcher interface {
	FetchBody(ctx context.Context, link string) (string, error)
}

// Collector writes feed entries into the item store.
type Collector struct {
	db           *database.DB
	source       EntrySource
	fetcher      BodyFetcher
	summaryFloor int // words; below this the source page is fetched
}

// Result summarizes one collection run.
type Result struct {
	Parsed     int
	Inserted   int
	Duplicates int
	Enriched   int
}

// New creates a collector. fetcher may be nil to skip page enrichment.
func New(db *database.DB, source EntrySource, fetcher BodyFetcher, summaryFloor int) *Collector {
	return &Collector{db: db, source: source, fetcher: fetcher, summaryFloor: summaryFloor}
}

// Run parses the feeds and inserts new items. Links already present in the
// store, and repeats within the batch itself, count as duplicates.
func (c *Collector) Run(ctx context.Context, daysBack int) (*Result, error) {
	entries := c.source.ParseAll(ctx, daysBack)
	res := &Result{Parsed: len(entries)}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if seen[entry.Link] {
			res.Duplicates++
			continue
		}
		seen[entry.Link] = true

		body := c.enrich(ctx, entry, res)

		id, err := c.db.InsertItem(entry.Link, entry.Title,
			optional(entry.Summary), optional(body),
			optional(entry.Source), optional(entry.Category))
		if err != nil {
			log.Printf("Failed to store item %s: %v", entry.Link, err)
			continue
		}
		if id == 0 {
			res.Duplicates++
			continue
		}
		res.Inserted++
	}

	log.Printf("Collected %d new items (%d duplicates) from %d entries",
		res.Inserted, res.Duplicates, res.Parsed)
	return res, nil
}

// enrich fetches the source page when the feed summary is too thin to
// rewrite from. Fetch failures are logged and the thin summary kept.
func (c *Collector) enrich(ctx context.Context, entry Entry, res *Result) string {
	if c.fetcher == nil || c.summaryFloor <= 0 {
		return ""
	}
	if len(strings.Fields(entry.Summary)) >= c.summaryFloor {
		return ""
	}

	body, err := c.fetcher.FetchBody(ctx, entry.Link)
	if err != nil {
		log.Printf("Failed to fetch %s for enrichment: %v", entry.Link, err)
		return ""
	}
	if body != "" {
		res.Enriched++
	}
	return body
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
