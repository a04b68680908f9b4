package collect

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/driftwire/newsmint/internal/config"
)

const maxPerFeed = 20

// Entry is one normalized feed item ready for intake.
type Entry struct {
	Link      string
	Title     string
	Summary   string
	Published string // YYYY-MM-DD or empty
	Source    string
	Category  string
}

// Parser pulls entries from the configured syndication feeds.
type Parser struct {
	feeds []config.Feed
}

// NewParser creates a parser over the configured feeds.
func NewParser(feeds []config.Feed) *Parser {
	return &Parser{feeds: feeds}
}

// ParseAll parses every configured feed and returns entries published within
// daysBack. Feeds that fail to parse are skipped with a log line.
func (p *Parser) ParseAll(ctx context.Context, daysBack int) []Entry {
	cutoff := time.Now().AddDate(0, 0, -daysBack)
	var all []Entry

	parser := gofeed.NewParser()
	for _, fc := range p.feeds {
		if ctx.Err() != nil {
			break
		}

		name := fc.Name
		if name == "" {
			name = sourceNameFromURL(fc.URL)
		}

		entries, err := parseFeed(ctx, parser, fc, name, cutoff)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, entries...)
		log.Printf("Parsed %d entries from %s (within %d days)", len(entries), name, daysBack)
	}

	return all
}

func parseFeed(ctx context.Context, parser *gofeed.Parser, fc config.Feed, sourceName string, cutoff time.Time) ([]Entry, error) {
	feed, err := parser.ParseURLWithContext(fc.URL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}

		entry := parseItem(item, sourceName, fc.Category)
		if entry == nil {
			continue
		}
		if isWithinWindow(entry.Published, cutoff) {
			entries = append(entries, *entry)
		}
	}

	return entries, nil
}

func parseItem(item *gofeed.Item, source, category string) *Entry {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	var summary string
	if item.Description != "" {
		summary = stripMarkup(item.Description)
	} else if item.Content != "" {
		summary = stripMarkup(item.Content)
	}

	return &Entry{
		Link:      link,
		Title:     title,
		Summary:   summary,
		Published: published,
		Source:    source,
		Category:  category,
	}
}

func isWithinWindow(published string, cutoff time.Time) bool {
	if published == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", published)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

// stripMarkup flattens a feed description to plain text with normalized
// whitespace. Descriptions regularly arrive as HTML fragments.
func stripMarkup(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func sourceNameFromURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	if host == "" {
		return feedURL
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
