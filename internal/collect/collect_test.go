package collect

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/driftwire/newsmint/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stubSource returns a fixed entry slice.
type stubSource struct {
	entries []Entry
}

func (s *stubSource) ParseAll(context.Context, int) []Entry { return s.entries }

// stubFetcher returns a fixed body or error.
type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) FetchBody(context.Context, string) (string, error) {
	s.calls++
	return s.body, s.err
}

func TestCollectorInsertsAndDeduplicates(t *testing.T) {
	db := openTestDB(t)
	source := &stubSource{entries: []Entry{
		{Link: "https://ex.com/a", Title: "First story", Summary: "A summary.", Source: "Feed A", Category: "sports"},
		{Link: "https://ex.com/a", Title: "Same link again", Source: "Feed A"},
		{Link: "https://ex.com/b", Title: "Second story", Source: "Feed B"},
	}}

	res, err := New(db, source, nil, 0).Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", res.Inserted)
	}
	if res.Duplicates != 1 {
		t.Errorf("expected 1 in-batch duplicate, got %d", res.Duplicates)
	}

	items, err := db.GetItemsByStatus(database.StatusNew, 10)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(items))
	}
}

func TestCollectorSecondRunCountsStoreDuplicates(t *testing.T) {
	db := openTestDB(t)
	source := &stubSource{entries: []Entry{
		{Link: "https://ex.com/a", Title: "Story"},
	}}
	collector := New(db, source, nil, 0)

	if _, err := collector.Run(context.Background(), 2); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := collector.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if res.Inserted != 0 || res.Duplicates != 1 {
		t.Errorf("expected 0 inserted / 1 duplicate, got %d / %d", res.Inserted, res.Duplicates)
	}
}

func TestCollectorEnrichesThinSummaries(t *testing.T) {
	db := openTestDB(t)
	source := &stubSource{entries: []Entry{
		{Link: "https://ex.com/thin", Title: "Thin", Summary: "Too short."},
		{Link: "https://ex.com/full", Title: "Full", Summary: "This summary already has plenty of words to rewrite from without fetching."},
	}}
	fetcher := &stubFetcher{body: "Full article text recovered from the source page."}

	res, err := New(db, source, fetcher, 5).Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("expected fetch only for the thin item, got %d calls", fetcher.calls)
	}
	if res.Enriched != 1 {
		t.Errorf("expected 1 enriched, got %d", res.Enriched)
	}

	items, err := db.GetItemsByStatus(database.StatusNew, 10)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	for _, item := range items {
		if item.Link == "https://ex.com/thin" {
			if item.Body == nil || *item.Body == "" {
				t.Error("expected enriched body on thin item")
			}
		} else if item.Body != nil {
			t.Error("expected no body on item with a full summary")
		}
	}
}

func TestCollectorKeepsThinItemOnFetchFailure(t *testing.T) {
	db := openTestDB(t)
	source := &stubSource{entries: []Entry{
		{Link: "https://ex.com/thin", Title: "Thin", Summary: "Short."},
	}}
	fetcher := &stubFetcher{err: errors.New("timeout")}

	res, err := New(db, source, fetcher, 5).Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("fetch failure must not drop the item, got %d inserted", res.Inserted)
	}
}

func TestParseItemFallsBackToGUID(t *testing.T) {
	entry := parseItem(&gofeed.Item{
		Title: "A story",
		GUID:  "https://ex.com/guid-link",
	}, "Feed A", "sports")
	if entry == nil {
		t.Fatal("expected entry from GUID-only item")
	}
	if entry.Link != "https://ex.com/guid-link" {
		t.Errorf("unexpected link %s", entry.Link)
	}
	if entry.Category != "sports" {
		t.Errorf("expected feed category carried over, got %s", entry.Category)
	}
}

func TestParseItemRejectsMissingFields(t *testing.T) {
	if parseItem(&gofeed.Item{Title: "No link"}, "A", "") != nil {
		t.Error("expected nil for item without link")
	}
	if parseItem(&gofeed.Item{Link: "https://ex.com/x"}, "A", "") != nil {
		t.Error("expected nil for item without title")
	}
}

func TestParseItemStripsSummaryMarkup(t *testing.T) {
	entry := parseItem(&gofeed.Item{
		Title:       "Story",
		Link:        "https://ex.com/x",
		Description: "<p>Hello <b>world</b> &amp; everyone</p>",
	}, "A", "")
	if entry.Summary != "Hello world & everyone" {
		t.Errorf("unexpected summary %q", entry.Summary)
	}
}

func TestIsWithinWindow(t *testing.T) {
	cutoff := time.Now().AddDate(0, 0, -2)

	if !isWithinWindow(time.Now().Format("2006-01-02"), cutoff) {
		t.Error("today should be within window")
	}
	if isWithinWindow("2001-01-01", cutoff) {
		t.Error("old date should be outside window")
	}
	if !isWithinWindow("", cutoff) {
		t.Error("missing date should pass")
	}
	if !isWithinWindow("not-a-date", cutoff) {
		t.Error("unparseable date should pass")
	}
}

func TestSourceNameFromURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://feeds.example.com/rss", "Example"},
		{"https://www.sample.org/feed.xml", "Sample"},
		{"https://news.co.in/rss", "Co"},
	}
	for _, c := range cases {
		if got := sourceNameFromURL(c.in); got != c.want {
			t.Errorf("sourceNameFromURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
