package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/driftwire/newsmint/internal/database"
	"github.com/driftwire/newsmint/internal/imagesel"
	"github.com/driftwire/newsmint/internal/rewrite"
	"github.com/driftwire/newsmint/internal/tokens"
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

type mockRewriter struct {
	result *rewrite.Result
	err    error
	calls  int
}

func (m *mockRewriter) Rewrite(context.Context, rewrite.Source) (*rewrite.Result, error) {
	m.calls++
	return m.result, m.err
}

type mockPicker struct {
	pick  *imagesel.Pick
	err   error
	calls int
}

func (m *mockPicker) Select(context.Context, tokens.Set, string) (*imagesel.Pick, error) {
	m.calls++
	return m.pick, m.err
}

func goodResult() *rewrite.Result {
	return &rewrite.Result{
		Title:      "An Original Take On The Story",
		Summary:    "A fresh standfirst.",
		BodyHTML:   "<p>Fully rewritten body.</p>",
		Keywords:   []string{"cricket", "stadium"},
		Similarity: 0.08,
		Strict:     true,
		Attempts:   1,
		WordCount:  480,
	}
}

func goodPick() *imagesel.Pick {
	return &imagesel.Pick{PublicID: "cricket/stadium", URL: "https://img.test/cricket", Tier: imagesel.TierStrong, Real: true}
}

func ptr(s string) *string { return &s }

func insertItem(t *testing.T, db *database.DB, link, title string) int64 {
	t.Helper()
	id, err := db.InsertItem(link, title, ptr("A short source summary."), nil, ptr("Feed A"), ptr("sports"))
	if err != nil || id == 0 {
		t.Fatalf("insert item: id=%d err=%v", id, err)
	}
	return id
}

func testRunner(db *database.DB, rw Rewriter, ip ImagePicker) *Runner {
	return New(db, rw, ip, Config{BatchSize: 10})
}

func TestRunDraftsNewItem(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/123", "Modi holds rally in Bihar ahead of elections")

	rw := &mockRewriter{result: goodResult()}
	ip := &mockPicker{pick: goodPick()}

	res, err := testRunner(db, rw, ip).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Drafted != 1 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	item, err := db.GetItem(id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != database.StatusDrafted {
		t.Errorf("expected drafted, got %s", item.Status)
	}
	if item.Fingerprint == nil || *item.Fingerprint == "" {
		t.Error("expected fingerprint stored on item")
	}

	draft, err := db.GetDraftForItem(id)
	if err != nil || draft == nil {
		t.Fatalf("expected draft, got %v err %v", draft, err)
	}
	if draft.Slug != "an-original-take-on-the-story" {
		t.Errorf("unexpected slug %q", draft.Slug)
	}
	if draft.ImagePublicID != "cricket/stadium" || draft.ImageTier != imagesel.TierStrong {
		t.Errorf("unexpected image %+v", draft)
	}
	if draft.GeoMode != "global" {
		t.Errorf("unexpected geo mode %q", draft.GeoMode)
	}
	if !draft.Strict || draft.Similarity != 0.08 {
		t.Errorf("originality fields not carried: %+v", draft)
	}
}

func TestRunSkipsDuplicateTopic(t *testing.T) {
	db := openTestDB(t)
	first := insertItem(t, db, "https://ex.com/a/123", "Modi holds rally in Bihar ahead of elections")
	// Same link path, semantically equivalent title: same fingerprint.
	second := insertItem(t, db, "https://other.example/a/123", "Election rally held by Modi in Bihar")

	rw := &mockRewriter{result: goodResult()}
	ip := &mockPicker{pick: goodPick()}

	res, err := testRunner(db, rw, ip).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Drafted != 1 || res.Skipped != 1 {
		t.Fatalf("expected 1 drafted / 1 skipped, got %+v", res)
	}

	item, _ := db.GetItem(second)
	if item.Status != database.StatusSkipped {
		t.Errorf("expected second item skipped, got %s", item.Status)
	}
	if d, _ := db.GetDraftForItem(second); d != nil {
		t.Error("duplicate item must not produce a draft")
	}
	if d, _ := db.GetDraftForItem(first); d == nil {
		t.Error("first item should have a draft")
	}
	if rw.calls != 1 {
		t.Errorf("rewriter should run once, ran %d times", rw.calls)
	}
}

func TestRunRecordsRewriteFailure(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	rw := &mockRewriter{err: rewrite.ErrGenerationExhausted}
	res, err := testRunner(db, rw, &mockPicker{pick: goodPick()}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", res)
	}

	item, _ := db.GetItem(id)
	if item.Status != database.StatusFailed {
		t.Errorf("expected failed, got %s", item.Status)
	}
	if item.Error == nil || *item.Error == "" {
		t.Error("expected failure reason recorded on item")
	}
}

func TestRunItemRetriesFailedItem(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	rw := &mockRewriter{err: errors.New("provider down")}
	ip := &mockPicker{pick: goodPick()}
	runner := testRunner(db, rw, ip)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Provider recovers; operator reruns the item.
	rw.err = nil
	rw.result = goodResult()

	status, err := runner.RunItem(context.Background(), id)
	if err != nil {
		t.Fatalf("run item: %v", err)
	}
	if status != database.StatusDrafted {
		t.Errorf("expected drafted after retry, got %s", status)
	}
}

func TestImagingFailureKeepsGeneratedText(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	rw := &mockRewriter{result: goodResult()}
	ip := &mockPicker{err: errors.New("catalog offline")}
	runner := testRunner(db, rw, ip)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	item, _ := db.GetItem(id)
	if item.Status != database.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	if item.Generated == nil {
		t.Fatal("imaging failure must not discard generated text")
	}

	// Retry resumes from imaging without another generator call.
	ip.err = nil
	ip.pick = goodPick()

	status, err := runner.RunItem(context.Background(), id)
	if err != nil {
		t.Fatalf("run item: %v", err)
	}
	if status != database.StatusDrafted {
		t.Errorf("expected drafted, got %s", status)
	}
	if rw.calls != 1 {
		t.Errorf("retry from imaging must not rerun the rewriter, saw %d calls", rw.calls)
	}
}

func TestRunItemIdempotentOnDrafted(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	rw := &mockRewriter{result: goodResult()}
	runner := testRunner(db, rw, &mockPicker{pick: goodPick()})

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	first, _ := db.GetDraftForItem(id)

	status, err := runner.RunItem(context.Background(), id)
	if err != nil {
		t.Fatalf("run item: %v", err)
	}
	if status != database.StatusDrafted {
		t.Errorf("expected drafted, got %s", status)
	}
	if rw.calls != 1 {
		t.Errorf("rerun of drafted item must not regenerate, saw %d calls", rw.calls)
	}

	second, _ := db.GetDraftForItem(id)
	if first == nil || second == nil || first.ID != second.ID {
		t.Error("rerun must not create a second draft")
	}
}

func TestStrictModeRejectsNonStrictRewrite(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	result := goodResult()
	result.Strict = false
	result.Similarity = 0.41

	runner := New(db, &mockRewriter{result: result}, &mockPicker{pick: goodPick()}, Config{BatchSize: 10, Strict: true})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	item, _ := db.GetItem(id)
	if item.Status != database.StatusFailed {
		t.Errorf("strict mode should fail non-strict rewrites, got %s", item.Status)
	}
}

func TestNonStrictAcceptedByDefault(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/1", "Some story")

	result := goodResult()
	result.Strict = false
	result.Similarity = 0.41

	runner := testRunner(db, &mockRewriter{result: result}, &mockPicker{pick: goodPick()})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	item, _ := db.GetItem(id)
	if item.Status != database.StatusDrafted {
		t.Errorf("non-strict rewrite should draft by default, got %s", item.Status)
	}
	draft, _ := db.GetDraftForItem(id)
	if draft == nil || draft.Strict {
		t.Error("draft should carry the non-strict flag")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	db := openTestDB(t)
	insertItem(t, db, "https://ex.com/a/1", "First story")
	insertItem(t, db, "https://ex.com/a/2", "Second story")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := testRunner(db, &mockRewriter{result: goodResult()}, &mockPicker{pick: goodPick()})
	res, err := runner.Run(ctx)
	if err == nil {
		t.Error("expected context error")
	}
	if res.Processed != 0 {
		t.Errorf("cancelled run should process nothing, processed %d", res.Processed)
	}
}

func TestDraftGetsTopicalTagsWhenKeywordsGeneric(t *testing.T) {
	db := openTestDB(t)
	id := insertItem(t, db, "https://ex.com/a/901", "Quarterly results lift energy stocks")

	result := goodResult()
	result.Title = "Energy Stocks Climb After Strong Quarter"
	result.Keywords = []string{"world", "breaking"}
	rw := &mockRewriter{result: result}
	ip := &mockPicker{pick: goodPick()}

	res, err := testRunner(db, rw, ip).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Drafted != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	draft, err := db.GetDraftForItem(id)
	if err != nil || draft == nil {
		t.Fatalf("expected draft, got %v err %v", draft, err)
	}

	topical := false
	seen := map[string]bool{}
	for _, tag := range draft.Tags {
		seen[tag] = true
		if !tokens.IsGeneric(tag) {
			topical = true
		}
	}
	if !topical {
		t.Errorf("expected at least one topical tag, got %v", draft.Tags)
	}
	if !seen["world"] || !seen["breaking"] {
		t.Errorf("expected generic keywords carried alongside, got %v", draft.Tags)
	}
}

func TestDraftTagsFallsBackToStrongTokens(t *testing.T) {
	toks := tokens.NewSet("energy", "stock", "world")

	tags := draftTags([]string{"world", "breaking"}, toks)
	if !hasTopicalTag(tags) {
		t.Fatalf("expected topical tags from the extracted set, got %v", tags)
	}

	onlyGeneric := draftTags([]string{"world", "breaking"}, tokens.NewSet("world"))
	if hasTopicalTag(onlyGeneric) {
		t.Errorf("expected no topical tag to be possible, got %v", onlyGeneric)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"An Original Take On The Story", "an-original-take-on-the-story"},
		{"  Hello,   World!  ", "hello-world"},
		{"Ünïcode — stripped", "n-code-stripped"},
	}
	for _, c := range cases {
		if got := slugify(c.in); got != c.want {
			t.Errorf("slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	long := "This is a rather long meta description that keeps going with more and more detail about the story than fits"
	got := truncate(long, 60)
	if len(got) > 63 { // 60 plus the ellipsis rune
		t.Errorf("truncate too long: %d %q", len(got), got)
	}
	if got[len(got)-3:] != "…" {
		t.Errorf("expected ellipsis, got %q", got)
	}
}
