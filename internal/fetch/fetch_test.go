package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const articlePage = `<!DOCTYPE html>
<html><head><title>Test Story</title></head><body>
<nav>Home | Sports | World</nav>
<article>
<h1>Test Story</h1>
<p>` + longParagraph + `</p>
<p>` + longParagraph + `</p>
</article>
<footer>Copyright</footer>
</body></html>`

const longParagraph = "Officials confirmed on Monday that the long awaited infrastructure project " +
	"will finally break ground next spring, after years of planning disputes and " +
	"budget negotiations between the city council and the regional authority."

func TestFetchBodyExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	text, err := New(5 * time.Second).FetchBody(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(text, "infrastructure project") {
		t.Errorf("expected article text, got %q", text)
	}
}

func TestFetchBodyRejectsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(5 * time.Second).FetchBody(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestFetchBodySkipsFailedDomain(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(5 * time.Second)
	f.FetchBody(context.Background(), srv.URL+"/a")
	f.FetchBody(context.Background(), srv.URL+"/b")

	if hits != 1 {
		t.Errorf("expected the second request to be skipped, server saw %d hits", hits)
	}
}

func TestFetchBodyDropsShortExtractions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>tiny</p></body></html>"))
	}))
	defer srv.Close()

	text, err := New(5 * time.Second).FetchBody(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty result for thin page, got %q", text)
	}
}
