// Package fetch retrieves readable article text from source pages, used to
// enrich feed items whose summaries are too thin to rewrite from.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	userAgent   = "newsmint/1.0 (content pipeline)"
	maxBodySize = 2 << 20 // 2 MiB page cap
	minTextLen  = 100     // shorter extractions are noise
)

// Fetcher pulls article pages over HTTP and extracts the readable text.
// A domain that fails once is skipped for the rest of the fetcher's life,
// so one dead site cannot stall a whole collection run.
type Fetcher struct {
	client        *http.Client
	failedDomains map[string]struct{}
}

// New creates a fetcher with the given per-request timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		failedDomains: make(map[string]struct{}),
	}
}

// FetchBody returns the readable text of the page at link, or "" when the
// page yields nothing extractable.
func (f *Fetcher) FetchBody(ctx context.Context, link string) (string, error) {
	domain := domainOf(link)
	if _, failed := f.failedDomains[domain]; failed {
		return "", fmt.Errorf("skipping %s: domain failed earlier this run", domain)
	}

	text, err := f.extract(ctx, link)
	if err != nil {
		if domain != "" {
			f.failedDomains[domain] = struct{}{}
		}
		return "", err
	}
	return text, nil
}

func (f *Fetcher) extract(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: %s", link, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(link)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", link, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) < minTextLen {
		return "", nil
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func domainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
