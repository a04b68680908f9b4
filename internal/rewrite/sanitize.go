package rewrite

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// allowedTags is the restricted subset a generated body may contain.
var allowedTags = map[string]bool{
	"p": true, "br": true, "strong": true, "em": true, "b": true, "i": true,
	"u": true, "ul": true, "ol": true, "li": true, "blockquote": true,
	"h2": true, "h3": true, "h4": true, "a": true,
}

// RenderBody converts generated markdown to sanitized HTML.
func RenderBody(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return SanitizeHTML(buf.String())
}

// SanitizeHTML reduces arbitrary HTML to the allowed tag subset. Dangerous
// subtrees are dropped entirely; other disallowed elements are unwrapped so
// their text survives. The only attribute kept is a[href].
func SanitizeHTML(input string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, iframe, noscript, form, object, embed, svg, video, audio, img").Remove()

	// Unwrap disallowed elements until none remain; the loop handles nesting.
	for {
		disallowed := doc.Find("body *").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return !allowedTags[goquery.NodeName(sel)]
		})
		if disallowed.Length() == 0 {
			break
		}
		disallowed.Each(func(_ int, sel *goquery.Selection) {
			sel.ReplaceWithSelection(sel.Contents())
		})
	}

	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		for _, n := range sel.Nodes {
			attrs := n.Attr
			n.Attr = n.Attr[:0]
			for _, a := range attrs {
				if tag == "a" && a.Key == "href" && safeHref(a.Val) {
					n.Attr = append(n.Attr, a)
				}
			}
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serializing html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// PlainText extracts whitespace-normalized text from an HTML fragment.
func PlainText(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func safeHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") || strings.HasPrefix(h, "/")
}
