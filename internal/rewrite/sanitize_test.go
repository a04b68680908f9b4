package rewrite

import (
	"strings"
	"testing"
)

func TestRenderBodyMarkdown(t *testing.T) {
	html, err := RenderBody("First paragraph.\n\nSecond with **bold** text.")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "<p>First paragraph.</p>") {
		t.Errorf("expected paragraph markup, got %q", html)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("expected strong markup, got %q", html)
	}
}

func TestSanitizeRemovesDangerousSubtrees(t *testing.T) {
	in := `<p>Safe</p><script>alert(1)</script><iframe src="x"></iframe><style>p{}</style>`
	out, err := SanitizeHTML(in)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if strings.Contains(out, "script") || strings.Contains(out, "iframe") || strings.Contains(out, "alert") {
		t.Errorf("dangerous content survived: %q", out)
	}
	if !strings.Contains(out, "<p>Safe</p>") {
		t.Errorf("safe content lost: %q", out)
	}
}

func TestSanitizeUnwrapsDisallowedElements(t *testing.T) {
	in := `<div><p>Keep <span>this</span> text</p></div>`
	out, err := SanitizeHTML(in)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if strings.Contains(out, "<div>") || strings.Contains(out, "<span>") {
		t.Errorf("disallowed wrappers survived: %q", out)
	}
	if !strings.Contains(out, "Keep this text") {
		t.Errorf("inner text lost: %q", out)
	}
}

func TestSanitizeStripsAttributes(t *testing.T) {
	in := `<p class="x" onclick="evil()">Text</p><a href="https://ex.com" onclick="evil()" target="_blank">link</a>`
	out, err := SanitizeHTML(in)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if strings.Contains(out, "onclick") || strings.Contains(out, "class=") || strings.Contains(out, "target=") {
		t.Errorf("attributes survived: %q", out)
	}
	if !strings.Contains(out, `href="https://ex.com"`) {
		t.Errorf("expected href kept: %q", out)
	}
}

func TestSanitizeDropsJavascriptHref(t *testing.T) {
	in := `<a href="javascript:evil()">link</a>`
	out, err := SanitizeHTML(in)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if strings.Contains(out, "javascript") {
		t.Errorf("javascript href survived: %q", out)
	}
}

func TestPlainText(t *testing.T) {
	text := PlainText("<p>One   two</p>\n<p>three</p>")
	if text != "One two three" {
		t.Errorf("expected normalized text, got %q", text)
	}
}
