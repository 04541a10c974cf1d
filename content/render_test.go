// ABOUTME: Tests for markdown preview rendering.
package content

import (
	"strings"
	"testing"
)

func TestRenderMarkdownBasics(t *testing.T) {
	out := string(RenderMarkdown("# Launch day\n\nOur **spring** drop is live."))
	if !strings.Contains(out, "<h1") || !strings.Contains(out, "Launch day") {
		t.Errorf("heading not rendered: %s", out)
	}
	if !strings.Contains(out, "<strong>spring</strong>") {
		t.Errorf("emphasis not rendered: %s", out)
	}
}

func TestRenderMarkdownStripsRawHTML(t *testing.T) {
	out := string(RenderMarkdown("hello <script>alert(1)</script>"))
	if strings.Contains(out, "<script>") {
		t.Errorf("raw html not suppressed: %s", out)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	if out := string(RenderMarkdown("")); strings.Contains(out, "<p>") && strings.TrimSpace(out) != "" {
		t.Errorf("unexpected output for empty input: %q", out)
	}
}
