// ABOUTME: Markdown rendering for post previews using goldmark.
package content

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
)

// RenderMarkdown converts generated markdown post text to HTML for preview.
// Raw HTML in the input is stripped by goldmark's defaults to prevent XSS;
// on a conversion failure the input is returned escaped rather than lost.
func RenderMarkdown(input string) template.HTML {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}
