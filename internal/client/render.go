package client

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts untrusted markdown into sanitized display HTML.
// The raw markdown stays authoritative for copy and export; the rendered
// HTML is display-only.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds the markdown pipeline. GFM is required because the
// rubric verdict arrives as a scores table.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowTables()

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

// Render parses markdown to HTML and sanitizes the result before it is
// handed to any display surface.
func (r *Renderer) Render(raw string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(raw), &buf); err != nil {
		// Unparseable markdown still has to display as something.
		return "<pre>" + html.EscapeString(raw) + "</pre>"
	}
	return r.policy.Sanitize(buf.String())
}

// RenderError wraps an error message as an escaped preformatted block.
func (r *Renderer) RenderError(msg string) string {
	return "<pre>" + html.EscapeString(msg) + "</pre>"
}

// RenderText escapes plain text for display, preserving line breaks.
// Used for user messages, which are never markdown.
func (r *Renderer) RenderText(raw string) string {
	return strings.ReplaceAll(html.EscapeString(raw), "\n", "<br/>")
}
