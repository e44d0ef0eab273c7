package web

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	// Raw HTML stays disabled (no gmhtml.WithUnsafe).
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

var htmlPolicy = bluemonday.UGCPolicy()

// renderMarkdownHTML renders a task description. Output is sanitized so it
// can be embedded by any client as-is.
func renderMarkdownHTML(src string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return htmlPolicy.Sanitize(b.String())
}
