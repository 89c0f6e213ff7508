// Package render converts note Markdown to HTML for the index's render cache.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/tessera/internal/parser"
)

// Func renders note content to HTML. It must be safe for concurrent use.
type Func func(content string) (string, error)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Markdown renders content with GitHub-flavoured Markdown. YAML frontmatter
// is stripped before rendering.
func Markdown(content string) (string, error) {
	body := parser.Parse([]byte(content)).Body
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}
