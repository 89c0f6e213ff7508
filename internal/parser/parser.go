// Package parser derives display titles from note content and separates YAML
// frontmatter from the Markdown body.
package parser

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
}

// Parse separates frontmatter from the body. Invalid or unterminated
// frontmatter is treated as body text.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{Frontmatter: fm, Body: body}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// Title returns the first non-empty line of the body, after any
// frontmatter, with leading '#' markers stripped. When the body has no such
// line it falls back to FilenameTitle.
func Title(content, filename string) string {
	body := content
	if strings.HasPrefix(strings.TrimLeft(content, "\n\r"), "---") {
		_, body = splitFrontmatter([]byte(content))
	}
	for line := range strings.SplitSeq(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if trimmed == "" {
			continue
		}
		return trimmed
	}
	return FilenameTitle(filename)
}

// FilenameTitle turns a note identifier into a readable title: the base name
// without extension, with separators replaced by spaces.
func FilenameTitle(filename string) string {
	base := path.Base(filename)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}
