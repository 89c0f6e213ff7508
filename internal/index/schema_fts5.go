//go:build sqlite_fts5

package index

import "strings"

const ftsEnabled = true

const notesSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS notes USING fts5(
	filename,
	content,
	html_render UNINDEXED,
	modified UNINDEXED,
	is_indexed UNINDEXED,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

// candidateQuery turns words into an FTS5 prefix disjunction. Every word is
// quoted so that query-syntax characters are matched literally.
func candidateQuery(words []string, limit int) (string, []any) {
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"*`
	}
	return `
		SELECT filename, content, modified
		FROM notes
		WHERE notes MATCH ?
		ORDER BY rank
		LIMIT ?
	`, []any{strings.Join(terms, " OR "), limit}
}
