//go:build !sqlite_fts5

package index

import "strings"

// Without FTS5 compiled in, the notes table is a plain table and candidate
// filtering uses LIKE over filename and content.
const ftsEnabled = false

const notesSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	filename    TEXT PRIMARY KEY,
	content     TEXT NOT NULL DEFAULT '',
	html_render TEXT NOT NULL DEFAULT '',
	modified    INTEGER NOT NULL DEFAULT 0,
	is_indexed  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notes_modified ON notes(modified);
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// candidateQuery matches any word as a case-insensitive substring of the
// filename or content, newest first.
func candidateQuery(words []string, limit int) (string, []any) {
	clauses := make([]string, 0, len(words))
	args := make([]any, 0, 2*len(words)+1)
	for _, w := range words {
		like := "%" + likeEscaper.Replace(strings.ToLower(w)) + "%"
		clauses = append(clauses, `lower(filename) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\'`)
		args = append(args, like, like)
	}
	args = append(args, limit)
	return `
		SELECT filename, content, modified
		FROM notes
		WHERE ` + strings.Join(clauses, " OR ") + `
		ORDER BY modified DESC, filename ASC
		LIMIT ?
	`, args
}
