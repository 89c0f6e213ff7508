package mcpserver

// NoteConventions describes how notes are named and stored. It is served as
// a resource so that LLM clients pick valid paths before calling tools.
const NoteConventions = `# Tessera Note Conventions

Notes are plain-text files under a single notes root. A note is identified
by its path relative to that root, using forward slashes.

## Paths

1. Relative only: no leading ` + "`/`" + `, no drive letters, no backslashes.
2. No ` + "`..`" + ` segments and no empty segments.
3. No segment may start with a dot; hidden files and directories are never
   indexed.
4. Folders are created on demand when a note is written.

## Editing

- ` + "`create_note`" + ` refuses to overwrite an existing note.
- Every overwrite, rename and delete first takes a backup; use
  ` + "`list_versions`" + ` to see them.
- Search results rank title matches above body matches, so put the most
  distinctive words in the first heading.
`
