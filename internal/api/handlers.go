package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tessera/internal/index"
	"github.com/starford/tessera/internal/noteservice"
	"github.com/starford/tessera/internal/ranker"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recently modified first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: names, Total: len(names)})
}

// GetNote handles GET /api/notes/*. With ?format=html the rendered note
// is returned instead of its source.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Param			format	query		string	false	"Response format"	Enums(raw, html)
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if r.URL.Query().Get("format") == "html" {
		html, err := h.svc.ReadRendered(r.Context(), path)
		if err != nil {
			writeError(w, "render note", err)
			return
		}
		writeJSON(w, http.StatusOK, RenderedNote{Path: path, HTML: html})
		return
	}
	note, err := h.svc.Get(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	err := h.svc.Create(r.Context(), req.Path)
	if err == nil && req.Content != "" {
		err = h.svc.Save(r.Context(), req.Path, req.Content, "")
	}
	if err != nil {
		writeMutation(w, "create note", http.StatusCreated, nil, err)
		return
	}
	note, err := h.svc.Get(r.Context(), req.Path)
	writeMutation(w, "create note", http.StatusCreated, note, err)
}

// SaveNote handles PUT /api/notes/*.
//
//	@Summary		Save a note, refusing if it changed on disk since last read
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string			true	"Note path"
//	@Param			body	body		SaveNoteRequest	true	"New content and last-seen content"
//	@Success		200		{object}	NoteDetail
//	@Success		202		{object}	warningResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [put]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req SaveNoteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Save(r.Context(), path, req.Content, req.LastSeen); err != nil {
		writeMutation(w, "save note", http.StatusOK, nil, err)
		return
	}
	note, err := h.svc.Get(r.Context(), path)
	writeMutation(w, "save note", http.StatusOK, note, err)
}

// DeleteNote handles DELETE /api/notes/*. Deleting a missing note succeeds.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	writeMutation(w, "delete note", http.StatusNoContent, nil, h.svc.Delete(r.Context(), path))
}

// RenameNote handles POST /api/rename.
//
//	@Summary		Rename a note
//	@Tags			notes
//	@Accept			json
//	@Param			body	body	RenameRequest	true	"Source and target paths"
//	@Success		204		"Note renamed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rename [post]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	writeMutation(w, "rename note", http.StatusNoContent, nil, h.svc.Rename(r.Context(), req.From, req.To))
}

// ListVersions handles GET /api/versions?path=....
//
//	@Summary		List the backups of a note, newest first
//	@Tags			versions
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	VersionListResponse
//	@Security		BearerAuth
//	@Router			/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	versions, err := h.svc.ListVersions(r.Context(), path)
	if err != nil {
		writeError(w, "list versions", err)
		return
	}
	writeJSON(w, http.StatusOK, VersionListResponse{Versions: versions})
}

// ReadVersion handles GET /api/versions/*.
//
//	@Summary		Read the content of one backup
//	@Tags			versions
//	@Produce		json
//	@Param			name	path		string	true	"Backup name"
//	@Success		200		{object}	VersionContent
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{name} [get]
func (h *Handler) ReadVersion(w http.ResponseWriter, r *http.Request) {
	name := notePath(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("version is required"))
		return
	}
	content, err := h.svc.ReadVersion(r.Context(), name)
	if err != nil {
		writeError(w, "read version", err)
		return
	}
	writeJSON(w, http.StatusOK, VersionContent{Name: name, Content: content})
}

// RestoreVersion handles POST /api/restore.
//
//	@Summary		Restore a note from one of its backups
//	@Tags			versions
//	@Accept			json
//	@Param			body	body	RestoreRequest	true	"Note and backup name"
//	@Success		204		"Version restored"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/restore [post]
func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.svc.RestoreVersion(r.Context(), req.Path, req.Version)
	writeMutation(w, "restore version", http.StatusNoContent, nil, err)
}

// Search handles GET /api/search. A blank query lists recent notes.
//
//	@Summary		Ranked search across note titles and content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.SearchHits(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if hits == nil {
		hits = []ranker.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// Resync handles POST /api/index/resync. With ?rebuild=true the index is
// dropped and rebuilt instead of reconciled.
//
//	@Summary		Reconcile the index with the notes root
//	@Tags			index
//	@Produce		json
//	@Param			rebuild	query		bool	false	"Rebuild from scratch"
//	@Success		200		{object}	ResyncResponse
//	@Security		BearerAuth
//	@Router			/index/resync [post]
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	rebuild, _ := strconv.ParseBool(r.URL.Query().Get("rebuild"))
	start := time.Now()

	var (
		stats index.Stats
		err   error
	)
	if rebuild {
		stats, err = h.svc.Rebuild(r.Context(), "requested over HTTP")
	} else {
		stats, err = h.svc.Resync(r.Context())
	}
	if err != nil {
		writeError(w, "resync", err)
		return
	}
	writeJSON(w, http.StatusOK, ResyncResponse{
		Stats:   stats,
		Rebuild: rebuild,
		Took:    time.Since(start).Round(time.Millisecond).String(),
	})
}

// Check handles GET /api/index/check.
//
//	@Summary		Quick consistency check of the index
//	@Tags			index
//	@Produce		json
//	@Success		200		{object}	CheckResponse
//	@Security		BearerAuth
//	@Router			/index/check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.QuickCheck(r.Context())
	if err != nil {
		writeError(w, "index check", err)
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{InSync: ok, CheckedAt: time.Now().UTC()})
}
