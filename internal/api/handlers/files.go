package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/internal/channel"
	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/pkg/content"
	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

// FilesHandler serves the tenant-scoped file endpoints. Every successful
// mutation broadcasts the same outbound event a channel peer would have
// emitted, but to the entire room: the request issuer has no connection
// to exclude, and any connection it does hold must converge too.
type FilesHandler struct {
	store       store.Store
	broadcaster channel.Broadcaster
}

// NewFilesHandler creates a files handler.
func NewFilesHandler(s store.Store, b channel.Broadcaster) *FilesHandler {
	return &FilesHandler{store: s, broadcaster: b}
}

// FileResponse is the response envelope of the file endpoints.
// Content is only populated for single-file reads and mutations.
type FileResponse struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	Content   *string    `json:"content,omitempty"`
	Hash      string     `json:"hash"`
	Size      int64      `json:"size"`
	Extension string     `json:"extension,omitempty"`
	IsBinary  bool       `json:"isBinary"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// FileListResponse is the response envelope of the listing endpoint.
type FileListResponse struct {
	Files  []FileResponse `json:"files"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func fileResponse(f *models.File, withContent bool) FileResponse {
	resp := FileResponse{
		ID:        f.ID,
		Path:      f.Path,
		Hash:      f.Hash,
		Size:      f.Size,
		Extension: f.Extension,
		IsBinary:  f.IsBinary,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		ExpiresAt: f.ExpiresAt,
	}
	if withContent {
		resp.Content = &f.Content
	}
	return resp
}

func requireRead(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.FromContext(r.Context())
	if id == nil || !id.CanRead() {
		WriteError(w, r, errdefs.Forbidden("read permission required"))
		return nil
	}
	return id
}

func requireWrite(w http.ResponseWriter, r *http.Request) *auth.Identity {
	id := auth.FromContext(r.Context())
	if id == nil || !id.CanWrite() {
		WriteError(w, r, errdefs.Forbidden("write permission required"))
		return nil
	}
	return id
}

// Get serves GET /files. A bare path parameter means a single-file read;
// the presence of limit or offset selects the listing, where path acts
// as the prefix filter.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("path") != "" && !q.Has("limit") && !q.Has("offset") {
		h.getOne(w, r)
		return
	}
	h.list(w, r)
}

func (h *FilesHandler) getOne(w http.ResponseWriter, r *http.Request) {
	identity := requireRead(w, r)
	if identity == nil {
		return
	}

	path := r.URL.Query().Get("path")
	if err := content.ValidatePath(path); err != nil {
		WriteError(w, r, err)
		return
	}

	file, err := h.store.GetFile(r.Context(), identity.StoreID, path)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, fileResponse(file, true))
}

func (h *FilesHandler) list(w http.ResponseWriter, r *http.Request) {
	identity := requireRead(w, r)
	if identity == nil {
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	// Lazy tombstone reaping rides on listings; its outcome never gates
	// the response.
	go h.cleanupExpired()

	page, err := h.store.ListFiles(r.Context(), identity.StoreID, opts)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	files := make([]FileResponse, len(page.Files))
	for i, f := range page.Files {
		files[i] = fileResponse(f, false)
	}
	WriteJSONOK(w, FileListResponse{
		Files:  files,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func (h *FilesHandler) cleanupExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if n, err := h.store.CleanupExpired(ctx); err != nil {
		logger.Warn("tombstone cleanup failed", "error", err)
	} else if n > 0 {
		logger.Debug("expired tombstones removed", "count", n)
	}
}

func parseListOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{
		PathPrefix:      q.Get("path"),
		PathContains:    q.Get("path_contains"),
		ContentContains: q.Get("content_contains"),
	}

	if ext := q.Get("extension"); ext != "" {
		opts.Extensions = store.NormalizeExtensions(ext)
	}
	if v := q.Get("is_binary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errdefs.Validation("is_binary must be a boolean")
		}
		opts.IsBinary = &b
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errdefs.Validation("include_deleted must be a boolean")
		}
		opts.IncludeDeleted = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errdefs.Validation("limit must be an integer")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errdefs.Validation("offset must be an integer")
		}
		opts.Offset = n
	}
	return opts, nil
}

// CreateFileRequest is the body of POST and PUT /files.
type CreateFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Create serves POST /files: strict create, 409 against an active record.
func (h *FilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := requireWrite(w, r)
	if identity == nil {
		return
	}

	var req CreateFileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := content.ValidatePath(req.Path); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := content.ValidateContent(req.Content); err != nil {
		WriteError(w, r, err)
		return
	}

	file, err := h.store.CreateStrict(r.Context(), identity.StoreID, req.Path, req.Content)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSONCreated(w, fileResponse(file, true))
	h.broadcaster.BroadcastToStore(identity.StoreID,
		channel.EventFileCreated, channel.NewFileCreatedEvent(file))
}

// Upsert serves PUT /files.
func (h *FilesHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	identity := requireWrite(w, r)
	if identity == nil {
		return
	}

	var req CreateFileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := content.ValidatePath(req.Path); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := content.ValidateContent(req.Content); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.store.Upsert(r.Context(), identity.StoreID, req.Path, req.Content)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSONOK(w, fileResponse(res.File, true))
	if res.Created {
		h.broadcaster.BroadcastToStore(identity.StoreID,
			channel.EventFileCreated, channel.NewFileCreatedEvent(res.File))
	} else {
		h.broadcaster.BroadcastToStore(identity.StoreID,
			channel.EventFileModified, channel.NewFileModifiedEvent(res.File))
	}
}

// RenameFileRequest is the body of PATCH /files.
type RenameFileRequest struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath"`
}

// Rename serves PATCH /files.
func (h *FilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	identity := requireWrite(w, r)
	if identity == nil {
		return
	}

	var req RenameFileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := content.ValidatePath(req.Path); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := content.ValidatePath(req.NewPath); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.store.Rename(r.Context(), identity.StoreID, req.Path, req.NewPath)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSONOK(w, fileResponse(res.File, true))
	if res.Created {
		h.broadcaster.BroadcastToStore(identity.StoreID,
			channel.EventFileCreated, channel.NewFileCreatedEvent(res.File))
	} else {
		h.broadcaster.BroadcastToStore(identity.StoreID,
			channel.EventFileRenamed, channel.NewFileRenamedEvent(req.Path, res.File))
	}
}

// Delete serves DELETE /files: soft-delete, 204 whether or not a record
// was affected. The broadcast fires only when one was.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := requireWrite(w, r)
	if identity == nil {
		return
	}

	path := r.URL.Query().Get("path")
	if err := content.ValidatePath(path); err != nil {
		WriteError(w, r, err)
		return
	}

	deleted, err := h.store.SoftDelete(r.Context(), identity.StoreID, path)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteNoContent(w)
	if deleted {
		h.broadcaster.BroadcastToStore(identity.StoreID,
			channel.EventFileDeleted, channel.FileDeletedEvent{
				Path:      path,
				DeletedAt: time.Now().UTC(),
			})
	}
}

// DeleteAll serves DELETE /files/all: soft-deletes every active record.
// No per-file broadcast; peers resync after a bulk wipe.
func (h *FilesHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	identity := requireWrite(w, r)
	if identity == nil {
		return
	}

	count, err := h.store.SoftDeleteAll(r.Context(), identity.StoreID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]int64{"deleted": count})
}
