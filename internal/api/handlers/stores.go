package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

// StoresHandler serves the admin CRUD for stores (tenants).
type StoresHandler struct {
	store store.Store
}

// NewStoresHandler creates a stores handler.
func NewStoresHandler(s store.Store) *StoresHandler {
	return &StoresHandler{store: s}
}

// CreateStoreRequest is the body of POST /api/v1/stores.
type CreateStoreRequest struct {
	Name string `json:"name"`
}

// List serves GET /api/v1/stores.
func (h *StoresHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.store.ListStores(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string][]*models.Store{"stores": stores})
}

// Get serves GET /api/v1/stores/{id}.
func (h *StoresHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.store.GetStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, tenant)
}

// Create serves POST /api/v1/stores.
func (h *StoresHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateStoreRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 255 {
		WriteError(w, r, errdefs.Validation("name must be 1-255 characters"))
		return
	}

	tenant := &models.Store{Name: req.Name}
	if _, err := h.store.CreateStore(r.Context(), tenant); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, tenant)
}

// Delete serves DELETE /api/v1/stores/{id}. Files and keys cascade.
func (h *StoresHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteStore(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
