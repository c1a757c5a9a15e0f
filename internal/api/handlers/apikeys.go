package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

// APIKeysHandler serves the admin CRUD for tenant API keys.
type APIKeysHandler struct {
	store store.Store
}

// NewAPIKeysHandler creates an API keys handler.
func NewAPIKeysHandler(s store.Store) *APIKeysHandler {
	return &APIKeysHandler{store: s}
}

// CreateAPIKeyRequest is the body of POST /api/v1/stores/{id}/keys.
type CreateAPIKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// CreateAPIKeyResponse carries the plaintext key. It is returned exactly
// once; only the hash and display prefix are persisted.
type CreateAPIKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// List serves GET /api/v1/stores/{id}/keys.
func (h *APIKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")
	if _, err := h.store.GetStore(r.Context(), storeID); err != nil {
		WriteError(w, r, err)
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), storeID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string][]*models.APIKey{"keys": keys})
}

// Create serves POST /api/v1/stores/{id}/keys.
func (h *APIKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "id")
	if _, err := h.store.GetStore(r.Context(), storeID); err != nil {
		WriteError(w, r, err)
		return
	}

	var req CreateAPIKeyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 255 {
		WriteError(w, r, errdefs.Validation("name must be 1-255 characters"))
		return
	}

	perms := models.ParsePermissions(strings.Join(req.Permissions, ","))
	if len(perms) == 0 {
		WriteError(w, r, errdefs.Validation("permissions must include read and/or write"))
		return
	}

	plaintext, err := auth.GenerateKey(storeID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	key := &models.APIKey{
		StoreID:     storeID,
		Name:        req.Name,
		KeyPrefix:   auth.DisplayPrefix(plaintext),
		KeyHash:     auth.HashKey(plaintext),
		Permissions: models.JoinPermissions(perms),
	}
	if _, err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSONCreated(w, CreateAPIKeyResponse{APIKey: key, Key: plaintext})
}

// Revoke serves DELETE /api/v1/keys/{id}. Revocation is a tombstone, not
// a row delete, so audit history survives.
func (h *APIKeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RevokeAPIKey(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}
