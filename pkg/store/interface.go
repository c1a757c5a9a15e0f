// Package store provides the persistence layer of the sync server.
//
// It manages stores (tenants), API keys and file records, including the
// tombstone lifecycle for soft-deleted files and the paginated listing
// query engine.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL
package store

import (
	"context"
	"time"

	"github.com/marmos91/syncbox/pkg/models"
)

// UpsertResult is the outcome of a write that may insert, resurrect or
// update a file record. Created is true for inserts and resurrections.
type UpsertResult struct {
	File    *models.File
	Created bool
}

// ListOptions are the composable filters and pagination of a file listing.
// Zero values mean "no filter"; Limit and Offset are normalized by the
// store (limit clamped to [1, 1000], default 100).
type ListOptions struct {
	PathPrefix      string
	PathContains    string
	Extensions      []string // normalized: trimmed, lowercased
	ContentContains string
	IsBinary        *bool
	IncludeDeleted  bool
	Limit           int
	Offset          int
}

// FileList is a page of file summaries plus the total count matching the
// same filters. Content is never included in listings.
type FileList struct {
	Files  []*models.File
	Total  int64
	Limit  int
	Offset int
}

// Store provides the persistence interface of the sync server.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Operations that span detect-then-act (CreateStrict, Upsert over a
// tombstone, Rename) are serialized per (store, path) via the unique
// constraint and transactional row locks; concurrent writers racing on the
// same path observe exactly one winner.
type Store interface {
	// ============================================
	// STORE (TENANT) OPERATIONS
	// ============================================

	// GetStore returns a store by id.
	// Returns models.ErrStoreNotFound if it doesn't exist.
	GetStore(ctx context.Context, id string) (*models.Store, error)

	// ListStores returns all stores.
	ListStores(ctx context.Context) ([]*models.Store, error)

	// CreateStore creates a new store. The id is generated if empty.
	// Returns the generated id.
	CreateStore(ctx context.Context, store *models.Store) (string, error)

	// DeleteStore deletes a store and cascades to its files and keys.
	// Returns models.ErrStoreNotFound if it doesn't exist.
	DeleteStore(ctx context.Context, id string) error

	// ============================================
	// API KEY OPERATIONS
	// ============================================

	// GetAPIKeyByHash returns the non-revoked key with the given SHA-256
	// hash. Returns models.ErrAPIKeyNotFound if no live key matches.
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)

	// ListAPIKeys returns all keys of a store, revoked ones included.
	ListAPIKeys(ctx context.Context, storeID string) ([]*models.APIKey, error)

	// CreateAPIKey creates a new key. The id is generated if empty.
	CreateAPIKey(ctx context.Context, key *models.APIKey) (string, error)

	// RevokeAPIKey sets the revocation timestamp on a key.
	// Returns models.ErrAPIKeyNotFound if it doesn't exist.
	RevokeAPIKey(ctx context.Context, id string) error

	// TouchAPIKey updates the key's last-use timestamp. Best-effort
	// semantics belong to the caller; this is a plain update.
	TouchAPIKey(ctx context.Context, id string, when time.Time) error

	// ============================================
	// FILE OPERATIONS
	// ============================================

	// GetFile returns the active record at (storeID, path).
	// Tombstones are rejected: models.ErrFileNotFound.
	GetFile(ctx context.Context, storeID, path string) (*models.File, error)

	// GetFileIncludingDeleted returns the record at (storeID, path)
	// regardless of tombstone state.
	GetFileIncludingDeleted(ctx context.Context, storeID, path string) (*models.File, error)

	// CreateEmpty ensures a record exists at path. An existing active
	// record is returned with Created=false (idempotent discovery); a
	// tombstone is resurrected empty; otherwise a new empty record is
	// inserted.
	CreateEmpty(ctx context.Context, storeID, path string) (*UpsertResult, error)

	// CreateStrict inserts a record with the given content. Fails with
	// models.ErrFileExists if an active record exists; a tombstone is
	// resurrected with the provided content.
	CreateStrict(ctx context.Context, storeID, path, stored string) (*models.File, error)

	// Upsert inserts, resurrects or updates the record at path with the
	// given content. Created is true for inserts and resurrections.
	Upsert(ctx context.Context, storeID, path, stored string) (*UpsertResult, error)

	// SoftDelete turns the active record at path into a tombstone.
	// Missing and already-tombstoned targets yield deleted=false, no error.
	SoftDelete(ctx context.Context, storeID, path string) (bool, error)

	// SoftDeleteAll tombstones every active record of the store and
	// returns the number affected.
	SoftDeleteAll(ctx context.Context, storeID string) (int64, error)

	// Rename moves the record at oldPath to newPath. A tombstone at the
	// destination is removed first; an active destination record is
	// tombstoned and replaced. Created is true when there was no active
	// source and an empty record was created at the destination.
	Rename(ctx context.Context, storeID, oldPath, newPath string) (*UpsertResult, error)

	// ListFiles returns a filtered, paginated page of file summaries.
	ListFiles(ctx context.Context, storeID string, opts ListOptions) (*FileList, error)

	// CleanupExpired permanently deletes tombstones whose TTL has passed.
	CleanupExpired(ctx context.Context) (int64, error)

	// ============================================
	// HEALTH
	// ============================================

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying database resources.
	Close() error
}
