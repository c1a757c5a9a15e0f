// Package auth implements API key parsing, hashing, generation and
// resolution to a tenant identity.
//
// Two key shapes are recognized by prefix:
//
//	sk_admin_<secret>                   process-wide administrative key
//	sk_store_<tenantIdPrefix>_<secret>  tenant-scoped key
//
// Admin keys never touch the database: they are compared in constant time
// against the configured value. Tenant keys resolve by SHA-256 hash
// lookup among non-revoked keys.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

const (
	adminKeyPrefix = "sk_admin_"
	storeKeyPrefix = "sk_store_"

	// keySecretBytes is the entropy of a generated key secret.
	keySecretBytes = 24

	// displayPrefixLen is how much of the plaintext is persisted for display.
	displayPrefixLen = 16
)

// Identity is the resolved caller of a request or connection. It is an
// immutable value bound at authentication and carried through handlers;
// per-connection state is never attached to the transport object.
type Identity struct {
	StoreID     string
	KeyID       string
	Permissions []models.Permission
	Admin       bool
}

// CanRead reports whether the identity may read files.
func (id *Identity) CanRead() bool {
	return id.hasPermission(models.PermissionRead)
}

// CanWrite reports whether the identity may mutate files.
func (id *Identity) CanWrite() bool {
	return id.hasPermission(models.PermissionWrite)
}

func (id *Identity) hasPermission(p models.Permission) bool {
	for _, have := range id.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Validator resolves plaintext API keys to identities.
type Validator struct {
	store    store.Store
	adminKey string
}

// NewValidator creates a key validator. adminKey may be empty, in which
// case admin authentication always fails.
func NewValidator(s store.Store, adminKey string) *Validator {
	return &Validator{store: s, adminKey: adminKey}
}

// HashKey returns the lowercase hex SHA-256 of a plaintext key.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// GenerateKey composes a fresh tenant key for the given store id:
// sk_store_<first 6 hex chars of the id, dashes stripped>_<24 random
// bytes, base64url without padding>.
func GenerateKey(storeID string) (string, error) {
	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	idPrefix := strings.ReplaceAll(storeID, "-", "")
	if len(idPrefix) > 6 {
		idPrefix = idPrefix[:6]
	}
	encoded := base64.RawURLEncoding.EncodeToString(secret)
	return storeKeyPrefix + idPrefix + "_" + encoded, nil
}

// DisplayPrefix returns the first 16 characters of a plaintext key, the
// only part of it persisted for display.
func DisplayPrefix(plaintext string) string {
	if len(plaintext) <= displayPrefixLen {
		return plaintext
	}
	return plaintext[:displayPrefixLen]
}

// IsAdminShape reports whether the plaintext has the admin key shape.
func IsAdminShape(plaintext string) bool {
	return strings.HasPrefix(plaintext, adminKeyPrefix)
}

// IsStoreShape reports whether the plaintext has the tenant key shape.
func IsStoreShape(plaintext string) bool {
	return strings.HasPrefix(plaintext, storeKeyPrefix)
}

// AuthenticateAdmin checks the plaintext against the configured admin key
// in constant time.
func (v *Validator) AuthenticateAdmin(plaintext string) error {
	if plaintext == "" {
		return errdefs.New(errdefs.CodeUnauthorized, "API key required")
	}
	if v.adminKey == "" ||
		subtle.ConstantTimeCompare([]byte(plaintext), []byte(v.adminKey)) != 1 {
		return errdefs.New(errdefs.CodeUnauthorized, "invalid API key")
	}
	return nil
}

// Authenticate resolves a plaintext key to an identity. Admin keys
// short-circuit before any database access; tenant keys resolve by hash
// among non-revoked rows. Store unavailability surfaces as UNAUTHORIZED so
// callers cannot distinguish a down backend from a bad key; /health is
// the signal for that.
func (v *Validator) Authenticate(ctx context.Context, plaintext string) (*Identity, error) {
	if plaintext == "" {
		return nil, errdefs.New(errdefs.CodeUnauthorized, "API key required")
	}

	if IsAdminShape(plaintext) {
		if err := v.AuthenticateAdmin(plaintext); err != nil {
			return nil, err
		}
		return &Identity{Admin: true}, nil
	}

	if !IsStoreShape(plaintext) {
		return nil, errdefs.New(errdefs.CodeUnauthorized, "invalid API key")
	}

	key, err := v.store.GetAPIKeyByHash(ctx, HashKey(plaintext))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.CodeUnauthorized, "invalid API key", err)
	}

	// Best-effort: never blocks or fails the caller.
	go v.touch(key.ID)

	return &Identity{
		StoreID:     key.StoreID,
		KeyID:       key.ID,
		Permissions: key.PermissionSet(),
	}, nil
}

func (v *Validator) touch(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.store.TouchAPIKey(ctx, keyID, time.Now()); err != nil {
		logger.Warn("failed to update key last-use timestamp", "key_id", keyID, "error", err)
	}
}
