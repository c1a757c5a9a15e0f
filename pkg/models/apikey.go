package models

import (
	"strings"
	"time"
)

// Permission is a capability carried by an API key.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// ParsePermissions parses a comma-separated permission list, dropping
// unknown tokens. Order is not significant.
func ParsePermissions(s string) []Permission {
	var perms []Permission
	for _, tok := range strings.Split(s, ",") {
		switch Permission(strings.TrimSpace(strings.ToLower(tok))) {
		case PermissionRead:
			perms = append(perms, PermissionRead)
		case PermissionWrite:
			perms = append(perms, PermissionWrite)
		}
	}
	return perms
}

// JoinPermissions renders a permission set to its stored form.
func JoinPermissions(perms []Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// APIKey is a tenant-scoped bearer credential. Only the SHA-256 hash of
// the plaintext and its first 16 characters are persisted; the plaintext
// is returned exactly once at creation.
type APIKey struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	StoreID     string     `gorm:"not null;size:36;index" json:"store_id"`
	Name        string     `gorm:"not null;size:255" json:"name"`
	KeyPrefix   string     `gorm:"not null;size:16" json:"key_prefix"`
	KeyHash     string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	Permissions string     `gorm:"not null;size:50" json:"permissions"` // comma-separated: read,write
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`

	Store Store `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for APIKey.
func (APIKey) TableName() string {
	return "api_keys"
}

// PermissionSet returns the parsed permission set.
func (k *APIKey) PermissionSet() []Permission {
	return ParsePermissions(k.Permissions)
}

// HasPermission reports whether the key carries the given permission.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, have := range k.PermissionSet() {
		if have == p {
			return true
		}
	}
	return false
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}
