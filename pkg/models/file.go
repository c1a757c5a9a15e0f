package models

import "time"

// File is a file record owned by exactly one store.
//
// Content holds the stored representation: UTF-8 text for text files,
// base64 text for binary files. Hash and Size are always computed from
// that representation, never from raw bytes, so both peers of a sync
// converge on identical hashes.
//
// A record with ExpiresAt set is a tombstone: content cleared, size zero,
// hash of the empty string. Tombstones are invisible to normal reads and
// are reused (same ID) when a write arrives at their path before the TTL
// runs out.
type File struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	StoreID   string     `gorm:"not null;size:36;index;uniqueIndex:idx_store_path,priority:1;index:idx_store_extension,priority:1" json:"store_id"`
	Path      string     `gorm:"not null;size:1000;uniqueIndex:idx_store_path,priority:2" json:"path"`
	Content   string     `gorm:"type:text" json:"content"`
	Hash      string     `gorm:"not null;size:71" json:"hash"` // "sha256:" + 64 hex chars
	Size      int64      `gorm:"not null" json:"size"`
	Extension string     `gorm:"size:50;index:idx_store_extension,priority:2" json:"extension,omitempty"`
	IsBinary  bool       `gorm:"not null;default:false" json:"is_binary"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	Store Store `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// Deleted reports whether the record is a tombstone.
func (f *File) Deleted() bool {
	return f.ExpiresAt != nil
}
