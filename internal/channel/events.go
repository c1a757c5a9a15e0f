package channel

import (
	"time"

	"github.com/marmos91/syncbox/pkg/models"
)

// Inbound payloads.

// CreatedFilePayload announces a new (empty) file.
type CreatedFilePayload struct {
	Path string `json:"path"`
}

// ModifiedFilePayload carries the full stored representation of a change.
type ModifiedFilePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DeletedFilePayload announces a deletion.
type DeletedFilePayload struct {
	Path string `json:"path"`
}

// RenamedFilePayload announces a move.
type RenamedFilePayload struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

// Outbound payloads. Broadcasts carry the full stored content plus
// metadata so receiving peers can apply the change without a follow-up
// read. Timestamps marshal to RFC 3339 with timezone.

// FileCreatedEvent is broadcast when a record is inserted or resurrected.
type FileCreatedEvent struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	IsBinary  bool      `json:"isBinary"`
	Extension string    `json:"extension,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileModifiedEvent is broadcast when an active record's content changes.
type FileModifiedEvent struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	IsBinary  bool      `json:"isBinary"`
	Extension string    `json:"extension,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileDeletedEvent is broadcast when a record is tombstoned.
type FileDeletedEvent struct {
	Path      string    `json:"path"`
	DeletedAt time.Time `json:"deletedAt"`
}

// FileRenamedEvent is broadcast when a record moves to a new path.
type FileRenamedEvent struct {
	OldPath   string    `json:"oldPath"`
	NewPath   string    `json:"newPath"`
	Content   string    `json:"content"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	IsBinary  bool      `json:"isBinary"`
	Extension string    `json:"extension,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewFileCreatedEvent builds the broadcast payload for a created or
// resurrected record.
func NewFileCreatedEvent(f *models.File) FileCreatedEvent {
	return FileCreatedEvent{
		Path:      f.Path,
		Content:   f.Content,
		Hash:      f.Hash,
		Size:      f.Size,
		IsBinary:  f.IsBinary,
		Extension: f.Extension,
		CreatedAt: f.CreatedAt,
	}
}

// NewFileModifiedEvent builds the broadcast payload for a content update.
func NewFileModifiedEvent(f *models.File) FileModifiedEvent {
	return FileModifiedEvent{
		Path:      f.Path,
		Content:   f.Content,
		Hash:      f.Hash,
		Size:      f.Size,
		IsBinary:  f.IsBinary,
		Extension: f.Extension,
		UpdatedAt: f.UpdatedAt,
	}
}

// NewFileRenamedEvent builds the broadcast payload for a move.
func NewFileRenamedEvent(oldPath string, f *models.File) FileRenamedEvent {
	return FileRenamedEvent{
		OldPath:   oldPath,
		NewPath:   f.Path,
		Content:   f.Content,
		Hash:      f.Hash,
		Size:      f.Size,
		IsBinary:  f.IsBinary,
		Extension: f.Extension,
		UpdatedAt: f.UpdatedAt,
	}
}
