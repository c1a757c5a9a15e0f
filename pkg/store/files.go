package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/syncbox/pkg/content"
	"github.com/marmos91/syncbox/pkg/models"
)

// TombstoneTTL is how long a soft-deleted record is retained before it
// becomes eligible for permanent removal.
const TombstoneTTL = 30 * 24 * time.Hour

// GetFile returns the active record at (storeID, path).
func (s *GORMStore) GetFile(ctx context.Context, storeID, path string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND path = ? AND expires_at IS NULL", storeID, path).
		First(&file).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// GetFileIncludingDeleted returns the record at (storeID, path) regardless
// of tombstone state.
func (s *GORMStore) GetFileIncludingDeleted(ctx context.Context, storeID, path string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND path = ?", storeID, path).
		First(&file).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// lockFileForUpdate reads the record at (storeID, path), tombstones
// included, taking a row lock on backends that support it. SQLite
// serializes writers on its own.
func lockFileForUpdate(tx *gorm.DB, storeID, path string) (*models.File, error) {
	var file models.File
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND path = ?", storeID, path).
		First(&file).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// newFile builds a record with all derived fields computed from the path
// and the stored representation. Extension and binary flag are never
// accepted from clients.
func newFile(storeID, path, stored string) *models.File {
	return &models.File{
		ID:        uuid.New().String(),
		StoreID:   storeID,
		Path:      path,
		Content:   stored,
		Hash:      content.Hash(stored),
		Size:      content.Size(stored),
		Extension: content.Extension(path),
		IsBinary:  content.IsBinaryPath(path),
	}
}

// resurrect reuses a tombstoned row: same id, expiry cleared, content and
// derived fields rewritten.
func resurrect(tx *gorm.DB, file *models.File, stored string) error {
	now := time.Now()
	updates := map[string]any{
		"content":    stored,
		"hash":       content.Hash(stored),
		"size":       content.Size(stored),
		"extension":  content.Extension(file.Path),
		"is_binary":  content.IsBinaryPath(file.Path),
		"expires_at": nil,
		"updated_at": now,
	}
	if err := tx.Model(file).Updates(updates).Error; err != nil {
		return err
	}
	file.Content = stored
	file.Hash = content.Hash(stored)
	file.Size = content.Size(stored)
	file.Extension = content.Extension(file.Path)
	file.IsBinary = content.IsBinaryPath(file.Path)
	file.ExpiresAt = nil
	file.UpdatedAt = now
	return nil
}

// CreateEmpty ensures a record exists at path.
func (s *GORMStore) CreateEmpty(ctx context.Context, storeID, path string) (*UpsertResult, error) {
	var res UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockFileForUpdate(tx, storeID, path)
		switch {
		case err == nil && !existing.Deleted():
			// Idempotent discovery.
			res = UpsertResult{File: existing, Created: false}
			return nil
		case err == nil:
			if err := resurrect(tx, existing, ""); err != nil {
				return err
			}
			res = UpsertResult{File: existing, Created: true}
			return nil
		case err == models.ErrFileNotFound:
			file := newFile(storeID, path, "")
			if err := tx.Create(file).Error; err != nil {
				return err
			}
			res = UpsertResult{File: file, Created: true}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateStrict inserts a record with the given content, refusing to
// overwrite an active one.
func (s *GORMStore) CreateStrict(ctx context.Context, storeID, path, stored string) (*models.File, error) {
	var created *models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockFileForUpdate(tx, storeID, path)
		switch {
		case err == nil && !existing.Deleted():
			return models.ErrFileExists
		case err == nil:
			if err := resurrect(tx, existing, stored); err != nil {
				return err
			}
			created = existing
			return nil
		case err == models.ErrFileNotFound:
			file := newFile(storeID, path, stored)
			if err := tx.Create(file).Error; err != nil {
				if isUniqueConstraintError(err) {
					// Lost the race to a concurrent insert.
					return models.ErrFileExists
				}
				return err
			}
			created = file
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Upsert inserts, resurrects or updates the record at path.
func (s *GORMStore) Upsert(ctx context.Context, storeID, path, stored string) (*UpsertResult, error) {
	var res UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lockFileForUpdate(tx, storeID, path)
		switch {
		case err == nil && !existing.Deleted():
			now := time.Now()
			updates := map[string]any{
				"content":    stored,
				"hash":       content.Hash(stored),
				"size":       content.Size(stored),
				"updated_at": now,
			}
			if err := tx.Model(existing).Updates(updates).Error; err != nil {
				return err
			}
			existing.Content = stored
			existing.Hash = content.Hash(stored)
			existing.Size = content.Size(stored)
			existing.UpdatedAt = now
			res = UpsertResult{File: existing, Created: false}
			return nil
		case err == nil:
			if err := resurrect(tx, existing, stored); err != nil {
				return err
			}
			res = UpsertResult{File: existing, Created: true}
			return nil
		case err == models.ErrFileNotFound:
			file := newFile(storeID, path, stored)
			if err := tx.Create(file).Error; err != nil {
				return err
			}
			res = UpsertResult{File: file, Created: true}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// tombstoneUpdates is the column set that turns a row into a tombstone.
func tombstoneUpdates(now time.Time) map[string]any {
	return map[string]any{
		"content":    "",
		"hash":       content.EmptyHash,
		"size":       0,
		"expires_at": now.Add(TombstoneTTL),
		"updated_at": now,
	}
}

// SoftDelete turns the active record at path into a tombstone.
// The WHERE clause doubles as the compare of a compare-and-act: only an
// active row is affected, so a concurrent delete yields deleted=false for
// the loser.
func (s *GORMStore) SoftDelete(ctx context.Context, storeID, path string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.File{}).
		Where("store_id = ? AND path = ? AND expires_at IS NULL", storeID, path).
		Updates(tombstoneUpdates(time.Now()))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SoftDeleteAll tombstones every active record of the store.
func (s *GORMStore) SoftDeleteAll(ctx context.Context, storeID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.File{}).
		Where("store_id = ? AND expires_at IS NULL", storeID).
		Updates(tombstoneUpdates(time.Now()))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Rename moves the record at oldPath to newPath.
//
// When no active source exists, the destination is soft-deleted (if
// active) and an empty record is created there, so offline peers that
// replay a rename against a missing source still converge on a file at
// the destination.
//
// When the source exists, any active destination is soft-deleted and any
// destination tombstone is permanently removed: the unique key spans
// active rows and tombstones, so the tombstone would collide with the
// renamed row.
func (s *GORMStore) Rename(ctx context.Context, storeID, oldPath, newPath string) (*UpsertResult, error) {
	var res UpsertResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := lockFileForUpdate(tx, storeID, oldPath)
		if err != nil && err != models.ErrFileNotFound {
			return err
		}
		hasSource := err == nil && !source.Deleted()

		if !hasSource {
			// Replaying a rename against a missing source: the
			// destination still ends up with an (empty) active file.
			dest, err := lockFileForUpdate(tx, storeID, newPath)
			switch {
			case err == nil:
				// Active or tombstoned, the row is reused: soft-deleting
				// an active destination and resurrecting the resulting
				// tombstone collapses to a rewrite with empty content.
				if err := resurrect(tx, dest, ""); err != nil {
					return err
				}
				res = UpsertResult{File: dest, Created: true}
				return nil
			case err == models.ErrFileNotFound:
				file := newFile(storeID, newPath, "")
				if err := tx.Create(file).Error; err != nil {
					return err
				}
				res = UpsertResult{File: file, Created: true}
				return nil
			default:
				return err
			}
		}

		// Active source: clear the destination, then move. Soft-deleting
		// an active destination and hard-deleting the tombstone to free
		// the unique key collapses to a hard delete of whatever is there.
		dest, err := lockFileForUpdate(tx, storeID, newPath)
		switch {
		case err == nil && dest.ID != source.ID:
			if err := tx.Delete(dest).Error; err != nil {
				return err
			}
		case err == nil:
			// Renaming onto itself; nothing to clear.
		case err == models.ErrFileNotFound:
			// Nothing at the destination.
		default:
			return err
		}

		now := time.Now()
		updates := map[string]any{
			"path":       newPath,
			"extension":  content.Extension(newPath),
			"is_binary":  content.IsBinaryPath(newPath),
			"updated_at": now,
		}
		if err := tx.Model(source).Updates(updates).Error; err != nil {
			return err
		}
		source.Path = newPath
		source.Extension = content.Extension(newPath)
		source.IsBinary = content.IsBinaryPath(newPath)
		source.UpdatedAt = now
		res = UpsertResult{File: source, Created: false}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CleanupExpired permanently deletes tombstones whose TTL has passed.
func (s *GORMStore) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&models.File{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
