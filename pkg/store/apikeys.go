package store

import (
	"context"
	"time"

	"github.com/marmos91/syncbox/pkg/models"
)

// GetAPIKeyByHash returns the non-revoked key with the given hash.
func (s *GORMStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ? AND revoked_at IS NULL", hash).
		First(&key).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrAPIKeyNotFound)
	}
	return &key, nil
}

// ListAPIKeys returns all keys of a store, revoked ones included.
func (s *GORMStore) ListAPIKeys(ctx context.Context, storeID string) ([]*models.APIKey, error) {
	return listByField[models.APIKey](s.db, ctx, "store_id", storeID)
}

// CreateAPIKey creates a new key, generating the id if empty.
func (s *GORMStore) CreateAPIKey(ctx context.Context, key *models.APIKey) (string, error) {
	return createWithID(s.db, ctx, key,
		func(k *models.APIKey, id string) { k.ID = id },
		key.ID, models.ErrDuplicateAPIKey)
}

// RevokeAPIKey sets the revocation timestamp. Revoking twice is a no-op
// that still succeeds as long as the key exists.
func (s *GORMStore) RevokeAPIKey(ctx context.Context, id string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish missing from already revoked.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.APIKey{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrAPIKeyNotFound
		}
	}
	return nil
}

// TouchAPIKey updates the key's last-use timestamp.
func (s *GORMStore) TouchAPIKey(ctx context.Context, id string, when time.Time) error {
	return s.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", when).Error
}
