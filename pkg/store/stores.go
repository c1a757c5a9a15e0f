package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/syncbox/pkg/models"
)

// GetStore returns a store by id.
func (s *GORMStore) GetStore(ctx context.Context, id string) (*models.Store, error) {
	return getByField[models.Store](s.db, ctx, "id", id, models.ErrStoreNotFound)
}

// ListStores returns all stores.
func (s *GORMStore) ListStores(ctx context.Context) ([]*models.Store, error) {
	results := []*models.Store{}
	if err := s.db.WithContext(ctx).Order("created_at").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CreateStore creates a new store, generating the id if empty.
func (s *GORMStore) CreateStore(ctx context.Context, store *models.Store) (string, error) {
	return createWithID(s.db, ctx, store,
		func(st *models.Store, id string) { st.ID = id },
		store.ID, models.ErrDuplicateStore)
}

// DeleteStore deletes a store. Files and keys go with it.
//
// SQLite does not enforce the declared foreign keys unless the pragma is
// on, so the cascade is done explicitly inside a transaction; on Postgres
// the constraint would handle it but the explicit deletes are harmless.
func (s *GORMStore) DeleteStore(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ?", id).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("store_id = ?", id).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Store{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrStoreNotFound
		}
		return nil
	})
}
