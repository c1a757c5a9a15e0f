// Package models defines the persisted entities of the sync server:
// stores (tenants), API keys and file records.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Store{},
		&APIKey{},
		&File{},
	}
}
