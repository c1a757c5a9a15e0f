package models

import "time"

// Store is a tenant: an isolated namespace of files and API keys.
// Deleting a store cascades to its files and keys.
type Store struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	APIKeys []APIKey `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
	Files   []File   `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Store.
func (Store) TableName() string {
	return "stores"
}
