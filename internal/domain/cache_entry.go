package domain

import "time"

// CacheEntry is the last-known state of a listing. One entry exists per
// (marketplace, listing_id) pair; entries are never expired automatically.
type CacheEntry struct {
	Marketplace    string     `gorm:"type:text;primaryKey" json:"marketplace"`
	ListingID      string     `gorm:"type:text;primaryKey" json:"listing_id"`
	FieldHash      string     `gorm:"type:text;not null" json:"field_hash"`
	CoreHash       string     `gorm:"type:text;not null" json:"core_hash"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
	FirstSeenAt    time.Time  `json:"first_seen_at"`
	LastSeenAt     time.Time  `json:"last_seen_at"`
}

// TableName returns the database table name for CacheEntry.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CacheEntry) TableName() string {
	return "listing_cache"
}
