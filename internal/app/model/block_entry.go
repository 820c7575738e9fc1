package model

import "time"

// BlockEntry prevents an IP from creating links until it expires, or forever when permanent.
type BlockEntry struct {
	IP        string     `db:"ip" gorm:"primaryKey;size:64"`
	Reason    string     `db:"reason" gorm:"type:text;not null"`
	BlockedAt time.Time  `db:"blocked_at" gorm:"not null"`
	ExpiresAt *time.Time `db:"expires_at" gorm:"index"`
	Permanent bool       `db:"permanent" gorm:"not null;default:false"`
}

func (BlockEntry) TableName() string { return "block_entries" }

// ActiveAt reports whether the entry blocks its IP at the given instant.
// A non-permanent entry without an expiry never blocks.
func (b *BlockEntry) ActiveAt(now time.Time) bool {
	if b == nil {
		return false
	}
	if b.Permanent {
		return true
	}
	return b.ExpiresAt != nil && now.Before(*b.ExpiresAt)
}
