package model

import "time"

// Link describes the core short-link entity stored in Postgres.
type Link struct {
	Code          string     `db:"code" gorm:"primaryKey;size:32"`
	URL           string     `db:"url" gorm:"type:text;not null;index"`
	OwnerIP       string     `db:"owner_ip" gorm:"size:64;not null;index:idx_links_owner_created,priority:1"`
	UserAgent     string     `db:"user_agent" gorm:"type:text"`
	Clicks        int64      `db:"clicks" gorm:"not null;default:0"`
	LastClickedAt *time.Time `db:"last_clicked_at"`
	Active        bool       `db:"active" gorm:"not null;default:true"`
	CreatedAt     time.Time  `db:"created_at" gorm:"index:idx_links_owner_created,priority:2"`
	UpdatedAt     time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

func (Link) TableName() string { return "links" }
