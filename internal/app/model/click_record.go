package model

import "time"

// ClickRecord is the per-redirect diagnostic row. The authoritative count lives on Link.Clicks.
type ClickRecord struct {
	ID        string    `db:"id" gorm:"primaryKey;size:36"`
	Code      string    `db:"code" gorm:"size:32;not null;index:idx_clicks_code_day,priority:1"`
	Day       int64     `db:"day" gorm:"not null;index:idx_clicks_code_day,priority:2"` // UTC midnight, unix seconds
	IP        string    `db:"ip" gorm:"size:64"`
	UserAgent string    `db:"user_agent" gorm:"type:text"`
	ClickedAt time.Time `db:"clicked_at" gorm:"not null"`
}

func (ClickRecord) TableName() string { return "click_records" }

// ClickDay aggregates the click records of one day bucket.
type ClickDay struct {
	Date    time.Time     `json:"date"`
	Count   int64         `json:"count"`
	Samples []ClickSample `json:"clicks"`
}

// ClickSample is a single click shown inside a ClickDay.
type ClickSample struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}
