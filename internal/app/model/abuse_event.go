package model

import "time"

// AbuseKind classifies why a request was rejected as spam.
type AbuseKind string

const (
	AbuseBlockedDomain      AbuseKind = "BLOCKED_DOMAIN"
	AbuseSuspiciousKeyword  AbuseKind = "SUSPICIOUS_KEYWORD"
	AbuseDailyLimitExceeded AbuseKind = "DAILY_LIMIT_EXCEEDED"
	AbuseRapidCreation      AbuseKind = "RAPID_CREATION"
)

// AbuseEvent is an append-only record of a rejected request, attributed to an IP.
type AbuseEvent struct {
	ID        uint64    `db:"id" gorm:"primaryKey;autoIncrement"`
	IP        string    `db:"ip" gorm:"size:64;not null;index:idx_abuse_ip_created,priority:1"`
	Kind      AbuseKind `db:"kind" gorm:"size:32;not null"`
	Detail    string    `db:"detail" gorm:"type:text"`
	CreatedAt time.Time `db:"created_at" gorm:"index:idx_abuse_ip_created,priority:2"`
}

func (AbuseEvent) TableName() string { return "abuse_events" }
