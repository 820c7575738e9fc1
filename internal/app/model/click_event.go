package model

import "time"

// ClickEvent is the JetStream message carrying a click record to the history consumer.
type ClickEvent struct {
	ID        string    `json:"id"`
	LinkCode  string    `json:"link_code"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-history"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
