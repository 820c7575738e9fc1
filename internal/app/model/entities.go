package model

// Entities returns every GORM-managed model, in migration order.
func Entities() []any {
	return []any{
		&Link{},
		&AbuseEvent{},
		&BlockEntry{},
		&ClickRecord{},
	}
}
