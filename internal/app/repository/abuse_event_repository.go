package repository

import (
	"context"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"gorm.io/gorm"
)

// AbuseEventRepository is the append-only log of spam events per IP.
type AbuseEventRepository interface {
	Append(ctx context.Context, event *model.AbuseEvent) error
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
	ListByIP(ctx context.Context, ip string, limit int) ([]model.AbuseEvent, error)
}

type abuseEventRepository struct {
	db *gorm.DB
}

// NewAbuseEventRepository returns a GORM-backed AbuseEventRepository.
func NewAbuseEventRepository(db *gorm.DB) AbuseEventRepository {
	return &abuseEventRepository{db: db}
}

func (r *abuseEventRepository) Append(ctx context.Context, event *model.AbuseEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *abuseEventRepository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.AbuseEvent{}).
		Where("ip = ? AND created_at >= ?", ip, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *abuseEventRepository) ListByIP(ctx context.Context, ip string, limit int) ([]model.AbuseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []model.AbuseEvent
	if err := r.db.WithContext(ctx).
		Where("ip = ?", ip).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
