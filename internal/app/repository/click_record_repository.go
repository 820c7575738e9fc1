package repository

import (
	"context"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClickRecordRepository defines the data access contract for per-redirect click records.
type ClickRecordRepository interface {
	Append(ctx context.Context, record *model.ClickRecord) error
	History(ctx context.Context, code string, limit, offset, samples int) ([]model.ClickDay, error)
	CountBetween(ctx context.Context, code string, fromDay, toDay int64) (int64, error)
}

type clickRecordRepository struct {
	db *gorm.DB
}

// NewClickRecordRepository returns a GORM-backed ClickRecordRepository.
func NewClickRecordRepository(db *gorm.DB) ClickRecordRepository {
	return &clickRecordRepository{db: db}
}

// Append stores the record once; a redelivered record with the same ID is ignored.
func (r *clickRecordRepository) Append(ctx context.Context, record *model.ClickRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

type dayCount struct {
	Day   int64
	Count int64
}

// History groups records by day bucket, newest first, with up to samples clicks per bucket.
func (r *clickRecordRepository) History(ctx context.Context, code string, limit, offset, samples int) ([]model.ClickDay, error) {
	if limit <= 0 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	var buckets []dayCount
	if err := r.db.WithContext(ctx).
		Model(&model.ClickRecord{}).
		Select("day, COUNT(*) AS count").
		Where("code = ?", code).
		Group("day").
		Order("day DESC").
		Limit(limit).
		Offset(offset).
		Scan(&buckets).Error; err != nil {
		return nil, err
	}

	days := make([]model.ClickDay, 0, len(buckets))
	for _, b := range buckets {
		day := model.ClickDay{
			Date:  time.Unix(b.Day, 0).UTC(),
			Count: b.Count,
		}

		if samples > 0 {
			var records []model.ClickRecord
			if err := r.db.WithContext(ctx).
				Where("code = ? AND day = ?", code, b.Day).
				Order("clicked_at DESC").
				Limit(samples).
				Find(&records).Error; err != nil {
				return nil, err
			}
			day.Samples = make([]model.ClickSample, len(records))
			for i, rec := range records {
				day.Samples[i] = model.ClickSample{
					Timestamp: rec.ClickedAt,
					IP:        rec.IP,
					UserAgent: rec.UserAgent,
				}
			}
		}

		days = append(days, day)
	}

	return days, nil
}

// CountBetween counts raw records whose day bucket lies in [fromDay, toDay].
func (r *clickRecordRepository) CountBetween(ctx context.Context, code string, fromDay, toDay int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.ClickRecord{}).
		Where("code = ? AND day >= ? AND day <= ?", code, fromDay, toDay).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
