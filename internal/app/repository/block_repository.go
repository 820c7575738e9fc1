package repository

import (
	"context"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository stores blocked IPs. Expiry is evaluated by readers, never by the store.
type BlockRepository interface {
	Get(ctx context.Context, ip string) (*model.BlockEntry, error)
	Upsert(ctx context.Context, entry *model.BlockEntry) error
	ListActive(ctx context.Context, now time.Time, limit int) ([]model.BlockEntry, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository returns a GORM-backed BlockRepository.
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Get(ctx context.Context, ip string) (*model.BlockEntry, error) {
	// A miss is the common case; Find does not log it as an error.
	var entry model.BlockEntry
	res := r.db.WithContext(ctx).Where("ip = ?", ip).Limit(1).Find(&entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrBlockNotFound
	}
	return &entry, nil
}

// Upsert overwrites reason, timestamps and permanence of an existing entry for the same IP.
func (r *blockRepository) Upsert(ctx context.Context, entry *model.BlockEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "blocked_at", "expires_at", "permanent"}),
		}).
		Create(entry).Error
}

func (r *blockRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]model.BlockEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []model.BlockEntry
	if err := r.db.WithContext(ctx).
		Where("permanent = ? OR expires_at > ?", true, now).
		Order("blocked_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteExpiredBefore removes non-permanent entries whose expiry is older than cutoff.
func (r *blockRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("permanent = ? AND expires_at IS NOT NULL AND expires_at < ?", false, cutoff).
		Delete(&model.BlockEntry{})
	return result.RowsAffected, result.Error
}
