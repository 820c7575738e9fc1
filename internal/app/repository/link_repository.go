package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"gorm.io/gorm"
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	FindByURL(ctx context.Context, url string) (*model.Link, error)
	FindByURLAndOwner(ctx context.Context, url, ownerIP string) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerIP string, limit, offset int) ([]model.Link, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.Link, error)
	ClickLeaderboard(ctx context.Context, limit int) (model.ClickLeaderboard, error)
	ListCodes(ctx context.Context, after string, limit int) ([]string, error)
	IncrementClicks(ctx context.Context, code string, at time.Time) error
	Deactivate(ctx context.Context, code string) error
	CountByOwnerSince(ctx context.Context, ownerIP string, since time.Time) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	return first(r.db.WithContext(ctx).Where("code = ?", code))
}

func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) FindByURL(ctx context.Context, url string) (*model.Link, error) {
	return first(r.db.WithContext(ctx).
		Where("url = ? AND active = ?", url, true).
		Order("created_at ASC"))
}

func (r *linkRepository) FindByURLAndOwner(ctx context.Context, url, ownerIP string) (*model.Link, error) {
	return first(r.db.WithContext(ctx).
		Where("url = ? AND owner_ip = ? AND active = ?", url, ownerIP, true).
		Order("created_at ASC"))
}

func first(q *gorm.DB) (*model.Link, error) {
	var link model.Link
	if err := q.First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerIP string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_ip = ?", ownerIP).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

// ListAll pages through every link, newest first.
func (r *linkRepository) ListAll(ctx context.Context, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	result := []model.Link{}
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("code ASC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ClickLeaderboard summarises the click counters and returns up to limit links for
// each ranking. Ties on clicks go to the newer link.
func (r *linkRepository) ClickLeaderboard(ctx context.Context, limit int) (model.ClickLeaderboard, error) {
	if limit <= 0 {
		limit = 5
	}
	db := r.db.WithContext(ctx)

	var totals struct {
		TotalClicks  int64
		TotalLinks   int64
		ClickedLinks int64
	}
	if err := db.Model(&model.Link{}).
		Select("COALESCE(SUM(clicks), 0) AS total_clicks, " +
			"COUNT(*) AS total_links, " +
			"COALESCE(SUM(CASE WHEN clicks > 0 THEN 1 ELSE 0 END), 0) AS clicked_links").
		Scan(&totals).Error; err != nil {
		return model.ClickLeaderboard{}, err
	}

	board := model.ClickLeaderboard{
		Summary: model.ClickSummary{
			TotalClicks:    totals.TotalClicks,
			TotalLinks:     totals.TotalLinks,
			ClickedLinks:   totals.ClickedLinks,
			UnclickedLinks: totals.TotalLinks - totals.ClickedLinks,
		},
		TopLinks:        []model.Link{},
		RecentlyClicked: []model.Link{},
	}
	if totals.TotalLinks > 0 {
		avg := float64(totals.TotalClicks) / float64(totals.TotalLinks)
		board.Summary.AvgClicks = math.Round(avg*100) / 100
	}

	if err := db.Where("clicks > 0").
		Order("clicks DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&board.TopLinks).Error; err != nil {
		return model.ClickLeaderboard{}, err
	}

	if err := db.Where("last_clicked_at IS NOT NULL").
		Order("last_clicked_at DESC").
		Limit(limit).
		Find(&board.RecentlyClicked).Error; err != nil {
		return model.ClickLeaderboard{}, err
	}

	return board, nil
}

func (r *linkRepository) ListCodes(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}

	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code > ?", after).
		Order("code ASC").
		Limit(limit).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// IncrementClicks bumps the counter inside a single UPDATE so concurrent clicks never lose updates.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"clicks":          gorm.Expr("clicks + ?", 1),
			"last_clicked_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) CountByOwnerSince(ctx context.Context, ownerIP string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("owner_ip = ? AND created_at >= ?", ownerIP, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
