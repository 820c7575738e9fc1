package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sifan077/linkguard/internal/app/model"
)

const overviewQuery = `
SELECT
	(SELECT COUNT(*) FROM links),
	(SELECT COUNT(*) FROM links WHERE active),
	(SELECT COUNT(*) FROM links WHERE created_at >= $1),
	(SELECT COALESCE(SUM(clicks), 0) FROM links),
	(SELECT COUNT(*) FROM block_entries WHERE permanent OR expires_at > $2)`

// RowQuerier is the slice of pgxpool.Pool used by the overview repository.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OverviewRepository computes store-wide counters with a single raw query.
type OverviewRepository interface {
	Overview(ctx context.Context, now time.Time) (model.Overview, error)
}

type overviewRepository struct {
	db RowQuerier
}

// NewOverviewRepository returns a pgx-backed OverviewRepository.
func NewOverviewRepository(db RowQuerier) OverviewRepository {
	return &overviewRepository{db: db}
}

func (r *overviewRepository) Overview(ctx context.Context, now time.Time) (model.Overview, error) {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var o model.Overview
	err := r.db.QueryRow(ctx, overviewQuery, startOfDay, now).Scan(
		&o.TotalLinks,
		&o.ActiveLinks,
		&o.LinksToday,
		&o.TotalClicks,
		&o.ActiveBlocks,
	)
	if err != nil {
		return model.Overview{}, err
	}
	return o, nil
}
