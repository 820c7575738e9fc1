package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	defaultHistoryDays   = 30
	defaultSamplesPerDay = 20
	clickWriteTimeout    = 3 * time.Second
)

// ClickLinkStore is the slice of the link store the recorder needs.
type ClickLinkStore interface {
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	IncrementClicks(ctx context.Context, code string, at time.Time) error
}

// ClickHistorySink receives click records. Implementations may be synchronous or queued.
type ClickHistorySink interface {
	Append(ctx context.Context, record *model.ClickRecord) error
}

// ClickHistoryReader aggregates stored click records.
type ClickHistoryReader interface {
	History(ctx context.Context, code string, limit, offset, samples int) ([]model.ClickDay, error)
	CountBetween(ctx context.Context, code string, fromDay, toDay int64) (int64, error)
}

// ClickRecorderOptions tunes history reads.
type ClickRecorderOptions struct {
	HistoryDays   int
	SamplesPerDay int
}

// ClickRecorder resolves redirects and accounts for them.
// The link counter is authoritative; click history is best effort and may lag behind it.
type ClickRecorder struct {
	links   ClickLinkStore
	sink    ClickHistorySink
	history ClickHistoryReader
	opts    ClickRecorderOptions
	now     Clock
	logger  *zap.Logger
	metrics *infraPrometheus.Metrics
}

// NewClickRecorder wires the recorder. sink and history may be the same repository.
func NewClickRecorder(links ClickLinkStore, sink ClickHistorySink, history ClickHistoryReader, opts ClickRecorderOptions, logger *zap.Logger, metrics *infraPrometheus.Metrics) *ClickRecorder {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = defaultHistoryDays
	}
	if opts.SamplesPerDay <= 0 {
		opts.SamplesPerDay = defaultSamplesPerDay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickRecorder{
		links:   links,
		sink:    sink,
		history: history,
		opts:    opts,
		now:     systemClock,
		logger:  logger,
		metrics: metrics,
	}
}

// RecordClick returns the active link for code and records the click against it.
// Once the link is resolved, neither counter nor history failures change the outcome.
func (r *ClickRecorder) RecordClick(ctx context.Context, code, ip, userAgent string) (*model.Link, error) {
	link, err := r.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeUnavailable("load link", err)
	}
	if !link.Active {
		return nil, ErrNotFound
	}

	now := r.now()

	// The redirect is already decided; finish the writes even if the client goes away.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clickWriteTimeout)
	defer cancel()

	r.metrics.IncClicks()
	if err := r.links.IncrementClicks(writeCtx, code, now); err != nil {
		r.metrics.IncClickCounterErrors()
		r.logger.Error("failed to increment click counter",
			zap.String("code", code),
			zap.Error(err),
		)
	} else {
		link.Clicks++
		link.LastClickedAt = &now
	}

	record := &model.ClickRecord{
		ID:        uuid.New().String(),
		Code:      code,
		Day:       DayBucket(now).Unix(),
		IP:        ip,
		UserAgent: userAgent,
		ClickedAt: now,
	}
	if r.sink == nil {
		return link, nil
	}
	if err := r.sink.Append(writeCtx, record); err != nil {
		r.metrics.IncClickHistoryErrors()
		r.logger.Warn("failed to record click history",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	return link, nil
}

// GetClickHistory returns day buckets for code, newest first, capped at the configured day window.
func (r *ClickRecorder) GetClickHistory(ctx context.Context, code string, limit, offset int) ([]model.ClickDay, error) {
	if limit <= 0 || limit > r.opts.HistoryDays {
		limit = r.opts.HistoryDays
	}
	days, err := r.history.History(ctx, code, limit, offset, r.opts.SamplesPerDay)
	if err != nil {
		return nil, storeUnavailable("load click history", err)
	}
	return days, nil
}

// GetDailyStats counts raw click records in the range. It can differ from Link.Clicks.
func (r *ClickRecorder) GetDailyStats(ctx context.Context, code string, rng DayRange) (int64, error) {
	from, to := rng.unixBounds()
	count, err := r.history.CountBetween(ctx, code, from, to)
	if err != nil {
		return 0, storeUnavailable("count clicks", err)
	}
	return count, nil
}
