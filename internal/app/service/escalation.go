package service

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/sifan077/linkguard/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	defaultSpamEventThreshold = 5
	defaultBlockDuration      = 7 * day
	autoBlockReason           = "Multiple spam activities detected"
)

// EscalationPolicy configures when repeated abuse turns into a temporary block.
type EscalationPolicy struct {
	Threshold     int
	Window        time.Duration
	BlockDuration time.Duration
}

// AbuseEventStore is the append-only abuse log used by the engine.
type AbuseEventStore interface {
	Append(ctx context.Context, event *model.AbuseEvent) error
	CountByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
}

// BlockStore is the block list used by the engine.
type BlockStore interface {
	Get(ctx context.Context, ip string) (*model.BlockEntry, error)
	Upsert(ctx context.Context, entry *model.BlockEntry) error
	ListActive(ctx context.Context, now time.Time, limit int) ([]model.BlockEntry, error)
}

// EscalationEngine records abuse per IP and blocks an IP once the threshold is crossed.
// Block expiry is evaluated on every read; nothing is cached.
type EscalationEngine struct {
	events  AbuseEventStore
	blocks  BlockStore
	policy  EscalationPolicy
	now     Clock
	logger  *zap.Logger
	metrics *infraPrometheus.Metrics
}

// NewEscalationEngine returns an engine with zero policy fields replaced by defaults.
func NewEscalationEngine(events AbuseEventStore, blocks BlockStore, policy EscalationPolicy, logger *zap.Logger, metrics *infraPrometheus.Metrics) *EscalationEngine {
	if policy.Threshold <= 0 {
		policy.Threshold = defaultSpamEventThreshold
	}
	if policy.Window <= 0 {
		policy.Window = day
	}
	if policy.BlockDuration <= 0 {
		policy.BlockDuration = defaultBlockDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationEngine{
		events:  events,
		blocks:  blocks,
		policy:  policy,
		now:     systemClock,
		logger:  logger,
		metrics: metrics,
	}
}

// RecordSpamEvent appends the event, then counts the trailing window and blocks on threshold.
// The append always happens before the count so the new event takes part in it.
func (e *EscalationEngine) RecordSpamEvent(ctx context.Context, ip string, reason model.AbuseKind, detail string) error {
	now := e.now()

	event := &model.AbuseEvent{
		IP:        ip,
		Kind:      reason,
		Detail:    detail,
		CreatedAt: now,
	}
	if err := e.events.Append(ctx, event); err != nil {
		return storeUnavailable("append abuse event", err)
	}

	count, err := e.events.CountByIPSince(ctx, ip, trailing(now, e.policy.Window))
	if err != nil {
		return storeUnavailable("count abuse events", err)
	}

	e.logger.Info("spam activity recorded",
		zap.String("ip", ip),
		zap.String("reason", string(reason)),
		zap.Int64("events_in_window", count),
	)

	if count < int64(e.policy.Threshold) {
		return nil
	}

	expires := now.Add(e.policy.BlockDuration)
	entry := &model.BlockEntry{
		IP:        ip,
		Reason:    autoBlockReason,
		BlockedAt: now,
		ExpiresAt: &expires,
		Permanent: false,
	}
	if err := e.blocks.Upsert(ctx, entry); err != nil {
		return storeUnavailable("upsert block entry", err)
	}

	e.metrics.IncBlocksIssued()
	e.logger.Warn("ip blocked",
		zap.String("ip", ip),
		zap.Int64("events_in_window", count),
		zap.Time("expires_at", expires),
	)
	return nil
}

// IsBlocked reports whether ip has an active block entry right now.
// Lookup failures fail open: the request proceeds as if the IP were not blocked.
func (e *EscalationEngine) IsBlocked(ctx context.Context, ip string) bool {
	entry, err := e.blocks.Get(ctx, ip)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			return false
		}
		e.metrics.IncBlockCheckFailOpen()
		e.logger.Warn("block list lookup failed, failing open",
			zap.String("ip", ip),
			zap.Error(err),
		)
		return false
	}
	return entry.ActiveAt(e.now())
}

// Block writes a manual entry. A zero duration with permanent=false is rejected.
func (e *EscalationEngine) Block(ctx context.Context, ip, reason string, duration time.Duration, permanent bool) (*model.BlockEntry, error) {
	if ip == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "ip", Message: "ip is required"}}}
	}
	if !permanent && duration <= 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "duration", Message: "duration must be positive for a temporary block"}}}
	}
	if reason == "" {
		reason = "Manual block"
	}

	now := e.now()
	entry := &model.BlockEntry{
		IP:        ip,
		Reason:    reason,
		BlockedAt: now,
		Permanent: permanent,
	}
	if !permanent {
		expires := now.Add(duration)
		entry.ExpiresAt = &expires
	}

	if err := e.blocks.Upsert(ctx, entry); err != nil {
		return nil, storeUnavailable("upsert block entry", err)
	}
	return entry, nil
}

// ActiveBlocks lists entries that block their IP right now.
func (e *EscalationEngine) ActiveBlocks(ctx context.Context, limit int) ([]model.BlockEntry, error) {
	entries, err := e.blocks.ListActive(ctx, e.now(), limit)
	if err != nil {
		return nil, storeUnavailable("list blocks", err)
	}
	return entries, nil
}
