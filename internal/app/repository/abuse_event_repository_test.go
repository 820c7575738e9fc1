package repository

import (
	"context"
	"testing"
	"time"

	"github.com/sifan077/linkguard/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbuseEventRepository_CountByIPSince(t *testing.T) {
	ctx := context.Background()
	repo := NewAbuseEventRepository(openTestDB(t))
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	events := []model.AbuseEvent{
		{IP: "1.1.1.1", Kind: model.AbuseBlockedDomain, Detail: "Domain: bad.example", CreatedAt: now.Add(-30 * time.Hour)},
		{IP: "1.1.1.1", Kind: model.AbuseSuspiciousKeyword, Detail: "URL: x", CreatedAt: now.Add(-2 * time.Hour)},
		{IP: "1.1.1.1", Kind: model.AbuseRapidCreation, Detail: "", CreatedAt: now.Add(-time.Minute)},
		{IP: "2.2.2.2", Kind: model.AbuseDailyLimitExceeded, Detail: "", CreatedAt: now},
	}
	for i := range events {
		require.NoError(t, repo.Append(ctx, &events[i]))
		assert.NotZero(t, events[i].ID)
	}

	count, err := repo.CountByIPSince(ctx, "1.1.1.1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, err := repo.ListByIP(ctx, "1.1.1.1", 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, model.AbuseRapidCreation, list[0].Kind)
}
