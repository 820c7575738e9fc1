package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockEntry_ActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	tests := []struct {
		name  string
		entry *BlockEntry
		want  bool
	}{
		{name: "nil entry", entry: nil, want: false},
		{name: "permanent without expiry", entry: &BlockEntry{Permanent: true}, want: true},
		{name: "permanent with past expiry", entry: &BlockEntry{Permanent: true, ExpiresAt: &past}, want: true},
		{name: "temporary in the future", entry: &BlockEntry{ExpiresAt: &future}, want: true},
		{name: "temporary in the past", entry: &BlockEntry{ExpiresAt: &past}, want: false},
		{name: "temporary expiring right now", entry: &BlockEntry{ExpiresAt: &now}, want: false},
		{name: "temporary without expiry", entry: &BlockEntry{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.ActiveAt(now))
		})
	}
}
