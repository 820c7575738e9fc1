package service

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultFilterCapacity = 1_000_000
	defaultFilterFPRate   = 0.001
	warmPageSize          = 1000
)

// CodeFilter remembers every short code seen by this process.
// A negative answer is definitive; a positive one must be confirmed against the store.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes the filter for capacity codes at the given false positive rate.
func NewCodeFilter(capacity uint, fpRate float64) *CodeFilter {
	if capacity == 0 {
		capacity = defaultFilterCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = defaultFilterFPRate
	}
	return &CodeFilter{filter: bloom.NewWithEstimates(capacity, fpRate)}
}

func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	f.filter.AddString(code)
	f.mu.Unlock()
}

// MayContain reports false only when code was certainly never added.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// CodeLister pages through stored codes in ascending order.
type CodeLister interface {
	ListCodes(ctx context.Context, after string, limit int) ([]string, error)
}

// Warm loads every stored code into the filter and returns how many were added.
func (f *CodeFilter) Warm(ctx context.Context, lister CodeLister) (int, error) {
	total := 0
	after := ""
	for {
		codes, err := lister.ListCodes(ctx, after, warmPageSize)
		if err != nil {
			return total, err
		}
		for _, code := range codes {
			f.Add(code)
		}
		total += len(codes)
		if len(codes) < warmPageSize {
			return total, nil
		}
		after = codes[len(codes)-1]
	}
}
