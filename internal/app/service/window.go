package service

import "time"

const (
	day  = 24 * time.Hour
	hour = time.Hour
)

// Clock returns the current instant. Tests swap it for a fixed or advancing clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// trailing returns the start of the sliding window of length d that ends at now.
func trailing(now time.Time, d time.Duration) time.Time {
	return now.Add(-d)
}

// DayBucket truncates t to midnight UTC.
func DayBucket(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayRange is an inclusive range of day buckets.
type DayRange struct {
	From time.Time
	To   time.Time
}

// SingleDay returns the range covering only the bucket of t.
func SingleDay(t time.Time) DayRange {
	b := DayBucket(t)
	return DayRange{From: b, To: b}
}

// NewDayRange orders and truncates the two ends into day buckets.
func NewDayRange(from, to time.Time) DayRange {
	f, t := DayBucket(from), DayBucket(to)
	if t.Before(f) {
		f, t = t, f
	}
	return DayRange{From: f, To: t}
}

func (r DayRange) unixBounds() (int64, int64) {
	return r.From.Unix(), r.To.Unix()
}
