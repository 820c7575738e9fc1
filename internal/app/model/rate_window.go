package model

import "time"

// RateWindow is the request counter of one IP against one endpoint inside the current window.
type RateWindow struct {
	IP          string
	Endpoint    string
	Count       int64
	WindowStart time.Time
	LastRequest time.Time
}
