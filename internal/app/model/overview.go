package model

// Overview summarises the store for dashboards and the admin CLI.
type Overview struct {
	TotalLinks   int64 `json:"total_links"`
	ActiveLinks  int64 `json:"active_links"`
	LinksToday   int64 `json:"links_today"`
	TotalClicks  int64 `json:"total_clicks"`
	ActiveBlocks int64 `json:"blocked_ips"`
}

// ClickSummary aggregates the authoritative click counters over every link.
type ClickSummary struct {
	TotalClicks    int64   `json:"total_clicks"`
	TotalLinks     int64   `json:"total_links"`
	ClickedLinks   int64   `json:"clicked_links"`
	UnclickedLinks int64   `json:"unclicked_links"`
	AvgClicks      float64 `json:"avg_clicks"`
}

// ClickLeaderboard is the summary plus the most clicked and most recently clicked links.
type ClickLeaderboard struct {
	Summary         ClickSummary
	TopLinks        []Link
	RecentlyClicked []Link
}
