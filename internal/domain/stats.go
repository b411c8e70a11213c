package domain

import "context"

// DailyStats aggregates blocked-site attempts for one user on one local day.
type DailyStats struct {
	User            string   `json:"user"`
	Day             string   `json:"day"`
	BlockedAttempts int      `json:"blockedAttempts"`
	SitesBlocked    []string `json:"sitesBlocked"`
}

// StatsRepository is the port for block statistics persistence.
type StatsRepository interface {
	// RecordBlockedAttempt increments the counter for (userID, day) and adds
	// url to the day's distinct site list, creating the row if needed.
	RecordBlockedAttempt(ctx context.Context, userID, day, url string) (*DailyStats, error)
	// ListDailyStats returns rows with day >= sinceDay, newest day first.
	ListDailyStats(ctx context.Context, userID, sinceDay string) ([]DailyStats, error)
}
