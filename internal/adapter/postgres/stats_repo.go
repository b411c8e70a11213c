package postgres

import (
	"context"

	"focusblock/internal/domain"

	"github.com/lib/pq"
)

// RecordBlockedAttempt upserts the (user, day) row, bumping the counter and
// adding url to the distinct site list.
func (d *DB) RecordBlockedAttempt(ctx context.Context, userID, day, url string) (*domain.DailyStats, error) {
	st := domain.DailyStats{User: userID, Day: day}
	err := d.sql.QueryRowContext(ctx,
		`INSERT INTO blocked_stats(user_id, day, blocked_attempts, sites_blocked)
		VALUES($1, $2, 1, ARRAY[$3::TEXT])
		ON CONFLICT (user_id, day) DO UPDATE SET
			blocked_attempts = blocked_stats.blocked_attempts + 1,
			sites_blocked = CASE
				WHEN $3::TEXT = ANY(blocked_stats.sites_blocked) THEN blocked_stats.sites_blocked
				ELSE array_append(blocked_stats.sites_blocked, $3::TEXT)
			END
		RETURNING blocked_attempts, sites_blocked;`,
		userID, day, url,
	).Scan(&st.BlockedAttempts, pq.Array(&st.SitesBlocked))
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListDailyStats returns the user's rows on or after sinceDay, newest first.
func (d *DB) ListDailyStats(ctx context.Context, userID, sinceDay string) ([]domain.DailyStats, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, blocked_attempts, sites_blocked FROM blocked_stats WHERE user_id=$1 AND day >= $2 ORDER BY day DESC;",
		userID, sinceDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DailyStats
	for rows.Next() {
		st := domain.DailyStats{User: userID}
		if err := rows.Scan(&st.Day, &st.BlockedAttempts, pq.Array(&st.SitesBlocked)); err != nil {
			return nil, err
		}
		if st.SitesBlocked == nil {
			st.SitesBlocked = []string{}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
