package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"focusblock/internal/domain"
)

// RecordBlockedAttempt bumps the (user, day) counter and adds url to the
// distinct site list inside one transaction.
func (d *DB) RecordBlockedAttempt(ctx context.Context, userID, day, url string) (_ *domain.DailyStats, err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := domain.DailyStats{User: userID, Day: day, SitesBlocked: []string{}}
	var sites string
	err = tx.QueryRowContext(ctx,
		"SELECT blocked_attempts, sites_blocked FROM blocked_stats WHERE user_id = ? AND day = ?",
		userID, day).Scan(&st.BlockedAttempts, &sites)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return nil, fmt.Errorf("load stats: %w", err)
	default:
		if err = json.Unmarshal([]byte(sites), &st.SitesBlocked); err != nil {
			return nil, fmt.Errorf("decode sites: %w", err)
		}
	}

	st.BlockedAttempts++
	if !slices.Contains(st.SitesBlocked, url) {
		st.SitesBlocked = append(st.SitesBlocked, url)
	}
	encoded, err := json.Marshal(st.SitesBlocked)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blocked_stats(user_id, day, blocked_attempts, sites_blocked) VALUES(?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET blocked_attempts = excluded.blocked_attempts, sites_blocked = excluded.sites_blocked`,
		userID, day, st.BlockedAttempts, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &st, nil
}

// ListDailyStats returns the user's rows on or after sinceDay, newest first.
func (d *DB) ListDailyStats(ctx context.Context, userID, sinceDay string) ([]domain.DailyStats, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, blocked_attempts, sites_blocked FROM blocked_stats WHERE user_id = ? AND day >= ? ORDER BY day DESC",
		userID, sinceDay)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DailyStats
	for rows.Next() {
		st := domain.DailyStats{User: userID}
		var sites string
		if err := rows.Scan(&st.Day, &st.BlockedAttempts, &sites); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sites), &st.SitesBlocked); err != nil {
			return nil, fmt.Errorf("decode sites: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
