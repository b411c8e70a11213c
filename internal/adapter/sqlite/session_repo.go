package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"focusblock/internal/domain"
)

const sessionColumns = "id, owner_id, title, description, duration, status, scheduled_start, actual_start, actual_end, created_at, updated_at, version"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*domain.FocusSession, error) {
	var (
		s                        domain.FocusSession
		status                   string
		scheduled, start, finish sql.NullInt64
		created, updated         int64
	)
	if err := r.Scan(&s.ID, &s.Owner, &s.Title, &s.Description, &s.Duration, &status,
		&scheduled, &start, &finish, &created, &updated, &s.Version); err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	s.ScheduledStart = timePtr(scheduled)
	s.ActualStart = timePtr(start)
	s.ActualEnd = timePtr(finish)
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return &s, nil
}

// CreateSession inserts a new session.
func (d *DB) CreateSession(ctx context.Context, s *domain.FocusSession) error {
	if s.Version == 0 {
		s.Version = 1
	}
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO focus_sessions("+sessionColumns+") VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.Owner, s.Title, s.Description, s.Duration, string(s.Status),
		nullMillis(s.ScheduledStart), nullMillis(s.ActualStart), nullMillis(s.ActualEnd),
		toMillis(s.CreatedAt), toMillis(s.UpdatedAt), s.Version,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID, or nil if not found.
func (d *DB) GetSession(ctx context.Context, id string) (*domain.FocusSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM focus_sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// UpdateSession writes s if the stored version still matches.
func (d *DB) UpdateSession(ctx context.Context, s *domain.FocusSession) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE focus_sessions
		SET title = ?, description = ?, duration = ?, status = ?, scheduled_start = ?,
			actual_start = ?, actual_end = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		s.Title, s.Description, s.Duration, string(s.Status), nullMillis(s.ScheduledStart),
		nullMillis(s.ActualStart), nullMillis(s.ActualEnd), toMillis(s.UpdatedAt),
		s.ID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	s.Version++
	return nil
}

// DeleteSession removes a session if the stored version still matches.
func (d *DB) DeleteSession(ctx context.Context, id string, version int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM focus_sessions WHERE id = ? AND version = ?", id, version)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectOneRow(res)
}

// ListSessions returns a page of matching sessions, newest first.
func (d *DB) ListSessions(ctx context.Context, filter domain.SessionFilter, offset, limit int) ([]domain.FocusSession, error) {
	w, args := sessionWhere(filter)
	args = append(args, limit, offset)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM focus_sessions"+w+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.FocusSession, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountSessions returns the number of matching sessions.
func (d *DB) CountSessions(ctx context.Context, filter domain.SessionFilter) (int, error) {
	w, args := sessionWhere(filter)
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(1) FROM focus_sessions"+w, args...).Scan(&n)
	return n, err
}

func sessionWhere(f domain.SessionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Owner != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.Owner)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	return where(conds), args
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
