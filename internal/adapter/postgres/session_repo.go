package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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
		scheduled, start, finish sql.NullTime
	)
	if err := r.Scan(&s.ID, &s.Owner, &s.Title, &s.Description, &s.Duration, &status,
		&scheduled, &start, &finish, &s.CreatedAt, &s.UpdatedAt, &s.Version); err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	s.ScheduledStart = timePtr(scheduled)
	s.ActualStart = timePtr(start)
	s.ActualEnd = timePtr(finish)
	return &s, nil
}

// CreateSession inserts a new session.
func (d *DB) CreateSession(ctx context.Context, s *domain.FocusSession) error {
	if s.Version == 0 {
		s.Version = 1
	}
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO focus_sessions("+sessionColumns+") VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);",
		s.ID, s.Owner, s.Title, s.Description, s.Duration, string(s.Status),
		nullTime(s.ScheduledStart), nullTime(s.ActualStart), nullTime(s.ActualEnd),
		s.CreatedAt.UTC(), s.UpdatedAt.UTC(), s.Version,
	)
	return err
}

// GetSession returns a session by ID, or nil if not found.
func (d *DB) GetSession(ctx context.Context, id string) (*domain.FocusSession, error) {
	s, err := scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM focus_sessions WHERE id=$1;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// UpdateSession writes s if the stored version still matches.
func (d *DB) UpdateSession(ctx context.Context, s *domain.FocusSession) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE focus_sessions
		SET title=$1, description=$2, duration=$3, status=$4, scheduled_start=$5,
			actual_start=$6, actual_end=$7, updated_at=$8, version=version+1
		WHERE id=$9 AND version=$10;`,
		s.Title, s.Description, s.Duration, string(s.Status), nullTime(s.ScheduledStart),
		nullTime(s.ActualStart), nullTime(s.ActualEnd), s.UpdatedAt.UTC(),
		s.ID, s.Version,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	s.Version++
	return nil
}

// DeleteSession removes a session if the stored version still matches.
func (d *DB) DeleteSession(ctx context.Context, id string, version int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM focus_sessions WHERE id=$1 AND version=$2;", id, version)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListSessions returns a page of matching sessions, newest first.
func (d *DB) ListSessions(ctx context.Context, filter domain.SessionFilter, offset, limit int) ([]domain.FocusSession, error) {
	where, args := sessionWhere(filter)
	args = append(args, limit, offset)
	q := fmt.Sprintf("SELECT %s FROM focus_sessions%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;",
		sessionColumns, where, len(args)-1, len(args))

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
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
	where, args := sessionWhere(filter)
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(1) FROM focus_sessions"+where+";", args...).Scan(&n)
	return n, err
}

func sessionWhere(f domain.SessionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Owner != "" {
		args = append(args, f.Owner)
		conds = append(conds, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
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
