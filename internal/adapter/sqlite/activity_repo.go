package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"focusblock/internal/domain"
)

// AppendActivity inserts an activity entry.
func (d *DB) AppendActivity(ctx context.Context, e domain.ActivityEntry) error {
	oldState, err := snapshotText(e.OldState)
	if err != nil {
		return err
	}
	newState, err := snapshotText(e.NewState)
	if err != nil {
		return err
	}
	metadata := sql.NullString{String: "{}", Valid: true}
	if e.Metadata != nil {
		if metadata, err = snapshotText(e.Metadata); err != nil {
			return err
		}
	}

	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO activity_log(id, user_id, action, resource_type, resource_id, old_state, new_state, metadata, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.User, string(e.Action), string(e.ResourceType), e.ResourceID,
		oldState, newState, metadata.String, toMillis(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity returns a page of matching entries, newest first.
func (d *DB) ListActivity(ctx context.Context, filter domain.ActivityFilter, offset, limit int) ([]domain.ActivityEntry, error) {
	w, args := activityWhere(filter)
	args = append(args, limit, offset)
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, old_state, new_state, metadata, created_at
		FROM activity_log`+w+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.ActivityEntry, 0, limit)
	for rows.Next() {
		var (
			e                    domain.ActivityEntry
			action, resourceType string
			oldState, newState   sql.NullString
			metadata             string
			created              int64
		)
		if err := rows.Scan(&e.ID, &e.User, &action, &resourceType, &e.ResourceID,
			&oldState, &newState, &metadata, &created); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.ResourceType = domain.ResourceType(resourceType)
		e.Timestamp = fromMillis(created)
		if e.OldState, err = parseSnapshot(oldState); err != nil {
			return nil, err
		}
		if e.NewState, err = parseSnapshot(newState); err != nil {
			return nil, err
		}
		if e.Metadata, err = parseSnapshot(sql.NullString{String: metadata, Valid: true}); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActivity returns the number of matching entries.
func (d *DB) CountActivity(ctx context.Context, filter domain.ActivityFilter) (int, error) {
	w, args := activityWhere(filter)
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(1) FROM activity_log"+w, args...).Scan(&n)
	return n, err
}

func activityWhere(f domain.ActivityFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.User != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.User)
	}
	if f.ResourceID != "" {
		conds = append(conds, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(f.Action))
	}
	return where(conds), args
}

func snapshotText(s domain.Snapshot) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func parseSnapshot(v sql.NullString) (domain.Snapshot, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var s domain.Snapshot
	if err := json.Unmarshal([]byte(v.String), &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
