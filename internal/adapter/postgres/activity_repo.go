package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"focusblock/internal/domain"
)

// AppendActivity inserts an activity entry.
func (d *DB) AppendActivity(ctx context.Context, e domain.ActivityEntry) error {
	oldState, err := marshalSnapshot(e.OldState)
	if err != nil {
		return err
	}
	newState, err := marshalSnapshot(e.NewState)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	if e.Metadata == nil {
		metadata = []byte("{}")
	}

	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO activity_log(id, user_id, action, resource_type, resource_id, old_state, new_state, metadata, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		e.ID, e.User, string(e.Action), string(e.ResourceType), e.ResourceID,
		oldState, newState, metadata, e.Timestamp.UTC(),
	)
	return err
}

// ListActivity returns a page of matching entries, newest first.
func (d *DB) ListActivity(ctx context.Context, filter domain.ActivityFilter, offset, limit int) ([]domain.ActivityEntry, error) {
	where, args := activityWhere(filter)
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT id, user_id, action, resource_type, resource_id, old_state, new_state, metadata, created_at
		FROM activity_log%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;`,
		where, len(args)-1, len(args))

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.ActivityEntry, 0, limit)
	for rows.Next() {
		var (
			e                            domain.ActivityEntry
			action, resourceType         string
			oldState, newState, metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.User, &action, &resourceType, &e.ResourceID,
			&oldState, &newState, &metadata, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.ResourceType = domain.ResourceType(resourceType)
		if e.OldState, err = unmarshalSnapshot(oldState); err != nil {
			return nil, err
		}
		if e.NewState, err = unmarshalSnapshot(newState); err != nil {
			return nil, err
		}
		if e.Metadata, err = unmarshalSnapshot(metadata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActivity returns the number of matching entries.
func (d *DB) CountActivity(ctx context.Context, filter domain.ActivityFilter) (int, error) {
	where, args := activityWhere(filter)
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(1) FROM activity_log"+where+";", args...).Scan(&n)
	return n, err
}

func activityWhere(f domain.ActivityFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.User != "" {
		args = append(args, f.User)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.ResourceID != "" {
		args = append(args, f.ResourceID)
		conds = append(conds, fmt.Sprintf("resource_id=$%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, string(f.Action))
		conds = append(conds, fmt.Sprintf("action=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// marshalSnapshot returns nil for an absent snapshot so the column is NULL.
func marshalSnapshot(s domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalSnapshot(b []byte) (domain.Snapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s domain.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
