// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"focusblock/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	sessions map[string]domain.FocusSession
	activity []domain.ActivityEntry
	stats    map[statsKey]*domain.DailyStats
}

type statsKey struct {
	user string
	day  string
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]domain.FocusSession),
		stats:    make(map[statsKey]*domain.DailyStats),
	}
}

// Ensure interfaces are met.
var _ domain.SessionRepository = (*DB)(nil)
var _ domain.ActivityRepository = (*DB)(nil)
var _ domain.StatsRepository = (*DB)(nil)

// Close is a no-op; it lets DB stand in for the SQL stores.
func (db *DB) Close() error {
	return nil
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error {
	return nil
}

// --- SessionRepository ---

// CreateSession stores a copy of s.
func (db *DB) CreateSession(ctx context.Context, s *domain.FocusSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.sessions[s.ID]; ok {
		return errors.New("session already exists")
	}
	if s.Version == 0 {
		s.Version = 1
	}
	db.sessions[s.ID] = cloneSession(*s)
	return nil
}

// GetSession returns a copy of the stored session, or nil if absent.
func (db *DB) GetSession(ctx context.Context, id string) (*domain.FocusSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, nil
	}
	out := cloneSession(s)
	return &out, nil
}

// UpdateSession replaces the stored session when versions match.
func (db *DB) UpdateSession(ctx context.Context, s *domain.FocusSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.sessions[s.ID]
	if !ok || stored.Version != s.Version {
		return domain.ErrVersionConflict
	}
	s.Version++
	db.sessions[s.ID] = cloneSession(*s)
	return nil
}

// DeleteSession removes a session when versions match.
func (db *DB) DeleteSession(ctx context.Context, id string, version int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.sessions[id]
	if !ok || stored.Version != version {
		return domain.ErrVersionConflict
	}
	delete(db.sessions, id)
	return nil
}

// ListSessions returns matching sessions, newest first.
func (db *DB) ListSessions(ctx context.Context, filter domain.SessionFilter, offset, limit int) ([]domain.FocusSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.FocusSession, 0, len(db.sessions))
	for _, s := range db.sessions {
		if matchSession(s, filter) {
			result = append(result, cloneSession(s))
		}
	}

	// sort desc, id breaks ties so pages are stable
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return window(result, offset, limit), nil
}

// CountSessions returns the number of matching sessions.
func (db *DB) CountSessions(ctx context.Context, filter domain.SessionFilter) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, s := range db.sessions {
		if matchSession(s, filter) {
			n++
		}
	}
	return n, nil
}

func matchSession(s domain.FocusSession, f domain.SessionFilter) bool {
	if f.Owner != "" && s.Owner != f.Owner {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

func cloneSession(s domain.FocusSession) domain.FocusSession {
	s.ScheduledStart = cloneTime(s.ScheduledStart)
	s.ActualStart = cloneTime(s.ActualStart)
	s.ActualEnd = cloneTime(s.ActualEnd)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// --- ActivityRepository ---

// AppendActivity appends an entry to the log.
func (db *DB) AppendActivity(ctx context.Context, e domain.ActivityEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.activity = append(db.activity, e)
	return nil
}

// ListActivity returns matching entries, newest first.
func (db *DB) ListActivity(ctx context.Context, filter domain.ActivityFilter, offset, limit int) ([]domain.ActivityEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.ActivityEntry, 0, len(db.activity))
	for i := len(db.activity) - 1; i >= 0; i-- {
		if matchActivity(db.activity[i], filter) {
			result = append(result, db.activity[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return window(result, offset, limit), nil
}

// CountActivity returns the number of matching entries.
func (db *DB) CountActivity(ctx context.Context, filter domain.ActivityFilter) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, e := range db.activity {
		if matchActivity(e, filter) {
			n++
		}
	}
	return n, nil
}

func matchActivity(e domain.ActivityEntry, f domain.ActivityFilter) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}

// --- StatsRepository ---

// RecordBlockedAttempt increments the counter for the user's day.
func (db *DB) RecordBlockedAttempt(ctx context.Context, userID, day, url string) (*domain.DailyStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	k := statsKey{user: userID, day: day}
	st, ok := db.stats[k]
	if !ok {
		st = &domain.DailyStats{User: userID, Day: day, SitesBlocked: []string{}}
		db.stats[k] = st
	}
	st.BlockedAttempts++
	if !slices.Contains(st.SitesBlocked, url) {
		st.SitesBlocked = append(st.SitesBlocked, url)
	}

	out := *st
	out.SitesBlocked = slices.Clone(st.SitesBlocked)
	return &out, nil
}

// ListDailyStats returns the user's rows since sinceDay, newest first.
func (db *DB) ListDailyStats(ctx context.Context, userID, sinceDay string) ([]domain.DailyStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.DailyStats
	for k, st := range db.stats {
		// days are YYYY-MM-DD so string order is date order
		if k.user != userID || k.day < sinceDay {
			continue
		}
		out := *st
		out.SitesBlocked = slices.Clone(st.SitesBlocked)
		result = append(result, out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day > result[j].Day
	})
	return result, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
