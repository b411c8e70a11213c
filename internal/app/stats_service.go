package app

import (
	"context"
	"strings"
	"time"

	"focusblock/internal/domain"
)

const defaultStatsDays = 7

// StatsService encapsulates blocked-attempt statistics use cases.
type StatsService struct {
	repo domain.StatsRepository
	now  func() time.Time
}

// NewStatsService creates a StatsService backed by the given repository.
func NewStatsService(repo domain.StatsRepository) *StatsService {
	return &StatsService{repo: repo, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now
	return s
}

// RecordBlocked counts one blocked visit to url for today.
func (s *StatsService) RecordBlocked(ctx context.Context, actor domain.Identity, url string) (_ *domain.DailyStats, err error) {
	ctx, span := startSpan(ctx, "StatsService.RecordBlocked")
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, validationError("URL is required", FieldError{Field: "url", Message: "URL is required"})
	}
	return s.repo.RecordBlockedAttempt(ctx, actor.UserID, localDay(s.now()), url)
}

// Recent returns the actor's stats for the last days days, newest first.
// A nil days means 7; otherwise it must be within [1, 365].
func (s *StatsService) Recent(ctx context.Context, actor domain.Identity, days *int) (_ []domain.DailyStats, err error) {
	ctx, span := startSpan(ctx, "StatsService.Recent")
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	n := defaultStatsDays
	if days != nil {
		n = *days
	}
	if n < 1 || n > 365 {
		return nil, validationError("days must be between 1 and 365", FieldError{Field: "days", Message: "days must be between 1 and 365"})
	}
	since := localDay(s.now().AddDate(0, 0, -n))
	items, err := s.repo.ListDailyStats(ctx, actor.UserID, since)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.DailyStats{}
	}
	return items, nil
}

func localDay(t time.Time) string {
	return t.In(time.Local).Format("2006-01-02")
}
