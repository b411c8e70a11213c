// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"focusblock/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgStartEmpty   = "Scheduled start time cannot be empty"
	msgStartInvalid = "Invalid date format for scheduled start"
	msgStartPast    = "Scheduled start time must be in the future"
)

// datetime-local values carry no zone and are read in server local time.
var localStartLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// SessionService encapsulates the focus session lifecycle use cases.
type SessionService struct {
	repo     domain.SessionRepository
	activity ActivitySink
	now      func() time.Time
	newID    func() string
}

// NewSessionService creates a SessionService that persists to repo and
// reports mutations to activity.
func NewSessionService(repo domain.SessionRepository, activity ActivitySink) *SessionService {
	return &SessionService{
		repo:     repo,
		activity: activity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock replaces the service's time source.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// CreateSessionInput holds the caller-supplied fields of a new session.
// An empty ScheduledStart is treated as absent.
type CreateSessionInput struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Duration       int     `json:"duration"`
	ScheduledStart *string `json:"scheduledStart"`
}

// ListSessionsInput holds list filters and paging. Owner is only honoured
// for admins. Nil Page or Limit take the defaults.
type ListSessionsInput struct {
	Page   *int
	Limit  *int
	Owner  string
	Status string
}

// Create validates the input and stores a new session owned by actor.
func (s *SessionService) Create(ctx context.Context, actor domain.Identity, in CreateSessionInput) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Create")
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := s.now()
	var errs fieldErrors
	title := strings.TrimSpace(in.Title)
	if title == "" {
		errs.add("title", "Title is required")
	}
	if in.Duration < 1 {
		errs.add("duration", "Duration must be at least 1 minute")
	}
	var scheduled *time.Time
	if in.ScheduledStart != nil && *in.ScheduledStart != "" {
		t, msg := parseFutureStart(*in.ScheduledStart, now)
		if msg != "" {
			errs.add("scheduledStart", msg)
		} else {
			scheduled = &t
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	status := domain.StatusCreated
	if scheduled != nil {
		status = domain.StatusScheduled
	}
	sess := &domain.FocusSession{
		ID:             s.newID(),
		Owner:          actor.UserID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Duration:       in.Duration,
		Status:         status,
		ScheduledStart: scheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.record(actor, domain.ActionCreateSession, sess, nil, domain.Snapshot{
		"status": string(sess.Status),
		"title":  sess.Title,
	})
	return sess, nil
}

// Get returns a single session the actor may see.
func (s *SessionService) Get(ctx context.Context, actor domain.Identity, id string) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Get", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	return s.load(ctx, actor, id)
}

// Start moves a session to ACTIVE.
func (s *SessionService) Start(ctx context.Context, actor domain.Identity, id string) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Start", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusActive {
		return nil, conflictError("Session is already active", nil)
	}

	old := domain.Snapshot{"status": string(sess.Status)}
	if _, err := s.transition(sess, domain.StatusActive, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.record(actor, domain.ActionStartSession, sess, old, domain.Snapshot{
		"status":      string(sess.Status),
		"actualStart": timeValue(sess.ActualStart),
	})
	return sess, nil
}

// Complete moves a session to COMPLETED.
func (s *SessionService) Complete(ctx context.Context, actor domain.Identity, id string) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Complete", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	old := domain.Snapshot{"status": string(sess.Status)}
	if _, err := s.transition(sess, domain.StatusCompleted, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.record(actor, domain.ActionCompleteSession, sess, old, domain.Snapshot{
		"status":    string(sess.Status),
		"actualEnd": timeValue(sess.ActualEnd),
	})
	return sess, nil
}

// Cancel moves a session to CANCELLED. Completed sessions cannot be
// cancelled.
func (s *SessionService) Cancel(ctx context.Context, actor domain.Identity, id string) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Cancel", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == domain.StatusCompleted {
		return nil, validationError("Cannot cancel a completed session")
	}

	old := domain.Snapshot{"status": string(sess.Status)}
	if _, err := s.transition(sess, domain.StatusCancelled, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.record(actor, domain.ActionCancelSession, sess, old, domain.Snapshot{
		"status": string(sess.Status),
	})
	return sess, nil
}

// Schedule sets a new future start time. Sessions still in CREATED also move
// to SCHEDULED; any other status is left as is.
func (s *SessionService) Schedule(ctx context.Context, actor domain.Identity, id, scheduledStart string) (_ *domain.FocusSession, err error) {
	ctx, span := startSpan(ctx, "SessionService.Schedule", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	start, err := parseScheduledStart(scheduledStart)
	if err != nil {
		return nil, err
	}

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !start.After(now) {
		return nil, validationError(msgStartPast, FieldError{Field: "scheduledStart", Message: msgStartPast})
	}

	old := domain.Snapshot{
		"status":         string(sess.Status),
		"scheduledStart": timeValue(sess.ScheduledStart),
	}
	sess.ScheduledStart = &start
	sess.UpdatedAt = now
	if sess.Status == domain.StatusCreated {
		if _, err := s.transition(sess, domain.StatusScheduled, now); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	s.record(actor, domain.ActionScheduleSession, sess, old, domain.Snapshot{
		"status":         string(sess.Status),
		"scheduledStart": timeValue(sess.ScheduledStart),
	})
	return sess, nil
}

// Delete permanently removes a CREATED or CANCELLED session.
func (s *SessionService) Delete(ctx context.Context, actor domain.Identity, id string) (err error) {
	ctx, span := startSpan(ctx, "SessionService.Delete", attribute.String("session.id", id))
	defer func() { finishSpan(span, err) }()

	sess, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !sess.Status.Deletable() {
		return validationError("Can only delete CREATED or CANCELLED sessions")
	}
	if err := s.repo.DeleteSession(ctx, sess.ID, sess.Version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return conflictError("Session was modified concurrently; reload and retry", err)
		}
		return fmt.Errorf("delete session %s: %w", sess.ID, err)
	}
	return nil
}

// List returns a page of sessions, newest first. Non-admins only ever see
// their own sessions.
func (s *SessionService) List(ctx context.Context, actor domain.Identity, in ListSessionsInput) (_ Page[domain.FocusSession], err error) {
	ctx, span := startSpan(ctx, "SessionService.List")
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return Page[domain.FocusSession]{}, err
	}

	var errs fieldErrors
	page, limit := normalizePage(in.Page, in.Limit, &errs)
	var status domain.Status
	if in.Status != "" {
		st, perr := domain.ParseStatus(in.Status)
		if perr != nil {
			errs.add("status", "Invalid status")
		}
		status = st
	}
	if err := errs.err(); err != nil {
		return Page[domain.FocusSession]{}, err
	}

	filter := domain.SessionFilter{
		Owner:  domain.ScopeOwner(actor, in.Owner),
		Status: status,
	}
	return paginate(ctx, page, limit,
		func(ctx context.Context) (int, error) {
			return s.repo.CountSessions(ctx, filter)
		},
		func(ctx context.Context, offset, limit int) ([]domain.FocusSession, error) {
			return s.repo.ListSessions(ctx, filter, offset, limit)
		},
	)
}

func (s *SessionService) load(ctx context.Context, actor domain.Identity, id string) (*domain.FocusSession, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, notFoundError("FocusSession")
	}
	if err := domain.Authorize(actor, sess.Owner); err != nil {
		return nil, forbiddenError(err)
	}
	return sess, nil
}

func (s *SessionService) transition(sess *domain.FocusSession, target domain.Status, now time.Time) (domain.Transition, error) {
	from := sess.Status
	tr, err := sess.TransitionTo(target, now)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return tr, &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("Invalid transition from %s to %s", from, target),
			Cause:   err,
		}
	}
	return tr, err
}

func (s *SessionService) save(ctx context.Context, sess *domain.FocusSession) error {
	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return conflictError("Session was modified concurrently; reload and retry", err)
		}
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SessionService) record(actor domain.Identity, action domain.Action, sess *domain.FocusSession, oldState, newState domain.Snapshot) {
	if s.activity == nil {
		return
	}
	s.activity.Record(domain.ActivityEntry{
		User:         actor.UserID,
		Action:       action,
		ResourceType: domain.ResourceFocusSession,
		ResourceID:   sess.ID,
		OldState:     oldState,
		NewState:     newState,
		Metadata:     domain.Snapshot{"owner": sess.Owner},
	})
}

func requireActor(actor domain.Identity) error {
	if actor.UserID == "" {
		return unauthorizedError("Authentication required", nil)
	}
	return nil
}

// parseScheduledStart accepts RFC 3339 timestamps and zone-less
// datetime-local values.
func parseScheduledStart(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, validationError(msgStartEmpty, FieldError{Field: "scheduledStart", Message: msgStartEmpty})
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range localStartLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationError(msgStartInvalid, FieldError{Field: "scheduledStart", Message: msgStartInvalid})
}

// parseFutureStart returns the parsed time, or a non-empty message when raw
// is not a valid start strictly after now.
func parseFutureStart(raw string, now time.Time) (time.Time, string) {
	t, err := parseScheduledStart(raw)
	if err != nil {
		return time.Time{}, err.Error()
	}
	if !t.After(now) {
		return time.Time{}, msgStartPast
	}
	return t, ""
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
