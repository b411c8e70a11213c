// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a focus session.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var (
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the session's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrVersionConflict is returned by repositories when the stored session
	// changed after it was loaded.
	ErrVersionConflict = errors.New("version conflict")
)

var transitions = map[Status][]Status{
	StatusCreated:   {StatusScheduled, StatusActive, StatusCancelled},
	StatusScheduled: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusCreated, StatusScheduled, StatusActive, StatusCompleted, StatusCancelled}
}

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether the table allows s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Deletable reports whether a session in status s may be removed.
func (s Status) Deletable() bool {
	return s == StatusCreated || s == StatusCancelled
}

// FocusSession is a timed work block owned by a single user.
type FocusSession struct {
	ID             string     `json:"id"`
	Owner          string     `json:"owner"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Duration       int        `json:"duration"`
	Status         Status     `json:"status"`
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	ActualStart    *time.Time `json:"actualStart,omitempty"`
	ActualEnd      *time.Time `json:"actualEnd,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Version        int64      `json:"version"`
}

// Transition describes a status change applied to a session.
type Transition struct {
	From Status
	To   Status
}

// TransitionTo moves the session to target if the transition table allows
// it. Nothing is modified when the transition is rejected.
//
// actualStart and actualEnd are only ever written once, on the first entry
// into ACTIVE and COMPLETED respectively.
func (s *FocusSession) TransitionTo(target Status, now time.Time) (Transition, error) {
	from := s.Status
	if !from.CanTransitionTo(target) {
		return Transition{}, fmt.Errorf("%w from %s to %s", ErrInvalidTransition, from, target)
	}

	s.Status = target
	s.UpdatedAt = now
	if target == StatusActive && s.ActualStart == nil {
		t := now
		s.ActualStart = &t
	}
	if target == StatusCompleted && s.ActualEnd == nil {
		t := now
		s.ActualEnd = &t
	}
	return Transition{From: from, To: target}, nil
}

// SessionFilter narrows session queries. Zero-valued fields are ignored.
type SessionFilter struct {
	Owner  string
	Status Status
}

// SessionRepository is the port for focus session persistence.
//
// GetSession returns (nil, nil) when the session does not exist.
// UpdateSession and DeleteSession only apply when the stored version equals
// the given session's version and return ErrVersionConflict otherwise; a
// successful update increments s.Version. ListSessions orders by creation
// time, newest first.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *FocusSession) error
	GetSession(ctx context.Context, id string) (*FocusSession, error)
	UpdateSession(ctx context.Context, s *FocusSession) error
	DeleteSession(ctx context.Context, id string, version int64) error
	ListSessions(ctx context.Context, filter SessionFilter, offset, limit int) ([]FocusSession, error)
	CountSessions(ctx context.Context, filter SessionFilter) (int, error)
}
