package domain

import (
	"context"
	"time"
)

// Action identifies the operation an activity entry records.
type Action string

const (
	ActionCreateSession     Action = "CREATE_SESSION"
	ActionScheduleSession   Action = "SCHEDULE_SESSION"
	ActionStartSession      Action = "START_SESSION"
	ActionCompleteSession   Action = "COMPLETE_SESSION"
	ActionCancelSession     Action = "CANCEL_SESSION"
	ActionAddBlockedSite    Action = "ADD_BLOCKED_SITE"
	ActionRemoveBlockedSite Action = "REMOVE_BLOCKED_SITE"
	ActionUpdateBlockedSite Action = "UPDATE_BLOCKED_SITE"
	ActionLogin             Action = "LOGIN"
	ActionRegister          Action = "REGISTER"
)

// Valid reports whether a is a known action code.
func (a Action) Valid() bool {
	switch a {
	case ActionCreateSession, ActionScheduleSession, ActionStartSession,
		ActionCompleteSession, ActionCancelSession,
		ActionAddBlockedSite, ActionRemoveBlockedSite, ActionUpdateBlockedSite,
		ActionLogin, ActionRegister:
		return true
	}
	return false
}

// ResourceType names the kind of resource an activity entry refers to.
type ResourceType string

const (
	ResourceFocusSession ResourceType = "FocusSession"
	ResourceBlocked      ResourceType = "Blocked"
	ResourceUser         ResourceType = "User"
)

// Snapshot is a schema-less view of a resource before or after an action.
type Snapshot map[string]any

// ActivityEntry is an immutable audit record of one mutating operation.
type ActivityEntry struct {
	ID           string       `json:"id"`
	User         string       `json:"user"`
	Action       Action       `json:"action"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId,omitempty"`
	OldState     Snapshot     `json:"oldState,omitempty"`
	NewState     Snapshot     `json:"newState,omitempty"`
	Metadata     Snapshot     `json:"metadata"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ActivityFilter narrows activity queries. Zero-valued fields are ignored.
type ActivityFilter struct {
	User       string
	ResourceID string
	Action     Action
}

// ActivityRepository is the port for the append-only activity log.
// ListActivity orders entries newest first.
type ActivityRepository interface {
	AppendActivity(ctx context.Context, e ActivityEntry) error
	ListActivity(ctx context.Context, filter ActivityFilter, offset, limit int) ([]ActivityEntry, error)
	CountActivity(ctx context.Context, filter ActivityFilter) (int, error)
}
