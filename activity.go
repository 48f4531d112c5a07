package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "session.login.success"
	ActivityEventLoginFailure   ActivityEventType = "session.login.failure"
	ActivityEventFederatedLogin ActivityEventType = "session.login.federated"
	ActivityEventRegistration   ActivityEventType = "session.registration"
	ActivityEventLogout         ActivityEventType = "session.logout"
	ActivityEventRoleResolved   ActivityEventType = "session.role.resolved"
	ActivityEventRoleUnresolved ActivityEventType = "session.role.unresolved"
	ActivityEventProfileUpdated ActivityEventType = "session.profile.updated"
	ActivityEventForcedLogout   ActivityEventType = "session.logout.forced"
)

// ActivityEvent captures audit-friendly information about a session change.
type ActivityEvent struct {
	EventType  ActivityEventType
	IdentityID string
	Role       Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
