package session

import (
	"context"
)

var snapshotCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSnapshotContext sets the session snapshot in the given context
func WithSnapshotContext(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey, snap)
}

// SnapshotFromContext finds the session snapshot placed by the route guard.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	snap, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	return snap, ok
}

// RoleFromContext is a convenience helper for handlers that only need the
// resolved role. Returns the empty role when no snapshot is present.
func RoleFromContext(ctx context.Context) Role {
	snap, ok := SnapshotFromContext(ctx)
	if !ok {
		return ""
	}
	return snap.Role
}
