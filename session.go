package session

import (
	"fmt"
	"time"
)

// Snapshot is an immutable view of the session at a point in time. Exactly
// one live session exists per Store; readers get copies, only the store
// writes.
type Snapshot struct {
	Identity   Identity   `json:"identity,omitempty"`
	Role       Role       `json:"role,omitempty"`
	Loading    bool       `json:"loading"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Authenticated reports whether an identity is signed in.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

// HasRole reports whether the backend role has been resolved to the given
// value. An unset role fails every check (deny-by-default).
func (s Snapshot) HasRole(role Role) bool {
	if s.Identity == nil || s.Role == "" {
		return false
	}
	return s.Role == role
}

// Settled reports whether the session has finished its current transition.
func (s Snapshot) Settled() bool {
	return !s.Loading
}

func (s Snapshot) String() string {
	email := ""
	if s.Identity != nil {
		email = s.Identity.Email()
	}
	return fmt.Sprintf("session{email:%s role:%s loading:%t}", email, s.Role, s.Loading)
}

// profileIdentity overlays locally edited profile fields on a base identity.
// Used by UpdateProfile so a profile edit does not need a resolution round
// trip.
type profileIdentity struct {
	base        Identity
	displayName string
	photoURL    string
}

func (p profileIdentity) ID() string          { return p.base.ID() }
func (p profileIdentity) Email() string       { return p.base.Email() }
func (p profileIdentity) DisplayName() string { return p.displayName }
func (p profileIdentity) PhotoURL() string    { return p.photoURL }
