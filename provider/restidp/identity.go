package restidp

import (
	"github.com/clubhub/go-session"
)

// RemoteIdentity is the identity record returned by the REST backend,
// implementing session.Identity.
type RemoteIdentity struct {
	id          string
	email       string
	displayName string
	photoURL    string
}

func (u *RemoteIdentity) ID() string          { return u.id }
func (u *RemoteIdentity) Email() string       { return u.email }
func (u *RemoteIdentity) DisplayName() string { return u.displayName }
func (u *RemoteIdentity) PhotoURL() string    { return u.photoURL }

var _ session.Identity = (*RemoteIdentity)(nil)
