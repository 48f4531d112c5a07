package session

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an externally managed identity
type Identity interface {
	ID() string
	Email() string
	DisplayName() string
	PhotoURL() string
}

// IdentityChangeFunc receives the new identity (or nil on sign-out) whenever
// the identity backend reports a change.
type IdentityChangeFunc func(identity Identity)

// Unsubscribe tears down a previously registered identity subscription.
type Unsubscribe func()

// IdentityProvider wraps an external identity backend. Implementations own
// credential verification and token issuance; this package only consumes
// identities and bearer tokens.
type IdentityProvider interface {
	Register(ctx context.Context, input RegisterInput) (Identity, error)
	Login(ctx context.Context, email, password string) (Identity, error)
	LoginWithProvider(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, displayName, photoURL string) error
	CurrentToken(ctx context.Context) (string, error)
	Subscribe(fn IdentityChangeFunc) Unsubscribe
}

// RoleResolver maps an authenticated identity to its backend role.
type RoleResolver interface {
	ResolveRole(ctx context.Context, token string) (Role, error)
}

// AccountRegistrar mirrors a freshly created identity to the backend user
// store. Called once, right after Register succeeds, without a bearer token.
type AccountRegistrar interface {
	RegisterAccount(ctx context.Context, name, email, photoURL string) error
}

// Navigator moves the client to a new location. The from argument carries the
// URL the user was on when navigation was forced, so a login flow can return
// there afterwards.
type Navigator interface {
	NavigateToLogin(from string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(from string)

func (f NavigatorFunc) NavigateToLogin(from string) {
	if f != nil {
		f(from)
	}
}

// Config holds session options
type Config interface {
	GetBaseURL() string
	GetLoginPath() string
	GetUnauthorizedPath() string
	GetRedirectKey() string
	GetRedirectDefault() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
