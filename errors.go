package session

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeRegistrationFailed     = "REGISTRATION_FAILED"
	textCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	textCodeNoActiveIdentity       = "NO_ACTIVE_IDENTITY"
	textCodeRoleResolutionFailed   = "ROLE_RESOLUTION_FAILED"
	textCodeFederatedLoginDisabled = "FEDERATED_LOGIN_DISABLED"
	textCodeFederatedLoginAborted  = "FEDERATED_LOGIN_ABORTED"
)

// ErrRegistrationFailed is returned when the identity backend rejects a new
// account (duplicate email, weak password) or the call fails outright.
var ErrRegistrationFailed = goerrors.New("registration rejected by identity backend", goerrors.CategoryAuth).
	WithTextCode(textCodeRegistrationFailed).
	WithCode(goerrors.CodeBadRequest)

// ErrAuthenticationFailed is returned for bad credentials or a failed
// federated login exchange.
var ErrAuthenticationFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoActiveIdentity is returned when a bearer token is requested but no
// identity is signed in.
var ErrNoActiveIdentity = goerrors.New("no active identity", goerrors.CategoryAuth).
	WithTextCode(textCodeNoActiveIdentity).
	WithCode(goerrors.CodeUnauthorized)

// ErrRoleResolutionFailed is returned when the backend role lookup fails.
// The store swallows it into an unset role; it never propagates to callers.
var ErrRoleResolutionFailed = goerrors.New("unable to resolve backend role", goerrors.CategoryInternal).
	WithTextCode(textCodeRoleResolutionFailed).
	WithCode(goerrors.CodeInternal)

// ErrFederatedLoginDisabled is returned when the federated login feature gate
// is off for the current deployment.
var ErrFederatedLoginDisabled = goerrors.New("federated login is disabled", goerrors.CategoryAuthz).
	WithTextCode(textCodeFederatedLoginDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrFederatedLoginAborted is returned when the user dismisses the provider
// consent flow before it completes.
var ErrFederatedLoginAborted = goerrors.New("federated login aborted", goerrors.CategoryAuth).
	WithTextCode(textCodeFederatedLoginAborted).
	WithCode(goerrors.CodeUnauthorized)

// IsAuthFailureStatus reports whether an HTTP status invalidates the current
// session and must force a logout.
func IsAuthFailureStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsRoleResolutionError will check for role lookup failures
func IsRoleResolutionError(err error) bool {
	return hasTextCode(err, textCodeRoleResolutionFailed)
}

// IsAuthenticationError will check for credential or federated login failures
func IsAuthenticationError(err error) bool {
	return hasTextCode(err, textCodeInvalidCredentials) ||
		hasTextCode(err, textCodeFederatedLoginAborted)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
