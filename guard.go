package session

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// GuardState is the route guard decision state
type GuardState = string

const (
	// GuardPending means the session is still loading; render a loading
	// indicator and perform no navigation.
	GuardPending GuardState = "pending"
	// GuardAllowed means the route may render.
	GuardAllowed GuardState = "allowed"
	// GuardDeniedLogin means no identity is present; redirect to login and
	// preserve the requested location.
	GuardDeniedLogin GuardState = "denied:login"
	// GuardDeniedForbidden means the identity's role does not match the
	// route's required role; redirect to the unauthorized page, not login.
	GuardDeniedForbidden GuardState = "denied:forbidden"
)

// Decision is the route guard output. Evaluating a decision never mutates
// the session.
type Decision struct {
	State GuardState
	// From is the originally requested location, carried so post-login
	// navigation can return the user there.
	From string
}

// EvaluateAccess decides whether a session may enter a route. An empty
// requiredRole only demands authentication; an unset session role fails
// every role-gated check.
func EvaluateAccess(snap Snapshot, requiredRole Role) Decision {
	if snap.Loading {
		return Decision{State: GuardPending}
	}

	if !snap.Authenticated() {
		return Decision{State: GuardDeniedLogin}
	}

	if requiredRole != "" && !snap.HasRole(requiredRole) {
		return Decision{State: GuardDeniedForbidden}
	}

	return Decision{State: GuardAllowed}
}

// RouteGuard gates routes on the session store. Unauthenticated access
// redirects to the login route with a redirect cookie pointing back at the
// rejected location; authenticated access with the wrong role redirects to
// the unauthorized route.
type RouteGuard struct {
	store        *Store
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewRouteGuard returns a guard bound to the given store and config.
func NewRouteGuard(store *Store, cfg Config) *RouteGuard {
	g := &RouteGuard{
		store:  store,
		cfg:    cfg,
		Logger: defLogger{},
	}
	g.ErrorHandler = g.defaultErrHandler
	return g
}

// Protected returns a middleware that requires an authenticated session and,
// when requiredRole is non-empty, a matching backend role. The snapshot the
// decision was made on is exposed to downstream handlers through the request
// context.
func (g *RouteGuard) Protected(requiredRole Role) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			snap, err := g.store.WaitSettled(c.Context())
			if err != nil {
				return g.ErrorHandler(c, err)
			}

			decision := EvaluateAccess(snap, requiredRole)

			switch decision.State {
			case GuardAllowed:
				c.SetContext(WithSnapshotContext(c.Context(), snap))
				return c.Next()
			case GuardDeniedForbidden:
				g.Logger.Info(
					"Role mismatch, redirecting to unauthorized",
					"required", requiredRole,
					"role", snap.Role,
					"path", c.OriginalURL(),
				)
				return c.Redirect(g.cfg.GetUnauthorizedPath(), g.redirectStatus(c))
			default:
				g.SetRedirect(c)
				return c.Redirect(g.cfg.GetLoginPath(), g.redirectStatus(c))
			}
		}
	}
}

// SetRedirect stores the rejected location in a short-lived cookie so the
// login flow can send the user back after authenticating.
func (g *RouteGuard) SetRedirect(c router.Context) {
	key := g.cfg.GetRedirectKey()

	g.Logger.Info("Setting redirect cookie", "key", key, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     key,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect consumes the redirect cookie, falling back to def.
func (g *RouteGuard) GetRedirect(c router.Context, def ...string) string {
	key := g.cfg.GetRedirectKey()
	r := c.Cookies(key)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return g.cfg.GetRedirectDefault()
	}
	g.cookieDel(c, key)
	return r
}

// GetRedirectOrDefault consumes the redirect cookie, trying the referer
// header before the configured default.
func (g *RouteGuard) GetRedirectOrDefault(c router.Context) string {
	key := g.cfg.GetRedirectKey()
	refererHeader := string(c.Referer())

	r := c.Cookies(key, refererHeader)
	if r == "" {
		r = g.cfg.GetRedirectDefault()
	}
	g.cookieDel(c, key)
	return r
}

func (g *RouteGuard) redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected guard error occurred").
			WithCode(goerrors.CodeInternal)
	}

	g.Logger.Info(
		"Guard error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.Status(richErr.Code).SendString(richErr.Message)
}
