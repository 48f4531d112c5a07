package session

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// AuthClient is the single shared request pipeline for authenticated API
// calls. Every outgoing request waits for the session to settle, attaches a
// fresh bearer token when an identity is present, and reacts to 401/403
// responses by terminating the session exactly once and sending the client
// back to login. The triggering caller still receives the rejected response.
type AuthClient struct {
	store     *Store
	navigator Navigator
	transport http.RoundTripper
	baseURL   string
	logger    Logger
}

// ClientOption customizes the HTTP pipeline.
type ClientOption func(*AuthClient)

// WithNavigator sets the navigation callback invoked after a forced logout.
func WithNavigator(nav Navigator) ClientOption {
	return func(c *AuthClient) {
		if nav != nil {
			c.navigator = nav
		}
	}
}

// WithTransport replaces the underlying transport (useful for tests).
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithClientLogger overrides the pipeline logger.
func WithClientLogger(logger Logger) ClientOption {
	return func(c *AuthClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAuthClient builds the pipeline around a session store. baseURL is the
// backend API root; relative request paths resolve against it.
func NewAuthClient(store *Store, baseURL string, opts ...ClientOption) *AuthClient {
	c := &AuthClient{
		store:     store,
		baseURL:   strings.TrimRight(baseURL, "/"),
		navigator: NavigatorFunc(nil),
		transport: http.DefaultTransport,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Client returns an *http.Client whose transport is this pipeline. Handing
// it to third-party API wrappers gives them the same signing and forced
// logout behavior.
func (c *AuthClient) Client() *http.Client {
	return &http.Client{Transport: c}
}

// NewRequest builds a request against the configured API base.
func (c *AuthClient) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target := path
	if !strings.Contains(path, "://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	return http.NewRequestWithContext(ctx, method, target, body)
}

// Do dispatches a request through the pipeline.
func (c *AuthClient) Do(req *http.Request) (*http.Response, error) {
	return c.RoundTrip(req)
}

// RoundTrip implements http.RoundTripper.
func (c *AuthClient) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// inert until the session settles: never sign with a token that belongs
	// to an in-flight resolution
	snap, err := c.store.WaitSettled(ctx)
	if err != nil {
		return nil, err
	}

	epoch := c.store.Epoch()

	signed := false
	out := req.Clone(ctx)
	if snap.Authenticated() {
		token, err := c.store.CurrentToken(ctx)
		if err != nil {
			// logout raced the token fetch; dispatch unauthenticated
			c.logger.Debug("Token fetch failed, dispatching unauthenticated", "error", err)
		} else {
			out.Header.Set("Authorization", "Bearer "+token)
			signed = true
		}
	}

	resp, err := c.transport.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	// a rejection only invalidates the session when the request carried its
	// token; anonymous 401s are the caller's problem
	if signed && IsAuthFailureStatus(resp.StatusCode) {
		c.handleAuthFailure(req, epoch, resp.StatusCode)
	}

	return resp, nil
}

// handleAuthFailure terminates the session for the epoch the request was
// signed under. ForceLogout acts at most once per epoch, so any number of
// concurrent rejections produce one logout and one navigation; rejections
// arriving after the identity already changed are ignorable.
func (c *AuthClient) handleAuthFailure(req *http.Request, epoch uint64, status int) {
	if !c.store.ForceLogout(context.Background(), epoch) {
		c.logger.Debug("Ignoring auth failure for superseded identity", "status", status)
		return
	}

	from := req.URL.RequestURI()
	c.logger.Info("Authorization failure, session terminated", "status", status, "from", from)
	c.navigator.NavigateToLogin(from)
}

var _ http.RoundTripper = (*AuthClient)(nil)
