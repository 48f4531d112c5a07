package restidp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clubhub/go-session"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const defaultRefreshLeeway = 30 * time.Second

type account struct {
	identity     *RemoteIdentity
	idToken      string
	refreshToken string
}

// Provider implements session.IdentityProvider over the identity REST
// backend. It keeps the current account in memory, persists the token pair
// through the configured TokenCache, and fans raw identity changes out to
// subscribers.
type Provider struct {
	cfg    Config
	client *http.Client
	cache  TokenCache
	leeway time.Duration

	mu        sync.Mutex
	refreshMu sync.Mutex
	account   *account
	listeners map[uuid.UUID]session.IdentityChangeFunc
}

// New builds a provider and restores any cached session so a restarted
// client comes up signed in.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	cache := cfg.TokenCache
	if cache == nil {
		cache = NewMemoryCache()
	}

	leeway := cfg.RefreshLeeway
	if leeway <= 0 {
		leeway = defaultRefreshLeeway
	}

	p := &Provider{
		cfg:       cfg,
		client:    client,
		cache:     cache,
		leeway:    leeway,
		listeners: map[uuid.UUID]session.IdentityChangeFunc{},
	}

	cached, err := cache.Load(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load token cache")
	}
	if cached != nil && cached.RefreshToken != "" {
		p.account = &account{
			identity: &RemoteIdentity{
				id:          cached.IdentityID,
				email:       cached.Email,
				displayName: cached.DisplayName,
				photoURL:    cached.PhotoURL,
			},
			idToken:      cached.IDToken,
			refreshToken: cached.RefreshToken,
		}
	}

	return p, nil
}

// Subscribe implements session.IdentityProvider. The callback fires once at
// registration with the current state and again on every sign-in/sign-out.
func (p *Provider) Subscribe(fn session.IdentityChangeFunc) session.Unsubscribe {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := uuid.New()
	p.listeners[id] = fn
	var current session.Identity
	if p.account != nil {
		current = p.account.identity
	}
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Register implements session.IdentityProvider.
func (p *Provider) Register(ctx context.Context, input session.RegisterInput) (session.Identity, error) {
	var res authResponse
	err := p.post(ctx, "accounts:signUp", map[string]any{
		"email":             input.Email,
		"password":          input.Password,
		"displayName":       input.DisplayName,
		"photoUrl":          input.PhotoURL,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return nil, mapRegistrationError(err)
	}

	return p.adopt(ctx, res), nil
}

// Login implements session.IdentityProvider.
func (p *Provider) Login(ctx context.Context, email, password string) (session.Identity, error) {
	var res authResponse
	err := p.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return nil, mapAuthenticationError(err)
	}

	return p.adopt(ctx, res), nil
}

// LoginWithProvider implements session.IdentityProvider. The provider
// consent handshake runs outside this package; its credential is exchanged
// here for a first-party session.
func (p *Provider) LoginWithProvider(ctx context.Context) (session.Identity, error) {
	if p.cfg.Federated == nil {
		return nil, session.ErrFederatedLoginAborted
	}

	providerID, credential, err := p.cfg.Federated.FederatedCredential(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err,
			session.ErrFederatedLoginAborted.Category,
			session.ErrFederatedLoginAborted.Message,
		).WithTextCode(session.ErrFederatedLoginAborted.TextCode)
	}

	postBody := url.Values{}
	postBody.Set("providerId", providerID)
	postBody.Set("id_token", credential)

	var res authResponse
	err = p.post(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	}, &res)
	if err != nil {
		return nil, mapAuthenticationError(err)
	}

	return p.adopt(ctx, res), nil
}

// Logout implements session.IdentityProvider. The local session clears and
// subscribers are notified even when the revoke call fails; the error is
// returned so callers can log it.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	acct := p.account
	p.account = nil
	p.mu.Unlock()

	var revokeErr error
	if acct != nil && acct.refreshToken != "" {
		revokeErr = p.post(ctx, "accounts:revoke", map[string]any{
			"refreshToken": acct.refreshToken,
		}, nil)
	}

	if err := p.cache.Clear(ctx); err != nil && revokeErr == nil {
		revokeErr = err
	}

	p.notify(nil)
	return revokeErr
}

// UpdateProfile implements session.IdentityProvider. The local account is
// patched in place without notifying subscribers: a profile edit must not
// trigger a role re-resolution.
func (p *Provider) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	token, err := p.CurrentToken(ctx)
	if err != nil {
		return err
	}

	err = p.post(ctx, "accounts:update", map[string]any{
		"idToken":           token,
		"displayName":       displayName,
		"photoUrl":          photoURL,
		"returnSecureToken": false,
	}, nil)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.account != nil {
		p.account.identity = &RemoteIdentity{
			id:          p.account.identity.id,
			email:       p.account.identity.email,
			displayName: displayName,
			photoURL:    photoURL,
		}
	}
	p.mu.Unlock()

	return p.persist(ctx)
}

// CurrentToken implements session.IdentityProvider. It returns the cached ID
// token while fresh and transparently exchanges the refresh token when the
// ID token is inside the refresh leeway. Safe to call concurrently.
func (p *Provider) CurrentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	active := p.account != nil
	var token string
	if active {
		token = p.account.idToken
	}
	p.mu.Unlock()

	if !active {
		return "", session.ErrNoActiveIdentity
	}

	if token != "" && !p.stale(token) {
		return token, nil
	}

	return p.refresh(ctx)
}

func (p *Provider) refresh(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// another caller may have refreshed while we queued, or a logout may
	// have landed
	p.mu.Lock()
	active := p.account != nil
	var token, refreshToken string
	if active {
		token = p.account.idToken
		refreshToken = p.account.refreshToken
	}
	p.mu.Unlock()

	if !active {
		return "", session.ErrNoActiveIdentity
	}
	if token != "" && !p.stale(token) {
		return token, nil
	}

	var res struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
	}
	err := p.post(ctx, "token", map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}, &res)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryAuth, "unable to refresh session token").
			WithCode(goerrors.CodeUnauthorized)
	}

	p.mu.Lock()
	if p.account == nil {
		// logout landed mid-refresh; drop the result
		p.mu.Unlock()
		return "", session.ErrNoActiveIdentity
	}
	p.account.idToken = res.IDToken
	if res.RefreshToken != "" {
		p.account.refreshToken = res.RefreshToken
	}
	token = p.account.idToken
	p.mu.Unlock()

	if err := p.persist(ctx); err != nil {
		return "", err
	}

	return token, nil
}

// stale reports whether the ID token's recorded expiry falls inside the
// refresh leeway. An unparsable token is treated as stale.
func (p *Provider) stale(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return time.Until(exp.Time) < p.leeway
}

func (p *Provider) adopt(ctx context.Context, res authResponse) session.Identity {
	identity := &RemoteIdentity{
		id:          res.LocalID,
		email:       res.Email,
		displayName: res.DisplayName,
		photoURL:    res.PhotoURL,
	}

	p.mu.Lock()
	p.account = &account{
		identity:     identity,
		idToken:      res.IDToken,
		refreshToken: res.RefreshToken,
	}
	p.mu.Unlock()

	// cache loss only costs a re-login after restart
	_ = p.persist(ctx)

	p.notify(identity)
	return identity
}

func (p *Provider) persist(ctx context.Context) error {
	p.mu.Lock()
	acct := p.account
	p.mu.Unlock()

	if acct == nil {
		return p.cache.Clear(ctx)
	}

	return p.cache.Save(ctx, &CachedSession{
		IdentityID:   acct.identity.id,
		Email:        acct.identity.email,
		DisplayName:  acct.identity.displayName,
		PhotoURL:     acct.identity.photoURL,
		IDToken:      acct.idToken,
		RefreshToken: acct.refreshToken,
	})
}

func (p *Provider) notify(identity session.Identity) {
	p.mu.Lock()
	fns := make([]session.IdentityChangeFunc, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity backend error %d: %s", e.Status, e.Message)
}

func (p *Provider) post(ctx context.Context, action string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode identity request")
	}

	endpoint := fmt.Sprintf("%s/v1/%s?key=%s",
		strings.TrimRight(p.cfg.Endpoint, "/"), action, url.QueryEscape(p.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build identity request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{Status: resp.StatusCode, Message: decodeAPIError(resp.Body)}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to decode identity response")
	}

	return nil
}

func decodeAPIError(r io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return "unknown error"
	}
	if payload.Error.Message == "" {
		return "unknown error"
	}
	return payload.Error.Message
}

func mapRegistrationError(err error) error {
	if apiErr, ok := asAPIError(err); ok {
		return goerrors.Wrap(apiErr,
			session.ErrRegistrationFailed.Category,
			session.ErrRegistrationFailed.Message,
		).WithTextCode(session.ErrRegistrationFailed.TextCode).
			WithMetadata(map[string]any{"reason": apiErr.Message})
	}
	return err
}

func mapAuthenticationError(err error) error {
	if apiErr, ok := asAPIError(err); ok {
		return goerrors.Wrap(apiErr,
			session.ErrAuthenticationFailed.Category,
			session.ErrAuthenticationFailed.Message,
		).WithTextCode(session.ErrAuthenticationFailed.TextCode).
			WithMetadata(map[string]any{"reason": apiErr.Message})
	}
	return err
}

func asAPIError(err error) (*apiError, bool) {
	var apiErr *apiError
	if goerrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

var _ session.IdentityProvider = (*Provider)(nil)
