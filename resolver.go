package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// APIRoleResolver resolves the backend role for a bearer token via
// GET {base}/users/role. Any non-2xx response or unknown role value is a
// resolution failure; the store downgrades that to an unset role.
type APIRoleResolver struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// NewAPIRoleResolver builds a resolver against the backend API root. The
// resolver deliberately uses a plain client, not the authenticated pipeline:
// role resolution runs while the session is still loading and signs itself
// with the token it was handed.
func NewAPIRoleResolver(baseURL string, client *http.Client) *APIRoleResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIRoleResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  defLogger{},
	}
}

func (r *APIRoleResolver) WithLogger(logger Logger) *APIRoleResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// ResolveRole implements RoleResolver.
func (r *APIRoleResolver) ResolveRole(ctx context.Context, token string) (Role, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/users/role", nil)
	if err != nil {
		return "", goerrors.Wrap(err, ErrRoleResolutionFailed.Category, ErrRoleResolutionFailed.Message).
			WithTextCode(ErrRoleResolutionFailed.TextCode)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", goerrors.Wrap(err, ErrRoleResolutionFailed.Category, ErrRoleResolutionFailed.Message).
			WithTextCode(ErrRoleResolutionFailed.TextCode)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrRoleResolutionFailed.WithMetadata(map[string]any{
			"status": resp.StatusCode,
		})
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", goerrors.Wrap(err, ErrRoleResolutionFailed.Category, "unable to decode role response").
			WithTextCode(ErrRoleResolutionFailed.TextCode)
	}

	role, ok := ParseRole(payload.Role)
	if !ok {
		r.logger.Warn("Backend returned unknown role", "role", payload.Role)
		return "", ErrRoleResolutionFailed.WithMetadata(map[string]any{
			"role": payload.Role,
		})
	}

	return role, nil
}

// APIAccountRegistrar mirrors new identities to the backend user store via
// POST {base}/users/register. Called once after registration, before the
// identity has a backend role, so the call is unauthenticated.
type APIAccountRegistrar struct {
	baseURL string
	client  *http.Client
}

// NewAPIAccountRegistrar builds the registration side channel.
func NewAPIAccountRegistrar(baseURL string, client *http.Client) *APIAccountRegistrar {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIAccountRegistrar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// RegisterAccount implements AccountRegistrar.
func (r *APIAccountRegistrar) RegisterAccount(ctx context.Context, name, email, photoURL string) error {
	body, err := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"photoURL": photoURL,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode registration payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/users/register", bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build registration request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "registration side channel failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return goerrors.New("registration side channel rejected", goerrors.CategoryOperation).
			WithCode(resp.StatusCode).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	return nil
}

var (
	_ RoleResolver     = (*APIRoleResolver)(nil)
	_ AccountRegistrar = (*APIAccountRegistrar)(nil)
)
