package restidp

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// FederatedCredentialSource produces an OAuth credential for the federated
// login flow (the provider consent handshake happens outside this package).
type FederatedCredentialSource interface {
	FederatedCredential(ctx context.Context) (providerID, credential string, err error)
}

// FederatedCredentialFunc adapts a function to FederatedCredentialSource.
type FederatedCredentialFunc func(ctx context.Context) (string, string, error)

func (f FederatedCredentialFunc) FederatedCredential(ctx context.Context) (string, string, error) {
	if f == nil {
		return "", "", goerrors.New("no federated credential source configured", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}
	return f(ctx)
}

// Config configures the identity REST provider.
type Config struct {
	// Endpoint is the identity backend root, e.g. https://identity.example.com.
	Endpoint string

	// APIKey is the public client API key appended to every call.
	APIKey string

	// HTTPClient overrides the client used for identity calls.
	HTTPClient *http.Client

	// TokenCache persists the refresh token between processes. Defaults to an
	// in-memory cache.
	TokenCache TokenCache

	// Federated supplies provider credentials for LoginWithProvider.
	Federated FederatedCredentialSource

	// RefreshLeeway refreshes the ID token this long before its recorded
	// expiry. Defaults to 30 seconds.
	RefreshLeeway time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return goerrors.New("identity endpoint is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return goerrors.New("identity API key is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
