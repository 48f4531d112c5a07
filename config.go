package session

import (
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// EnvConfig is the default Config implementation, loaded once at process
// start from the environment (optionally seeded by a .env file) and never
// mutated at runtime.
type EnvConfig struct {
	BaseURL          string
	IdentityEndpoint string
	IdentityAPIKey   string
	LoginPath        string
	UnauthorizedPath string
	RedirectKey      string
	RedirectDefault  string
	TokenCacheDSN    string
}

// LoadConfig reads configuration from a .env file and environment
// variables. A missing .env file is not an error; a missing API base URL is.
func LoadConfig(logger Logger) (*EnvConfig, error) {
	if logger == nil {
		logger = defLogger{}
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug(".env file not found, using environment variables")
	}

	cfg := &EnvConfig{
		BaseURL:          strings.TrimSpace(os.Getenv("CLUBHUB_API_URL")),
		IdentityEndpoint: getEnv("CLUBHUB_IDENTITY_URL", ""),
		IdentityAPIKey:   getEnv("CLUBHUB_IDENTITY_API_KEY", ""),
		LoginPath:        getEnv("CLUBHUB_LOGIN_PATH", "/login"),
		UnauthorizedPath: getEnv("CLUBHUB_UNAUTHORIZED_PATH", "/unauthorized"),
		RedirectKey:      getEnv("CLUBHUB_REDIRECT_KEY", "clubhub_redirect"),
		RedirectDefault:  getEnv("CLUBHUB_REDIRECT_DEFAULT", "/"),
		TokenCacheDSN:    getEnv("CLUBHUB_TOKEN_CACHE_DSN", ""),
	}

	if cfg.BaseURL == "" {
		return nil, goerrors.New("CLUBHUB_API_URL is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *EnvConfig) GetBaseURL() string          { return c.BaseURL }
func (c *EnvConfig) GetLoginPath() string        { return c.LoginPath }
func (c *EnvConfig) GetUnauthorizedPath() string { return c.UnauthorizedPath }
func (c *EnvConfig) GetRedirectKey() string      { return c.RedirectKey }
func (c *EnvConfig) GetRedirectDefault() string  { return c.RedirectDefault }

var _ Config = (*EnvConfig)(nil)
