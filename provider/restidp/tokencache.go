package restidp

import (
	"context"
	"sync"
)

// CachedSession is what the provider persists between processes: the
// identity profile plus its token pair. Never the password.
type CachedSession struct {
	IdentityID   string `json:"identity_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PhotoURL     string `json:"photo_url"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenCache persists the provider's token cache. Load returns nil without
// error when nothing is cached.
type TokenCache interface {
	Load(ctx context.Context) (*CachedSession, error)
	Save(ctx context.Context, cached *CachedSession) error
	Clear(ctx context.Context) error
}

// MemoryCache is the default in-process TokenCache.
type MemoryCache struct {
	mu     sync.Mutex
	cached *CachedSession
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Load(ctx context.Context) (*CachedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return nil, nil
	}
	clone := *m.cached
	return &clone, nil
}

func (m *MemoryCache) Save(ctx context.Context, cached *CachedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached == nil {
		m.cached = nil
		return nil
	}
	clone := *cached
	m.cached = &clone
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	return nil
}

var _ TokenCache = (*MemoryCache)(nil)
