// Package sessionadapter bridges session snapshots into go-featuregate actor
// claims, so gate rules can target the backend-resolved role.
package sessionadapter

import (
	"context"

	session "github.com/clubhub/go-session"
	"github.com/goliatone/go-featuregate/gate"
)

// SnapshotExtractor extracts a session snapshot from context.
type SnapshotExtractor func(context.Context) (session.Snapshot, bool)

// RoleMapper builds role identifiers from a snapshot.
type RoleMapper func(snap session.Snapshot) []string

// Option customizes ClaimsProvider behavior.
type Option func(*ClaimsProvider)

// ClaimsProvider derives feature claims from the session snapshot the route
// guard placed in the request context.
type ClaimsProvider struct {
	extractor  SnapshotExtractor
	roleMapper RoleMapper
}

// NewClaimsProvider builds a claims provider reading the guard's snapshot.
func NewClaimsProvider(opts ...Option) *ClaimsProvider {
	provider := &ClaimsProvider{
		extractor:  session.SnapshotFromContext,
		roleMapper: defaultRoleMapper,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.extractor == nil {
		provider.extractor = session.SnapshotFromContext
	}
	if provider.roleMapper == nil {
		provider.roleMapper = defaultRoleMapper
	}
	return provider
}

// WithSnapshotExtractor overrides the snapshot extractor.
func WithSnapshotExtractor(extractor SnapshotExtractor) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.extractor = extractor
	}
}

// WithRoleMapper overrides the default role mapper.
func WithRoleMapper(mapper RoleMapper) Option {
	return func(provider *ClaimsProvider) {
		if provider == nil {
			return
		}
		provider.roleMapper = mapper
	}
}

// ClaimsFromContext implements gate.ClaimsProvider.
func (p *ClaimsProvider) ClaimsFromContext(ctx context.Context) (gate.ActorClaims, error) {
	if p == nil || p.extractor == nil {
		return gate.ActorClaims{}, nil
	}
	snap, ok := p.extractor(ctx)
	if !ok || !snap.Authenticated() {
		return gate.ActorClaims{}, nil
	}
	return claimsFromSnapshot(snap, p.roleMapper), nil
}

// ClaimsFromSnapshot builds ActorClaims from a snapshot using defaults.
func ClaimsFromSnapshot(snap session.Snapshot) gate.ActorClaims {
	return claimsFromSnapshot(snap, defaultRoleMapper)
}

func claimsFromSnapshot(snap session.Snapshot, roleMapper RoleMapper) gate.ActorClaims {
	if !snap.Authenticated() {
		return gate.ActorClaims{}
	}
	claims := gate.ActorClaims{
		SubjectID: snap.Identity.ID(),
	}
	if roleMapper != nil {
		claims.Roles = roleMapper(snap)
	}
	return claims
}

func defaultRoleMapper(snap session.Snapshot) []string {
	if snap.Role == "" {
		return nil
	}
	return []string{snap.Role}
}
