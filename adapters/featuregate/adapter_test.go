package sessionadapter_test

import (
	"context"
	"testing"

	session "github.com/clubhub/go-session"
	sessionadapter "github.com/clubhub/go-session/adapters/featuregate"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxIdentity struct {
	id string
}

func (i ctxIdentity) ID() string          { return i.id }
func (i ctxIdentity) Email() string       { return i.id + "@example.com" }
func (i ctxIdentity) DisplayName() string { return "" }
func (i ctxIdentity) PhotoURL() string    { return "" }

func TestClaimsFromContext(t *testing.T) {
	snap := session.Snapshot{
		Identity: ctxIdentity{id: "uid-1"},
		Role:     session.RoleClubManager,
	}
	ctx := session.WithSnapshotContext(context.Background(), snap)

	provider := sessionadapter.NewClaimsProvider()

	claims, err := provider.ClaimsFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.SubjectID)
	assert.Equal(t, []string{session.RoleClubManager}, claims.Roles)
}

func TestClaimsFromContextWithoutSnapshot(t *testing.T) {
	provider := sessionadapter.NewClaimsProvider()

	claims, err := provider.ClaimsFromContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.ActorClaims{}, claims)
}

func TestClaimsFromContextUnresolvedRole(t *testing.T) {
	snap := session.Snapshot{Identity: ctxIdentity{id: "uid-1"}}
	ctx := session.WithSnapshotContext(context.Background(), snap)

	provider := sessionadapter.NewClaimsProvider()

	claims, err := provider.ClaimsFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", claims.SubjectID)
	assert.Nil(t, claims.Roles)
}

func TestClaimsFromContextCustomRoleMapper(t *testing.T) {
	snap := session.Snapshot{
		Identity: ctxIdentity{id: "uid-1"},
		Role:     session.RoleAdmin,
	}
	ctx := session.WithSnapshotContext(context.Background(), snap)

	provider := sessionadapter.NewClaimsProvider(
		sessionadapter.WithRoleMapper(func(snap session.Snapshot) []string {
			return []string{"role:" + snap.Role}
		}),
	)

	claims, err := provider.ClaimsFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"role:admin"}, claims.Roles)
}

func TestClaimsFromSnapshot(t *testing.T) {
	claims := sessionadapter.ClaimsFromSnapshot(session.Snapshot{
		Identity: ctxIdentity{id: "uid-2"},
		Role:     session.RoleMember,
	})
	assert.Equal(t, "uid-2", claims.SubjectID)
	assert.Equal(t, []string{session.RoleMember}, claims.Roles)

	assert.Equal(t, gate.ActorClaims{}, sessionadapter.ClaimsFromSnapshot(session.Snapshot{}))
}
