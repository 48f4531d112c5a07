package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	session "github.com/clubhub/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIRoleResolverResolvesRole(t *testing.T) {
	var gotAuth, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"role": "clubManager"})
	}))
	defer backend.Close()

	resolver := session.NewAPIRoleResolver(backend.URL, backend.Client())

	role, err := resolver.ResolveRole(context.Background(), "tok-42")
	require.NoError(t, err)
	assert.Equal(t, session.RoleClubManager, role)
	assert.Equal(t, "Bearer tok-42", gotAuth)
	assert.Equal(t, "/users/role", gotPath)
}

func TestAPIRoleResolverRejectsUnknownRole(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"role": "superuser"})
	}))
	defer backend.Close()

	resolver := session.NewAPIRoleResolver(backend.URL, backend.Client())

	_, err := resolver.ResolveRole(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, session.IsRoleResolutionError(err))
}

func TestAPIRoleResolverFailsOnErrorStatus(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer backend.Close()

	resolver := session.NewAPIRoleResolver(backend.URL, backend.Client())

	_, err := resolver.ResolveRole(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, session.IsRoleResolutionError(err))
}

func TestAPIRoleResolverFailsOnMalformedBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{"))
	}))
	defer backend.Close()

	resolver := session.NewAPIRoleResolver(backend.URL, backend.Client())

	_, err := resolver.ResolveRole(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, session.IsRoleResolutionError(err))
}

func TestAPIAccountRegistrarPostsProfile(t *testing.T) {
	var got map[string]string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer backend.Close()

	registrar := session.NewAPIAccountRegistrar(backend.URL, backend.Client())

	err := registrar.RegisterAccount(context.Background(), "New Member", "new@example.com", "https://cdn.test/p.png")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"name":     "New Member",
		"email":    "new@example.com",
		"photoURL": "https://cdn.test/p.png",
	}, got)
}

func TestAPIAccountRegistrarSurfacesRejection(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate", http.StatusConflict)
	}))
	defer backend.Close()

	registrar := session.NewAPIAccountRegistrar(backend.URL, backend.Client())

	err := registrar.RegisterAccount(context.Background(), "N", "dup@example.com", "")
	require.Error(t, err)
}
