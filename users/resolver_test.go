package users_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountKey = "com.example.auth/john.doe@example.com"

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

type countingSource struct {
	calls int
	user  users.User
	err   error
}

func (s *countingSource) FetchUser(_ context.Context, _ string) (users.User, error) {
	s.calls++
	return s.user, s.err
}

func TestNewResolver_Validation(t *testing.T) {
	_, err := users.NewResolver(nil, &countingSource{})
	require.Error(t, err)
	_, err = users.NewResolver(fakeuserrepo.NewFakeUserRepo(), nil)
	require.Error(t, err)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	john := users.User{ID: "user-1", Username: "john.doe"}

	t.Run("fetches and caches on miss", func(t *testing.T) {
		repo := fakeuserrepo.NewFakeUserRepo()
		source := &countingSource{user: john}
		resolver, err := users.NewResolver(repo, source)
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, accountKey, "access", false)
		require.NoError(t, err)
		require.Equal(t, john, got)

		cached, err := repo.Get(ctx, accountKey)
		require.NoError(t, err)
		require.Equal(t, john, cached)

		_, err = resolver.Resolve(ctx, accountKey, "access", false)
		require.NoError(t, err)
		require.Equal(t, 1, source.calls, "second resolve served from cache")
	})

	t.Run("refresh bypasses cache", func(t *testing.T) {
		repo := fakeuserrepo.NewFakeUserRepo()
		require.NoError(t, repo.Upsert(ctx, accountKey, users.User{ID: "user-1", Username: "old"}))
		source := &countingSource{user: john}
		resolver, err := users.NewResolver(repo, source)
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, accountKey, "access", true)
		require.NoError(t, err)
		require.Equal(t, "john.doe", got.Username)
		require.Equal(t, 1, source.calls)
	})

	t.Run("failed refresh falls back to cache", func(t *testing.T) {
		repo := fakeuserrepo.NewFakeUserRepo()
		require.NoError(t, repo.Upsert(ctx, accountKey, john))
		source := &countingSource{err: autherrors.NetworkFailure(errors.New("offline"))}
		resolver, err := users.NewResolver(repo, source)
		require.NoError(t, err)

		got, err := resolver.Resolve(ctx, accountKey, "access", true)
		require.NoError(t, err)
		require.Equal(t, john, got)
	})

	t.Run("failed fetch without cache", func(t *testing.T) {
		source := &countingSource{err: autherrors.NetworkFailure(errors.New("offline"))}
		resolver, err := users.NewResolver(fakeuserrepo.NewFakeUserRepo(), source)
		require.NoError(t, err)

		_, err = resolver.Resolve(ctx, accountKey, "access", false)
		require.Equal(t, autherrors.KindNetworkFailure, autherrors.KindOf(err))
	})
}

func TestResolver_Forget(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()
	resolver, err := users.NewResolver(repo, &countingSource{})
	require.NoError(t, err)

	require.NoError(t, resolver.Forget(ctx, accountKey), "forgetting an unknown account is not an error")

	require.NoError(t, repo.Upsert(ctx, accountKey, users.User{ID: "user-1"}))
	require.NoError(t, resolver.Forget(ctx, accountKey))
	_, err = repo.Get(ctx, accountKey)
	require.ErrorIs(t, err, autherrors.ErrNotFound)
}

func TestClaimsSource(t *testing.T) {
	source := users.NewClaimsSource(func() time.Time { return fixedNow })

	t.Run("maps claims", func(t *testing.T) {
		raw := signedToken(t, jwt.MapClaims{
			"sub":                "user-1",
			"email":              "john.doe@example.com",
			"email_verified":     true,
			"preferred_username": "john.doe",
			"name":               "John Doe",
			"roles":              []string{"admin"},
		})

		got, err := source.FetchUser(context.Background(), raw)
		require.NoError(t, err)
		require.Equal(t, users.User{
			ID:        "user-1",
			Email:     "john.doe@example.com",
			Username:  "john.doe",
			FirstName: "John",
			LastName:  "Doe",
			Verified:  true,
			Roles:     []users.RoleType{"admin"},
			UpdatedAt: fixedNow,
		}, got)
	})

	t.Run("opaque token", func(t *testing.T) {
		_, err := source.FetchUser(context.Background(), "opaque-token")
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})

	t.Run("no subject", func(t *testing.T) {
		_, err := source.FetchUser(context.Background(), signedToken(t, jwt.MapClaims{"email": "a@b.c"}))
		require.ErrorIs(t, err, autherrors.ErrInvalidToken)
	})
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*oidc.Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := (&oidc.ProviderConfig{
		IssuerURL:   server.URL,
		AuthURL:     server.URL + "/authorize",
		TokenURL:    server.URL + "/oauth2/token",
		UserInfoURL: server.URL + "/userinfo",
	}).NewProvider(context.Background())
	return provider, server
}

func TestOIDCSource(t *testing.T) {
	t.Run("reads userinfo", func(t *testing.T) {
		provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/userinfo", r.URL.Path)
			assert.Equal(t, "Bearer live-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub":                "user-1",
				"email":              "john.doe@example.com",
				"email_verified":     true,
				"preferred_username": "john.doe",
				"given_name":         "John",
				"family_name":        "Doe",
				"roles":              []string{"editor"},
			})
		})

		got, err := users.NewOIDCSource(provider, func() time.Time { return fixedNow }).FetchUser(context.Background(), "live-token")
		require.NoError(t, err)
		require.Equal(t, users.User{
			ID:        "user-1",
			Email:     "john.doe@example.com",
			Username:  "john.doe",
			FirstName: "John",
			LastName:  "Doe",
			Verified:  true,
			Roles:     []users.RoleType{"editor"},
			UpdatedAt: fixedNow,
		}, got)
	})

	t.Run("rejected token", func(t *testing.T) {
		provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
		})

		_, err := users.NewOIDCSource(provider, nil).FetchUser(context.Background(), "bad-token")
		require.Error(t, err)
		require.NotEqual(t, autherrors.KindNetworkFailure, autherrors.KindOf(err))
	})

	t.Run("unreachable provider", func(t *testing.T) {
		provider, server := newTestProvider(t, func(http.ResponseWriter, *http.Request) {})
		server.Close()

		_, err := users.NewOIDCSource(provider, nil).FetchUser(context.Background(), "live-token")
		require.Equal(t, autherrors.KindNetworkFailure, autherrors.KindOf(err))
	})
}
