package credentials_test

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-session/credentials"
	credentialsrepofake "github.com/jrsteele09/go-auth-session/credentials/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	testAccount  = credentials.Account{Name: "john.doe@example.com", Type: "com.example.auth"}
	otherAccount = credentials.Account{Name: "jane.doe@example.com", Type: "com.example.auth"}
)

// lookalikeAccount's name starts with testAccount's unescaped keyring key prefix.
var lookalikeAccount = credentials.Account{Name: "john.doe@example.com|data|x", Type: "com.example.auth"}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) credentials.Store{
		"fake": func(t *testing.T) credentials.Store {
			return credentialsrepofake.NewFakeStore()
		},
		"keyring": func(t *testing.T) credentials.Store {
			return credentials.NewKeyringStore(keyring.NewArrayKeyring(nil))
		},
		"redis": func(t *testing.T) credentials.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return credentials.NewRedisStore(client, credentials.WithKeyPrefix("test:"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			testStoreContract(t, newStore(t))
		})
	}
}

func testStoreContract(t *testing.T, store credentials.Store) {
	ctx := context.Background()

	t.Run("absent values are empty", func(t *testing.T) {
		access, err := store.PeekAccessToken(ctx, testAccount, credentials.DefaultTokenType)
		require.NoError(t, err)
		require.Empty(t, access)

		refresh, err := store.GetRefreshToken(ctx, testAccount)
		require.NoError(t, err)
		require.Empty(t, refresh)
	})

	t.Run("tokens round trip per token type", func(t *testing.T) {
		require.NoError(t, store.SetAccessToken(ctx, testAccount, credentials.DefaultTokenType, "access-1"))
		require.NoError(t, store.SetAccessToken(ctx, testAccount, "read_only", "access-ro"))
		require.NoError(t, store.SetRefreshToken(ctx, testAccount, "refresh-1"))
		require.NoError(t, store.SetUserData(ctx, testAccount, credentials.UserDataUsername, "john"))

		access, err := store.PeekAccessToken(ctx, testAccount, credentials.DefaultTokenType)
		require.NoError(t, err)
		require.Equal(t, "access-1", access)

		access, err = store.PeekAccessToken(ctx, testAccount, "read_only")
		require.NoError(t, err)
		require.Equal(t, "access-ro", access)

		refresh, err := store.GetRefreshToken(ctx, testAccount)
		require.NoError(t, err)
		require.Equal(t, "refresh-1", refresh)

		username, err := store.GetUserData(ctx, testAccount, credentials.UserDataUsername)
		require.NoError(t, err)
		require.Equal(t, "john", username)
	})

	t.Run("empty value clears access token", func(t *testing.T) {
		require.NoError(t, store.SetAccessToken(ctx, testAccount, credentials.DefaultTokenType, ""))
		access, err := store.PeekAccessToken(ctx, testAccount, credentials.DefaultTokenType)
		require.NoError(t, err)
		require.Empty(t, access)

		refresh, err := store.GetRefreshToken(ctx, testAccount)
		require.NoError(t, err)
		require.Equal(t, "refresh-1", refresh)
	})

	t.Run("remove account only touches that account", func(t *testing.T) {
		require.NoError(t, store.SetRefreshToken(ctx, otherAccount, "other-refresh"))
		require.NoError(t, store.SetRefreshToken(ctx, lookalikeAccount, "lookalike-refresh"))
		require.NoError(t, store.SetAccessToken(ctx, lookalikeAccount, credentials.DefaultTokenType, "lookalike-access"))
		require.NoError(t, store.RemoveAccount(ctx, testAccount))

		refresh, err := store.GetRefreshToken(ctx, testAccount)
		require.NoError(t, err)
		require.Empty(t, refresh)

		access, err := store.PeekAccessToken(ctx, testAccount, "read_only")
		require.NoError(t, err)
		require.Empty(t, access)

		refresh, err = store.GetRefreshToken(ctx, otherAccount)
		require.NoError(t, err)
		require.Equal(t, "other-refresh", refresh)

		refresh, err = store.GetRefreshToken(ctx, lookalikeAccount)
		require.NoError(t, err)
		require.Equal(t, "lookalike-refresh", refresh)
		access, err = store.PeekAccessToken(ctx, lookalikeAccount, credentials.DefaultTokenType)
		require.NoError(t, err)
		require.Equal(t, "lookalike-access", access)

		require.NoError(t, store.RemoveAccount(ctx, testAccount))
	})
}

func TestFingerprint(t *testing.T) {
	require.Empty(t, credentials.Fingerprint(""))
	fp := credentials.Fingerprint("secret-token")
	require.Len(t, fp, 12)
	require.NotContains(t, fp, "secret")
	require.Equal(t, fp, credentials.Fingerprint("secret-token"))
}

func TestAccount_Key(t *testing.T) {
	require.Equal(t, "com.example.auth/john.doe@example.com", testAccount.Key())
	require.NotEqual(t,
		credentials.Account{Type: "a/b", Name: "c"}.Key(),
		credentials.Account{Type: "a", Name: "b/c"}.Key())
	require.NotContains(t, lookalikeAccount.Key(), "|")
	require.True(t, credentials.Account{}.IsZero())
	require.False(t, testAccount.IsZero())
}
