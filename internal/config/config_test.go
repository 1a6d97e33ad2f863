package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "Auth Session", c.GetAppName())
	require.Equal(t, "info", c.GetLogLevel())
	require.Equal(t, []string{"openid", "profile", "email"}, c.GetScopes())
	require.Equal(t, "full_access", c.GetTokenType())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, config.StoreKeyring, c.GetCredentialStore())
	require.Equal(t, "authsession:", c.GetRedisKeyPrefix())
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("OAUTH_CLIENT_ID", "cli")
	t.Setenv("OAUTH_TOKEN_URL", "https://auth.example.com/oauth2/token")
	t.Setenv("OAUTH_SCOPES", "openid,offline_access")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("CREDENTIAL_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("KEYRING_BACKENDS", "file,pass")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "cli", c.GetClientID())
	require.Equal(t, []string{"openid", "offline_access"}, c.GetScopes())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, config.StoreRedis, c.GetCredentialStore())
	require.Equal(t, 3, c.GetRedisDB())
	require.Equal(t, []string{"file", "pass"}, c.GetKeyringBackends())
	require.Equal(t, "https://auth.example.com", c.GetIssuerURL())
}

func TestNew_ExplicitIssuer(t *testing.T) {
	t.Setenv("OAUTH_TOKEN_URL", "https://auth.example.com/oauth2/token")
	t.Setenv("OAUTH_ISSUER_URL", "https://id.example.com/realms/main")

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "https://id.example.com/realms/main", c.GetIssuerURL())
}

func TestNew_InvalidValue(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")

	_, err := config.New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse env:")
}
