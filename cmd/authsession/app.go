package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authservice"
	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/internal/config"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const accountFile = "account"

// app is the fully wired session stack.
type app struct {
	cfg      config.Config
	store    credentials.Store
	service  *authservice.Client
	tokens   *token.Manager
	auth     *auth.Authenticator
	sessions *sessions.Manager
	override *transport.EndpointOverride
	api      *http.Client
	closers  []func() error
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{cfg: c}
	if err := os.MkdirAll(c.GetDataFolder(), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating data folder")
	}

	httpClient := &http.Client{Timeout: c.GetRequestTimeout()}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	profileRepo, err := users.OpenSQLRepo(ctx, c.GetProfileDSN())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, profileRepo.Close)

	a.service, err = authservice.New(authservice.Config{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		TokenURL:     c.GetTokenURL(),
		AuthURL:      c.GetAuthURL(),
		RevokeURL:    c.GetRevokeURL(),
		Scopes:       c.GetScopes(),
	},
		authservice.WithHTTPClient(httpClient),
		authservice.WithLogger(log.With().Str("component", "authservice").Logger()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.tokens, err = token.New(store, a.service,
		token.WithTokenType(c.GetTokenType()),
		token.WithLogger(log.With().Str("component", "token").Logger()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	profiles, err := users.NewResolver(profileRepo, a.profileSource(ctx, httpClient),
		users.WithLogger(log.With().Str("component", "users").Logger()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.auth, err = auth.NewAuthenticator(auth.Deps{
		Store:       store,
		Tokens:      a.tokens,
		Credentials: a.service,
		Profiles:    profiles,
		Revoker:     a.service,
	}, c.GetAccountType(),
		auth.WithAccount(a.rememberedAccount()),
		auth.WithInteractiveLogin(promptLogin),
		auth.WithLogger(log.With().Str("component", "auth").Logger()),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions, err = sessions.NewManager(a.auth, sessions.WithLogger(log.With().Str("component", "sessions").Logger()))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.override = transport.NewEndpointOverride(transport.WithOverrideLogger(log.With().Str("component", "transport").Logger()))
	a.api = transport.NewClient(nil, a.override.Interceptor(), transport.Authorization(a.sessions))
	a.api.Timeout = c.GetRequestTimeout()
	return a, nil
}

func (a *app) openStore(ctx context.Context) (credentials.Store, error) {
	switch a.cfg.GetCredentialStore() {
	case config.StoreRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{a.cfg.GetRedisAddr()},
			Password: a.cfg.GetRedisPassword(),
			DB:       a.cfg.GetRedisDB(),
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrapf(err, "connecting to redis at %s", a.cfg.GetRedisAddr())
		}
		return credentials.NewRedisStore(client, credentials.WithKeyPrefix(a.cfg.GetRedisKeyPrefix())), nil
	case config.StoreKeyring, "":
		var backends []keyring.BackendType
		for _, b := range a.cfg.GetKeyringBackends() {
			backends = append(backends, keyring.BackendType(strings.TrimSpace(b)))
		}
		return credentials.OpenKeyringStore(keyring.Config{
			ServiceName:      a.cfg.GetKeyringService(),
			AllowedBackends:  backends,
			FileDir:          filepath.Join(a.cfg.GetDataFolder(), "keyring"),
			FilePasswordFunc: keyring.TerminalPrompt,
		})
	default:
		return nil, fmt.Errorf("unknown credential store %q", a.cfg.GetCredentialStore())
	}
}

// profileSource reads profiles from the userinfo endpoint when one is configured,
// otherwise from the access token's claims.
func (a *app) profileSource(ctx context.Context, httpClient *http.Client) users.Source {
	if a.cfg.GetUserInfoURL() == "" {
		return users.NewClaimsSource(nil)
	}
	provider := (&oidc.ProviderConfig{
		IssuerURL:   a.cfg.GetIssuerURL(),
		AuthURL:     a.cfg.GetAuthURL(),
		TokenURL:    a.cfg.GetTokenURL(),
		UserInfoURL: a.cfg.GetUserInfoURL(),
	}).NewProvider(oidc.ClientContext(ctx, httpClient))
	return users.NewOIDCSource(provider, nil)
}

// rememberedAccount is the account of the last login, unless ACCOUNT_NAME overrides it.
func (a *app) rememberedAccount() string {
	if name := a.cfg.GetAccountName(); name != "" {
		return name
	}
	data, err := os.ReadFile(filepath.Join(a.cfg.GetDataFolder(), accountFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (a *app) rememberAccount(name string) error {
	path := filepath.Join(a.cfg.GetDataFolder(), accountFile)
	if name == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "forgetting account")
		}
		return nil
	}
	return errors.Wrap(os.WriteFile(path, []byte(name+"\n"), 0o600), "remembering account")
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("closing")
		}
	}
	a.closers = nil
}

func promptLogin(_ context.Context, err *autherrors.Error) {
	if err.AccountName == "" {
		fmt.Fprintln(os.Stderr, "Not logged in. Run: authsession login -username <name> -password <password>")
		return
	}
	fmt.Fprintf(os.Stderr, "The session for %s has expired. Run: authsession login -username %s -password <password>\n",
		err.AccountName, err.AccountName)
}
