package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/credentials"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/resource"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ sessions.Opener = (*Authenticator)(nil)

// CredentialExchanger trades a username and password for tokens.
type CredentialExchanger interface {
	ExchangeCredentialsForToken(ctx context.Context, username, password string) (*oauth2.Token, error)
}

// TokenResolver runs the token refresh protocol for an account.
type TokenResolver interface {
	Resolve(ctx context.Context, account credentials.Account, publish func(token.State)) token.State
	Refresh(ctx context.Context, account credentials.Account, publish func(token.State)) token.State
	TokenType() string
}

// ProfileResolver returns the profile behind an access token.
type ProfileResolver interface {
	Resolve(ctx context.Context, accountKey, accessToken string, refresh bool) (users.User, error)
	Forget(ctx context.Context, accountKey string) error
}

// TokenRevoker invalidates a token on the server.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, token, tokenTypeHint string) error
}

// InteractiveLogin is notified when a non-silent acquisition needs the user to log in again.
// The error carries the account name and token type to resume a matching login.
type InteractiveLogin func(ctx context.Context, err *autherrors.Error)

// Deps holds the collaborators of an Authenticator.
type Deps struct {
	Store       credentials.Store   // Durable credential store
	Tokens      TokenResolver       // Token refresh protocol
	Credentials CredentialExchanger // Remote credential exchange
	Profiles    ProfileResolver     // Profile resolution and cache
	Revoker     TokenRevoker        // Optional server-side revocation on log out
}

// Authenticator opens and closes sessions for one account type.
type Authenticator struct {
	deps        Deps
	accountType string
	onReauth    InteractiveLogin
	logger      zerolog.Logger

	mu      sync.RWMutex
	account credentials.Account
}

type AuthenticatorOption func(*Authenticator)

// WithAccount preselects the account to open sessions for, e.g. one remembered from a previous run.
func WithAccount(name string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.account.Name = name
	}
}

func WithInteractiveLogin(fn InteractiveLogin) AuthenticatorOption {
	return func(a *Authenticator) {
		a.onReauth = fn
	}
}

func WithLogger(logger zerolog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

func NewAuthenticator(deps Deps, accountType string, options ...AuthenticatorOption) (*Authenticator, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewAuthenticator] credential store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewAuthenticator] token resolver is required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("[NewAuthenticator] credential exchanger is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("[NewAuthenticator] profile resolver is required")
	}
	if strings.TrimSpace(accountType) == "" {
		return nil, errors.New("[NewAuthenticator] account type is required")
	}

	a := &Authenticator{
		deps:        deps,
		accountType: accountType,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(a)
	}
	a.account.Type = accountType
	return a, nil
}

// Account returns the account sessions are opened for.
func (a *Authenticator) Account() credentials.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.account
}

func (a *Authenticator) setAccount(account credentials.Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.account = account
}

// Login exchanges username and password for tokens, stores them and makes the
// account current. The returned session carries a pending user; open a session
// through the manager to resolve the profile.
func (a *Authenticator) Login(ctx context.Context, username, password string) (sessions.Session, error) {
	tok, err := a.deps.Credentials.ExchangeCredentialsForToken(ctx, username, password)
	if err != nil {
		return sessions.Session{}, err
	}
	if tok == nil || tok.AccessToken == "" {
		return sessions.Session{}, &autherrors.Error{Kind: autherrors.KindUnknown, Cause: autherrors.ErrEmptyResponse}
	}

	account := credentials.Account{Name: username, Type: a.accountType}
	tokenType := a.deps.Tokens.TokenType()
	if err := a.deps.Store.SetAccessToken(ctx, account, tokenType, tok.AccessToken); err != nil {
		return sessions.Session{}, errors.Wrap(err, "Authenticator.Login SetAccessToken")
	}
	if err := a.deps.Store.SetRefreshToken(ctx, account, tok.RefreshToken); err != nil {
		return sessions.Session{}, errors.Wrap(err, "Authenticator.Login SetRefreshToken")
	}
	if err := a.deps.Store.SetUserData(ctx, account, credentials.UserDataUsername, username); err != nil {
		return sessions.Session{}, errors.Wrap(err, "Authenticator.Login SetUserData")
	}

	a.setAccount(account)
	a.logger.Info().
		Str("account", account.Name).
		Str("token", credentials.Fingerprint(tok.AccessToken)).
		Bool("refresh_token", tok.RefreshToken != "").
		Msg("logged in")
	return sessions.New(account, tok.AccessToken, tok.RefreshToken), nil
}

// Open implements sessions.Opener.
func (a *Authenticator) Open(ctx context.Context, req sessions.OpenRequest, publish func(sessions.State)) {
	account := a.Account()
	logger := a.logger.With().Str("account", account.Name).Logger()

	if account.Name == "" {
		a.fail(ctx, req, publish, autherrors.ReauthenticationRequired("", a.deps.Tokens.TokenType(), autherrors.ErrAccountMissing))
		return
	}

	if req.Current != nil && !req.Refresh && req.Current.Account == account {
		publish(resource.Success[sessions.Progress](*req.Current))
		return
	}

	publish(resource.Running[sessions.Progress, sessions.Session](sessions.ProgressResolvingToken))
	resolve := a.deps.Tokens.Resolve
	if req.Refresh {
		resolve = a.deps.Tokens.Refresh
	}
	tokenState := resolve(ctx, account, func(ts token.State) {
		for _, p := range ts.Progress() {
			if p == token.ProgressRefreshing {
				publish(resource.Running[sessions.Progress, sessions.Session](sessions.ProgressResolvingToken, sessions.ProgressRefreshingToken))
			}
		}
	})
	if !tokenState.IsSuccess() {
		err := tokenState.Err()
		if err == nil {
			err = autherrors.ReauthenticationRequired(account.Name, a.deps.Tokens.TokenType(), nil)
		}
		a.fail(ctx, req, publish, err)
		return
	}
	accessToken, _ := tokenState.Result()

	refreshToken, err := a.deps.Store.GetRefreshToken(ctx, account)
	if err != nil {
		logger.Warn().Err(err).Msg("reading refresh token for session")
	}
	session := sessions.New(account, accessToken, refreshToken)

	publish(resource.Running[sessions.Progress, sessions.Session](
		sessions.ProgressResolvingToken,
		sessions.ProgressResolvingProfile,
	))
	user, err := a.deps.Profiles.Resolve(ctx, account.Key(), accessToken, req.Refresh)
	if err != nil {
		logger.Warn().Err(err).Msg("resolving profile")
		publish(resource.Failure[sessions.Progress](&session, err))
		return
	}

	publish(resource.Success[sessions.Progress](session.WithUser(user)))
}

func (a *Authenticator) fail(ctx context.Context, req sessions.OpenRequest, publish func(sessions.State), err error) {
	var authErr *autherrors.Error
	if !req.Silent && a.onReauth != nil && autherrors.IsReauthenticationRequired(err) && errors.As(err, &authErr) {
		a.onReauth(ctx, authErr)
	}
	publish(resource.Fail[sessions.Progress, sessions.Session](err))
}

// Close implements sessions.Opener. With logOut every stored token and the cached
// profile of the session's account are removed. The refresh token is revoked on the
// server first when a revoker is configured; a failed revocation does not stop the
// local log out.
func (a *Authenticator) Close(ctx context.Context, session sessions.Session, logOut bool) error {
	if !logOut {
		return nil
	}
	a.revoke(ctx, session.Account)
	if err := a.deps.Store.RemoveAccount(ctx, session.Account); err != nil {
		return errors.Wrap(err, "Authenticator.Close RemoveAccount")
	}
	if err := a.deps.Profiles.Forget(ctx, session.Account.Key()); err != nil {
		return errors.Wrap(err, "Authenticator.Close Forget")
	}
	a.logger.Info().Str("account", session.Account.Name).Msg("logged out")
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, account credentials.Account) {
	if a.deps.Revoker == nil {
		return
	}
	refreshToken, err := a.deps.Store.GetRefreshToken(ctx, account)
	if err != nil || refreshToken == "" {
		return
	}
	if err := a.deps.Revoker.RevokeToken(ctx, refreshToken, "refresh_token"); err != nil {
		a.logger.Warn().Err(err).Str("account", account.Name).Msg("revoking refresh token")
	}
}
