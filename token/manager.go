package token

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-session/credentials"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/resource"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Progress is an advisory step reported while an access token is being resolved.
type Progress string

const (
	ProgressCheckingCache Progress = "checking cached token"
	ProgressRefreshing    Progress = "refreshing token"
)

// State is the lifecycle of a token resolution.
type State = resource.State[Progress, string]

// RefreshService is the remote token endpoint.
type RefreshService interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Manager resolves access tokens for accounts held in a credential store.
//
// The cached access token always wins over a network refresh: expiry is not checked
// here. Refresh skips the cache without touching it. A caller that receives a 401
// with the returned token calls Invalidate, since that token is known to be rejected.
type Manager struct {
	store     credentials.Store
	service   RefreshService
	tokenType string
	logger    zerolog.Logger
	nowFunc   func() time.Time
}

type ManagerOption func(*Manager)

// WithTokenType sets the token type requested from the credential store.
func WithTokenType(tokenType string) ManagerOption {
	return func(m *Manager) {
		m.tokenType = tokenType
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(store credentials.Store, service RefreshService, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[token New] credential store is required")
	}
	if service == nil {
		return nil, errors.New("[token New] refresh service is required")
	}

	m := &Manager{
		store:     store,
		service:   service,
		tokenType: credentials.DefaultTokenType,
		logger:    log.Logger,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// TokenType is the token type this manager reads and writes.
func (m *Manager) TokenType() string {
	return m.tokenType
}

// ResolveAccessToken produces a valid access token for account or a terminal Failure.
func (m *Manager) ResolveAccessToken(ctx context.Context, account credentials.Account) State {
	return m.Resolve(ctx, account, nil)
}

// AccessToken is ResolveAccessToken returning a plain value/error pair.
func (m *Manager) AccessToken(ctx context.Context, account credentials.Account) (string, error) {
	st := m.ResolveAccessToken(ctx, account)
	if st.IsSuccess() {
		token, _ := st.Result()
		return token, nil
	}
	return "", st.Err()
}

// Resolve runs the refresh protocol, reporting Running states to publish (which may be nil)
// and returning the terminal state. It never panics and never returns a non-terminal state.
func (m *Manager) Resolve(ctx context.Context, account credentials.Account, publish func(State)) State {
	return m.resolve(ctx, account, publish, false)
}

// Refresh exchanges the stored refresh token even when an access token is cached.
// Nothing is removed from the store: the cached token is only replaced by a successful
// refresh. Without a stored refresh token the cached access token is returned as is.
func (m *Manager) Refresh(ctx context.Context, account credentials.Account, publish func(State)) State {
	return m.resolve(ctx, account, publish, true)
}

func (m *Manager) resolve(ctx context.Context, account credentials.Account, publish func(State), force bool) (result State) {
	logger := m.logger.With().Str("account", account.Name).Str("token_type", m.tokenType).Bool("force", force).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("token resolution panicked")
			result = resource.Fail[Progress, string](m.reauthenticate(account, fmt.Errorf("%w: %v", autherrors.ErrInternal, r)))
		}
	}()

	report := func(p Progress) {
		if publish != nil {
			publish(resource.Running[Progress, string](p))
		}
	}

	report(ProgressCheckingCache)
	cached, err := m.store.PeekAccessToken(ctx, account, m.tokenType)
	if err != nil {
		logger.Error().Err(err).Msg("reading cached access token")
		return resource.Fail[Progress, string](m.reauthenticate(account, err))
	}
	if cached != "" && !force {
		logger.Debug().Str("token", credentials.Fingerprint(cached)).Msg("using cached access token")
		return resource.Success[Progress](cached)
	}

	refreshToken, err := m.store.GetRefreshToken(ctx, account)
	if err != nil {
		logger.Error().Err(err).Msg("reading refresh token")
		return resource.Fail[Progress, string](m.reauthenticate(account, err))
	}
	if refreshToken == "" {
		if cached != "" {
			logger.Info().Str("token", credentials.Fingerprint(cached)).Msg("no refresh token stored, keeping cached access token")
			return resource.Success[Progress](cached)
		}
		logger.Info().Msg("no refresh token stored, reauthentication required")
		return resource.Fail[Progress, string](m.reauthenticate(account, nil))
	}

	report(ProgressRefreshing)
	started := m.nowFunc()
	tok, err := m.service.RefreshToken(ctx, refreshToken)
	if err != nil {
		if isNetworkError(err) {
			logger.Warn().Err(err).Msg("token refresh failed in transport, stored tokens kept")
			return resource.Fail[Progress, string](asNetworkFailure(err))
		}
		logger.Info().Err(err).Msg("token refresh rejected, reauthentication required")
		return resource.Fail[Progress, string](m.reauthenticate(account, err))
	}
	if tok == nil || tok.AccessToken == "" {
		logger.Info().Msg("token refresh returned no access token, reauthentication required")
		return resource.Fail[Progress, string](m.reauthenticate(account, autherrors.ErrEmptyResponse))
	}

	if err := m.store.SetAccessToken(ctx, account, m.tokenType, tok.AccessToken); err != nil {
		logger.Error().Err(err).Msg("storing refreshed access token")
		return resource.Fail[Progress, string](m.reauthenticate(account, err))
	}
	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	if err := m.store.SetRefreshToken(ctx, account, newRefresh); err != nil {
		logger.Error().Err(err).Msg("storing refreshed refresh token")
		return resource.Fail[Progress, string](m.reauthenticate(account, err))
	}

	logger.Info().
		Str("token", credentials.Fingerprint(tok.AccessToken)).
		Dur("elapsed", m.nowFunc().Sub(started)).
		Bool("rotated", newRefresh != refreshToken).
		Msg("access token refreshed")
	return resource.Success[Progress](tok.AccessToken)
}

// Invalidate clears the cached access token after the resource server rejected it,
// so the next resolution refreshes or asks for a login.
func (m *Manager) Invalidate(ctx context.Context, account credentials.Account) error {
	if err := m.store.SetAccessToken(ctx, account, m.tokenType, ""); err != nil {
		return errors.Wrap(err, "Manager.Invalidate")
	}
	return nil
}

func (m *Manager) reauthenticate(account credentials.Account, cause error) *autherrors.Error {
	return autherrors.ReauthenticationRequired(account.Name, m.tokenType, cause)
}

func isNetworkError(err error) bool {
	if autherrors.KindOf(err) == autherrors.KindNetworkFailure {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return false
	}
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}

func asNetworkFailure(err error) *autherrors.Error {
	var authErr *autherrors.Error
	if errors.As(err, &authErr) && authErr.Kind == autherrors.KindNetworkFailure {
		return authErr
	}
	return autherrors.NetworkFailure(err)
}
