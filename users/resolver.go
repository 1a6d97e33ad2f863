package users

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Source fetches the profile of the actor an access token belongs to.
type Source interface {
	FetchUser(ctx context.Context, accessToken string) (User, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, accessToken string) (User, error)

func (f SourceFunc) FetchUser(ctx context.Context, accessToken string) (User, error) {
	return f(ctx, accessToken)
}

// ClaimsSource builds the profile from the access token's own claims.
type ClaimsSource struct {
	nowFunc func() time.Time
}

func NewClaimsSource(now func() time.Time) *ClaimsSource {
	if now == nil {
		now = time.Now
	}
	return &ClaimsSource{nowFunc: now}
}

func (cs *ClaimsSource) FetchUser(_ context.Context, accessToken string) (User, error) {
	claims, err := token.ParseClaims(accessToken)
	if err != nil {
		return User{}, err
	}
	if claims.Subject == "" {
		return User{}, errors.Wrap(autherrors.ErrInvalidToken, "ClaimsSource: token has no subject")
	}
	return User{
		ID:        claims.Subject,
		Email:     claims.Email,
		Username:  claims.PreferredUsername,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Verified:  claims.EmailVerified,
		Roles:     toRoles(claims.Roles),
		UpdatedAt: cs.nowFunc(),
	}, nil
}

// OIDCSource reads the profile from the provider's userinfo endpoint.
type OIDCSource struct {
	provider *oidc.Provider
	nowFunc  func() time.Time
}

func NewOIDCSource(provider *oidc.Provider, now func() time.Time) *OIDCSource {
	if now == nil {
		now = time.Now
	}
	return &OIDCSource{provider: provider, nowFunc: now}
}

type userInfoClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	Roles             []string `json:"roles"`
}

func (s *OIDCSource) FetchUser(ctx context.Context, accessToken string) (User, error) {
	info, err := s.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		var urlErr *url.Error
		var netErr net.Error
		if errors.As(err, &urlErr) || errors.As(err, &netErr) {
			return User{}, autherrors.NetworkFailure(err)
		}
		return User{}, errors.Wrap(err, "OIDCSource.UserInfo")
	}

	var claims userInfoClaims
	if err := info.Claims(&claims); err != nil {
		return User{}, errors.Wrap(err, "OIDCSource.Claims")
	}

	return User{
		ID:        info.Subject,
		Email:     info.Email,
		Username:  claims.PreferredUsername,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Verified:  info.EmailVerified,
		Roles:     toRoles(claims.Roles),
		UpdatedAt: s.nowFunc(),
	}, nil
}

func toRoles(roles []string) []RoleType {
	if len(roles) == 0 {
		return nil
	}
	out := make([]RoleType, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleType(r))
	}
	return out
}

// Resolver returns the profile for an account, consulting the local cache first.
type Resolver struct {
	repo   Repo
	source Source
	logger zerolog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(repo Repo, source Source, options ...ResolverOption) (*Resolver, error) {
	if repo == nil {
		return nil, errors.New("[users NewResolver] repo is required")
	}
	if source == nil {
		return nil, errors.New("[users NewResolver] source is required")
	}
	r := &Resolver{
		repo:   repo,
		source: source,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Resolve returns the cached profile for accountKey unless refresh is set or nothing is cached,
// in which case the profile is fetched with accessToken and cached. When a forced fetch fails
// the cached profile, if any, is returned instead.
func (r *Resolver) Resolve(ctx context.Context, accountKey, accessToken string, refresh bool) (User, error) {
	cached, cacheErr := r.repo.Get(ctx, accountKey)
	if cacheErr != nil && !errors.Is(cacheErr, autherrors.ErrNotFound) {
		r.logger.Warn().Err(cacheErr).Str("account", accountKey).Msg("reading profile cache")
	}
	hasCached := cacheErr == nil
	if hasCached && !refresh {
		return cached, nil
	}

	user, err := r.source.FetchUser(ctx, accessToken)
	if err != nil {
		if hasCached {
			r.logger.Warn().Err(err).Str("account", accountKey).Msg("profile fetch failed, using cached profile")
			return cached, nil
		}
		return User{}, err
	}

	if err := r.repo.Upsert(ctx, accountKey, user); err != nil {
		r.logger.Warn().Err(err).Str("account", accountKey).Msg("caching profile")
	}
	return user, nil
}

// Forget drops the cached profile for accountKey.
func (r *Resolver) Forget(ctx context.Context, accountKey string) error {
	if err := r.repo.Delete(ctx, accountKey); err != nil && !errors.Is(err, autherrors.ErrNotFound) {
		return err
	}
	return nil
}
