package config

import (
	"net/url"
	"time"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetTokenURL() string
	GetAuthURL() string
	GetRevokeURL() string
	GetIssuerURL() string
	GetUserInfoURL() string
	GetScopes() []string
	GetAccountType() string
	GetTokenType() string
	GetRequestTimeout() time.Duration
}

type OAuth struct {
	ClientID       string        `env:"OAUTH_CLIENT_ID"`
	ClientSecret   string        `env:"OAUTH_CLIENT_SECRET"`
	TokenURL       string        `env:"OAUTH_TOKEN_URL"`
	AuthURL        string        `env:"OAUTH_AUTH_URL"`
	RevokeURL      string        `env:"OAUTH_REVOKE_URL"`
	IssuerURL      string        `env:"OAUTH_ISSUER_URL"`
	UserInfoURL    string        `env:"OAUTH_USERINFO_URL"`
	Scopes         []string      `env:"OAUTH_SCOPES"        envSeparator:"," envDefault:"openid,profile,email"`
	AccountType    string        `env:"ACCOUNT_TYPE"        envDefault:"com.example.auth"`
	TokenType      string        `env:"TOKEN_TYPE"          envDefault:"full_access"`
	RequestTimeout time.Duration `env:"HTTP_TIMEOUT"        envDefault:"30s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetTokenURL() string {
	return o.TokenURL
}

func (o OAuth) GetAuthURL() string {
	return o.AuthURL
}

// GetRevokeURL is the token revocation endpoint used on log out. Empty disables revocation.
func (o OAuth) GetRevokeURL() string {
	return o.RevokeURL
}

// GetIssuerURL is the OpenID Connect issuer, the origin of the token URL unless set.
func (o OAuth) GetIssuerURL() string {
	if o.IssuerURL != "" || o.TokenURL == "" {
		return o.IssuerURL
	}
	u, err := url.Parse(o.TokenURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// GetUserInfoURL is the OpenID Connect userinfo endpoint. When empty, profiles are read from token claims.
func (o OAuth) GetUserInfoURL() string {
	return o.UserInfoURL
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}

// GetAccountType namespaces credential store entries for this client.
func (o OAuth) GetAccountType() string {
	return o.AccountType
}

func (o OAuth) GetTokenType() string {
	return o.TokenType
}

// GetRequestTimeout bounds every HTTP request made to the auth service and the API.
func (o OAuth) GetRequestTimeout() time.Duration {
	return o.RequestTimeout
}
