// Package credentials defines the durable account credential store consumed by the token lifecycle.
//
// A store keeps, per account, an access token per token type, a single refresh token and
// free-form user data. Absent values are reported as an empty string with a nil error.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// DefaultTokenType is the token type requested when none is configured.
const DefaultTokenType = "full_access"

// User data keys written on login.
const (
	UserDataUsername = "username"
	UserDataEmail    = "email"
)

// Account identifies a credential store entry. Name and Type together are the identity.
type Account struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Key is the stable string identity of the account. Both parts are path escaped so
// separators inside a name or type cannot make two accounts share a key or key prefix.
func (a Account) Key() string {
	return url.PathEscape(a.Type) + "/" + url.PathEscape(a.Name)
}

func (a Account) IsZero() bool {
	return a.Name == "" && a.Type == ""
}

// Store is the platform credential store.
type Store interface {
	// PeekAccessToken returns the cached access token without triggering any refresh.
	PeekAccessToken(ctx context.Context, account Account, tokenType string) (string, error)

	// SetAccessToken caches an access token. An empty value clears it.
	SetAccessToken(ctx context.Context, account Account, tokenType, value string) error

	// GetRefreshToken returns the stored refresh token.
	GetRefreshToken(ctx context.Context, account Account) (string, error)

	// SetRefreshToken stores the refresh token. An empty value clears it.
	SetRefreshToken(ctx context.Context, account Account, value string) error

	// GetUserData returns account metadata stored under key.
	GetUserData(ctx context.Context, account Account, key string) (string, error)

	// SetUserData stores account metadata under key.
	SetUserData(ctx context.Context, account Account, key, value string) error

	// RemoveAccount deletes every token and all user data held for the account.
	RemoveAccount(ctx context.Context, account Account) error
}

// Fingerprint returns a short digest safe to log in place of a token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:6])
}
