package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/resource"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
)

// Session is the resolved identity and credentials of the current actor.
// Sessions are values: the With* methods return modified copies.
type Session struct {
	Account      credentials.Account // Credential store entry the session belongs to
	AccessToken  string              // Access token, possibly stale
	RefreshToken string              // Refresh token, empty when not read
	User         users.User          // Profile, users.PendingUser until resolved
	Subject      string              // Advisory "sub" claim of the access token
	ExpiresAt    time.Time           // Advisory "exp" claim of the access token
}

// New builds a session for account with a pending user.
// Claims are read from JWT access tokens when possible.
func New(account credentials.Account, accessToken, refreshToken string) Session {
	s := Session{
		Account:      account,
		RefreshToken: refreshToken,
		User:         users.PendingUser,
	}
	return s.WithTokens(accessToken, refreshToken)
}

// WithUser returns a copy of the session carrying user.
func (s Session) WithUser(user users.User) Session {
	s.User = user
	return s
}

// WithTokens returns a copy of the session carrying new tokens and their advisory claims.
func (s Session) WithTokens(accessToken, refreshToken string) Session {
	s.AccessToken = accessToken
	if refreshToken != "" {
		s.RefreshToken = refreshToken
	}
	s.Subject = ""
	s.ExpiresAt = time.Time{}
	if claims, err := token.ParseClaims(accessToken); err == nil {
		s.Subject = claims.Subject
		s.ExpiresAt = claims.ExpiresAt
	}
	return s
}

// Key is the identity of the session: one live session per key per process.
func (s Session) Key() string {
	return s.Account.Key()
}

// Progress is an advisory step reported while a session is being opened.
type Progress string

const (
	ProgressResolvingToken   Progress = "resolving token"
	ProgressRefreshingToken  Progress = "refreshing token"
	ProgressResolvingProfile Progress = "resolving profile"
)

// State is the lifecycle of a session acquisition.
type State = resource.State[Progress, Session]

// Stream is the observable sequence of acquisition states.
type Stream = resource.Stream[Progress, Session]

// OpenRequest controls one acquisition.
type OpenRequest struct {
	// Silent suppresses the interactive login signal on ReauthenticationRequired.
	Silent bool
	// Refresh forces re-acquisition even when a session is open.
	Refresh bool
	// Current is the session open when the acquisition started, if any.
	Current *Session
}

// Opener performs the work behind a session acquisition.
//
// Open must publish zero or more Running states followed by exactly one terminal state.
// It runs on its own goroutine; ctx is cancelled when the acquisition is superseded.
type Opener interface {
	Open(ctx context.Context, req OpenRequest, publish func(State))
	Close(ctx context.Context, session Session, logOut bool) error
}
