package transport

import (
	"net/http"
	"regexp"
	"strings"
)

const (
	// AuthorizationHeader is the header request builders put the placeholder in.
	AuthorizationHeader = "Authorization"
	// AccessTokenPlaceholder is replaced with the live access token on every request.
	AccessTokenPlaceholder = "{{access_token}}"
)

var placeholderPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(AccessTokenPlaceholder))

// BearerPlaceholder is the header value request builders set when a call needs the session token.
func BearerPlaceholder() string {
	return "Bearer " + AccessTokenPlaceholder
}

// TokenProvider returns the latest resolved access token, or "" when there is none.
// It must not block on a session acquisition.
type TokenProvider interface {
	AccessToken() string
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func() string

func (f TokenProviderFunc) AccessToken() string {
	return f()
}

// Authorization substitutes the access token placeholder in the Authorization header.
// Requests whose header does not contain the placeholder are forwarded untouched.
func Authorization(tokens TokenProvider) Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			values := req.Header.Values(AuthorizationHeader)
			if !containsPlaceholder(values) {
				return next.RoundTrip(req)
			}

			token := tokens.AccessToken()
			out := req.Clone(req.Context())
			out.Header.Del(AuthorizationHeader)
			for _, v := range values {
				out.Header.Add(AuthorizationHeader, placeholderPattern.ReplaceAllLiteralString(v, token))
			}
			return next.RoundTrip(out)
		})
	}
}

func containsPlaceholder(values []string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), AccessTokenPlaceholder) {
			return true
		}
	}
	return false
}
