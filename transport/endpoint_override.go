package transport

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type endpoints struct {
	old string
	new string
}

// EndpointOverride redirects outgoing requests from one base URL fragment to another
// without restarting the process. Both fragments are swapped as one value, so a
// request never sees the old fragment of one override paired with the new fragment
// of another. A single handle is shared by every client that should follow it.
type EndpointOverride struct {
	current atomic.Pointer[endpoints]
	logger  zerolog.Logger
}

type EndpointOverrideOption func(*EndpointOverride)

func WithOverrideLogger(logger zerolog.Logger) EndpointOverrideOption {
	return func(o *EndpointOverride) {
		o.logger = logger
	}
}

func NewEndpointOverride(options ...EndpointOverrideOption) *EndpointOverride {
	o := &EndpointOverride{logger: log.Logger}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Override routes requests whose URL contains oldFragment to newFragment instead.
// newFragment is normalised through URL parsing; it must be absolute or empty.
func (o *EndpointOverride) Override(oldFragment, newFragment string) error {
	if oldFragment == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidEndpoint, "EndpointOverride.Override: empty fragment to replace")
	}
	normalized, err := normalizeEndpoint(newFragment)
	if err != nil {
		return err
	}
	o.current.Store(&endpoints{old: oldFragment, new: normalized})
	o.logger.Info().Str("old", oldFragment).Str("new", normalized).Msg("endpoint override set")
	return nil
}

// Clear restores original routing.
func (o *EndpointOverride) Clear() {
	if o.current.Swap(nil) != nil {
		o.logger.Info().Msg("endpoint override cleared")
	}
}

// Current returns the active override.
func (o *EndpointOverride) Current() (oldFragment, newFragment string, ok bool) {
	e := o.current.Load()
	if e == nil {
		return "", "", false
	}
	return e.old, e.new, true
}

// Interceptor rewrites the first occurrence of the old fragment in each request URL.
func (o *EndpointOverride) Interceptor() Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			e := o.current.Load()
			if e == nil || req.URL == nil {
				return next.RoundTrip(req)
			}
			raw := req.URL.String()
			if !strings.Contains(raw, e.old) {
				return next.RoundTrip(req)
			}
			rewritten, err := url.Parse(strings.Replace(raw, e.old, e.new, 1))
			if err != nil {
				o.logger.Warn().Err(err).Str("url", raw).Msg("endpoint override produced an invalid URL, sending original")
				return next.RoundTrip(req)
			}
			out := req.Clone(req.Context())
			out.URL = rewritten
			out.Host = ""
			return next.RoundTrip(out)
		})
	}
}

func normalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", autherrors.Wrapf(autherrors.ErrInvalidEndpoint, "EndpointOverride: %q: %v", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", autherrors.Wrapf(autherrors.ErrInvalidEndpoint, "EndpointOverride: %q is not absolute", endpoint)
	}
	return u.String(), nil
}
