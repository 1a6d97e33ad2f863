// Package transport holds the request pipeline stages shared by every outgoing API call.
package transport

import (
	"net/http"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Interceptor is a pipeline stage: it may rewrite the request, forwards it to next and
// returns next's response. Errors from next are returned unmodified.
type Interceptor func(next http.RoundTripper) http.RoundTripper

// Chain wraps base with interceptors. The first interceptor sees the request first.
func Chain(base http.RoundTripper, interceptors ...Interceptor) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		rt = interceptors[i](rt)
	}
	return rt
}

// NewClient returns an http.Client whose transport runs interceptors in order before base.
func NewClient(base http.RoundTripper, interceptors ...Interceptor) *http.Client {
	return &http.Client{Transport: Chain(base, interceptors...)}
}
