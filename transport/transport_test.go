package transport_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the request that reaches the end of the chain.
type recorder struct {
	mu   sync.Mutex
	reqs []*http.Request
	err  error
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func (r *recorder) last() *http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

func staticToken(token string) transport.TokenProvider {
	return transport.TokenProviderFunc(func() string { return token })
}

func TestAuthorization(t *testing.T) {
	t.Run("substitutes placeholder case-insensitively", func(t *testing.T) {
		rec := &recorder{}
		rt := transport.Chain(rec, transport.Authorization(staticToken("live-token")))

		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil)
		req.Header.Set(transport.AuthorizationHeader, "Bearer {{ACCESS_TOKEN}}")

		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Equal(t, "Bearer live-token", rec.last().Header.Get(transport.AuthorizationHeader))
		require.Equal(t, "Bearer {{ACCESS_TOKEN}}", req.Header.Get(transport.AuthorizationHeader), "caller's request must not be mutated")
	})

	t.Run("empty token when no session", func(t *testing.T) {
		rec := &recorder{}
		rt := transport.Chain(rec, transport.Authorization(staticToken("")))

		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil)
		req.Header.Set(transport.AuthorizationHeader, transport.BearerPlaceholder())

		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Equal(t, "Bearer ", rec.last().Header.Get(transport.AuthorizationHeader))
	})

	t.Run("requests without placeholder pass through unmodified", func(t *testing.T) {
		rec := &recorder{}
		called := false
		rt := transport.Chain(rec, transport.Authorization(transport.TokenProviderFunc(func() string {
			called = true
			return "live-token"
		})))

		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil)
		req.Header.Set(transport.AuthorizationHeader, "Basic dXNlcjpwYXNz")
		req.Header.Set("X-Trace", "abc")

		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Same(t, req, rec.last())
		require.Equal(t, "Basic dXNlcjpwYXNz", rec.last().Header.Get(transport.AuthorizationHeader))
		require.False(t, called)

		noHeader := httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil)
		_, err = rt.RoundTrip(noHeader)
		require.NoError(t, err)
		require.Same(t, noHeader, rec.last())
	})

	t.Run("transport errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		rec := &recorder{err: boom}
		rt := transport.Chain(rec, transport.Authorization(staticToken("t")))

		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		req.Header.Set(transport.AuthorizationHeader, transport.BearerPlaceholder())
		_, err := rt.RoundTrip(req)
		require.ErrorIs(t, err, boom)
	})
}

func TestEndpointOverride(t *testing.T) {
	t.Run("override then clear", func(t *testing.T) {
		rec := &recorder{}
		override := transport.NewEndpointOverride()
		rt := transport.Chain(rec, override.Interceptor())

		require.NoError(t, override.Override("https://api.example.com", "https://staging.example.com"))

		_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil))
		require.NoError(t, err)
		require.Equal(t, "https://staging.example.com/v1/users", rec.last().URL.String())

		override.Clear()
		_, _, ok := override.Current()
		require.False(t, ok)

		_, err = rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/v1/users", nil))
		require.NoError(t, err)
		require.Equal(t, "https://api.example.com/v1/users", rec.last().URL.String())
	})

	t.Run("only the first occurrence is replaced", func(t *testing.T) {
		rec := &recorder{}
		override := transport.NewEndpointOverride()
		rt := transport.Chain(rec, override.Interceptor())
		require.NoError(t, override.Override("https://api.example.com", "https://staging.example.com"))

		_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/proxy/https://api.example.com/x", nil))
		require.NoError(t, err)
		require.Equal(t, "https://staging.example.com/proxy/https://api.example.com/x", rec.last().URL.String())
		require.Equal(t, "staging.example.com", rec.last().URL.Host)
	})

	t.Run("non-matching urls untouched", func(t *testing.T) {
		rec := &recorder{}
		override := transport.NewEndpointOverride()
		rt := transport.Chain(rec, override.Interceptor())
		require.NoError(t, override.Override("https://api.example.com", "https://staging.example.com"))

		req := httptest.NewRequest(http.MethodGet, "https://other.example.com/v1", nil)
		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Same(t, req, rec.last())
	})

	t.Run("new fragment is normalised and validated", func(t *testing.T) {
		override := transport.NewEndpointOverride()
		require.NoError(t, override.Override("https://api.example.com", "  HTTPS://staging.example.com  "))
		old, newFragment, ok := override.Current()
		require.True(t, ok)
		require.Equal(t, "https://api.example.com", old)
		require.Equal(t, "https://staging.example.com", newFragment)

		require.ErrorIs(t, override.Override("https://api.example.com", "staging.example.com"), autherrors.ErrInvalidEndpoint)
		require.ErrorIs(t, override.Override("", "https://staging.example.com"), autherrors.ErrInvalidEndpoint)

		_, newFragment, _ = override.Current()
		require.Equal(t, "https://staging.example.com", newFragment, "failed override keeps previous value")
	})

	t.Run("concurrent readers and a writer", func(t *testing.T) {
		rec := &recorder{}
		override := transport.NewEndpointOverride()
		rt := transport.Chain(rec, override.Interceptor())

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://api.example.com/v1", nil))
					assert.NoError(t, err)
				}
			}()
		}
		for j := 0; j < 100; j++ {
			require.NoError(t, override.Override("https://api.example.com", "https://staging.example.com"))
			override.Clear()
		}
		wg.Wait()

		for _, r := range rec.reqs {
			u := r.URL.String()
			require.Contains(t, []string{"https://api.example.com/v1", "https://staging.example.com/v1"}, u)
		}
	})
}

func TestChain_Order(t *testing.T) {
	rec := &recorder{}
	override := transport.NewEndpointOverride()
	require.NoError(t, override.Override("https://api.example.com", "https://staging.example.com"))

	client := transport.NewClient(rec, override.Interceptor(), transport.Authorization(staticToken("abc")))
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/me", nil)
	require.NoError(t, err)
	req.Header.Set(transport.AuthorizationHeader, transport.BearerPlaceholder())

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	got := rec.last()
	require.Equal(t, "https://staging.example.com/v1/me", got.URL.String())
	require.Equal(t, "Bearer abc", got.Header.Get(transport.AuthorizationHeader))
}
