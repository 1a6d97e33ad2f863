// Package authservice is the client for the remote OAuth2 token endpoint.
package authservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config describes the remote token endpoint.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AuthURL      string
	RevokeURL    string // RFC 7009 endpoint; empty disables revocation
	Scopes       []string
	AuthStyle    oauth2.AuthStyle // defaults to oauth2.AuthStyleInParams
}

// Client exchanges credentials and refresh tokens for access tokens.
// Every error it returns is an *autherrors.Error: KindNetworkFailure for transport
// problems, otherwise a kind selected from the server's OAuth2 error code.
type Client struct {
	config     *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient sets the transport used for token requests. Timeouts belong here.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(cfg Config, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("[authservice New] token URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.TokenURL); err != nil {
		return nil, errors.Wrap(autherrors.ErrInvalidEndpoint, "[authservice New] token URL")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("[authservice New] client ID is required")
	}

	authStyle := cfg.AuthStyle
	if authStyle == oauth2.AuthStyleAutoDetect {
		authStyle = oauth2.AuthStyleInParams
	}

	c := &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: authStyle,
			},
		},
		revokeURL:  cfg.RevokeURL,
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Client) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// ExchangeCredentialsForToken runs the resource owner password grant.
func (c *Client) ExchangeCredentialsForToken(ctx context.Context, username, password string) (*oauth2.Token, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, &autherrors.Error{
			Kind:        autherrors.KindInvalidRequest,
			Description: "username and password are required",
		}
	}
	tok, err := c.config.PasswordCredentialsToken(c.context(ctx), username, password)
	if err != nil {
		mapped := mapError(err)
		c.logger.Info().Err(mapped).Str("username", username).Msg("credential exchange failed")
		return nil, mapped
	}
	return tok, nil
}

// RefreshToken runs the refresh_token grant. If the server does not rotate the refresh
// token the returned token carries the one that was sent.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, &autherrors.Error{
			Kind:        autherrors.KindInvalidRequest,
			Description: "refresh token is required",
		}
	}
	src := c.config.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapError(err)
	}
	return tok, nil
}

// RevokeToken asks the server to revoke token. It does nothing when no revocation
// endpoint is configured. Revoking an unknown token is not an error on the server side.
func (c *Client) RevokeToken(ctx context.Context, token, tokenTypeHint string) error {
	if c.revokeURL == "" || token == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", token)
	if tokenTypeHint != "" {
		form.Set("token_type_hint", tokenTypeHint)
	}
	form.Set("client_id", c.config.ClientID)
	if c.config.ClientSecret != "" {
		form.Set("client_secret", c.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "Client.RevokeToken")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var e errorBody
	_ = json.Unmarshal(body, &e)
	return autherrors.ServerError(e.Code, e.Description, e.hint(), fmt.Errorf("revoke: %s", resp.Status))
}

type errorBody struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Hint        string `json:"hint"`
	Message     string `json:"message"`
}

func (b errorBody) hint() string {
	if b.Hint != "" {
		return b.Hint
	}
	return b.Message
}

func mapError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		var body errorBody
		_ = json.Unmarshal(retrieveErr.Body, &body)
		return autherrors.ServerError(retrieveErr.ErrorCode, retrieveErr.ErrorDescription, body.hint(), retrieveErr)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return autherrors.NetworkFailure(err)
	}

	// e.g. a 200 response without an access_token
	return &autherrors.Error{Kind: autherrors.KindUnknown, Cause: err}
}
