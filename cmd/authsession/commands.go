package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jrsteele09/go-auth-session/credentials"
	"github.com/jrsteele09/go-auth-session/internal/config"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/transport"
	"github.com/pkg/errors"
)

func loginCommand(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("AUTHSESSION_PASSWORD"), "account password (or AUTHSESSION_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		fs.Usage()
		return errors.New("username and password are required")
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.auth.Login(ctx, *username, *password); err != nil {
		return describe(err)
	}
	if err := a.rememberAccount(*username); err != nil {
		return err
	}

	st, err := waitSession(ctx, a.sessions.GetSession(ctx, true, false))
	if err != nil {
		return err
	}
	return printState(st)
}

func sessionCommand(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("session", flag.ContinueOnError)
	refresh := fs.Bool("refresh", false, "force a token refresh and profile reload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := waitSession(ctx, a.sessions.GetSession(ctx, false, *refresh))
	if err != nil {
		return err
	}
	return printState(st)
}

func logoutCommand(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	account := a.auth.Account()
	if account.Name == "" {
		fmt.Println("not logged in")
		return nil
	}

	// open silently so the manager holds the session it is asked to close
	if _, err := waitSession(ctx, a.sessions.GetSession(ctx, true, false)); err != nil {
		return err
	}
	closed, err := a.sessions.CloseSession(ctx, true)
	if err != nil {
		return err
	}
	if !closed {
		// the tokens no longer open a session; clear what is left of them
		if err := a.auth.Close(ctx, sessions.New(account, "", ""), true); err != nil {
			return err
		}
	}
	if err := a.rememberAccount(""); err != nil {
		return err
	}
	fmt.Printf("logged out %s\n", account.Name)
	return nil
}

func getCommand(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	target := fs.String("url", "", "URL to request")
	overrideOld := fs.String("override-old", "", "base URL fragment to redirect")
	overrideNew := fs.String("override-new", "", "base URL fragment to redirect to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *target == "" {
		fs.Usage()
		return errors.New("url is required")
	}

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	if *overrideOld != "" {
		if err := a.override.Override(*overrideOld, *overrideNew); err != nil {
			return err
		}
	}

	st, err := waitSession(ctx, a.sessions.GetSession(ctx, false, false))
	if err != nil {
		return err
	}
	if !st.IsSuccess() {
		return describe(st.Err())
	}

	resp, err := a.do(ctx, *target)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// the cached token was rejected; drop it, refresh once and retry
		resp.Body.Close()
		if err := a.tokens.Invalidate(ctx, a.auth.Account()); err != nil {
			return err
		}
		st, err := waitSession(ctx, a.sessions.GetSession(ctx, false, true))
		if err != nil {
			return err
		}
		if !st.IsSuccess() {
			return describe(st.Err())
		}
		if resp, err = a.do(ctx, *target); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	fmt.Fprintf(os.Stderr, "%s %s\n", resp.Proto, resp.Status)
	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}

func (a *app) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set(transport.AuthorizationHeader, transport.BearerPlaceholder())
	req.Header.Set("Accept", "application/json")
	resp, err := a.api.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", target)
	}
	return resp, nil
}

// waitSession reports progress on stderr until the acquisition finishes.
func waitSession(ctx context.Context, stream *sessions.Stream) (sessions.State, error) {
	stop := stream.Observe(func(st sessions.State) {
		if st.IsRunning() {
			fmt.Fprintf(os.Stderr, "... %s\n", st)
		}
	})
	defer stop()
	return stream.Wait(ctx)
}

type sessionView struct {
	Account   string    `json:"account"`
	Type      string    `json:"account_type"`
	User      string    `json:"user"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	Token     string    `json:"token_fingerprint"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
}

func printState(st sessions.State) error {
	session, ok := st.Result()
	if !ok {
		return describe(st.Err())
	}

	view := sessionView{
		Account:   session.Account.Name,
		Type:      session.Account.Type,
		User:      session.User.DisplayName(),
		UserID:    session.User.ID,
		Email:     session.User.Email,
		Token:     credentials.Fingerprint(session.AccessToken),
		ExpiresAt: session.ExpiresAt,
		Partial:   st.IsFailure(),
	}
	for _, r := range session.User.Roles {
		view.Roles = append(view.Roles, string(r))
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if st.IsFailure() {
		return describe(st.Err())
	}
	return nil
}

// describe turns a lifecycle failure into a message for the terminal.
func describe(err error) error {
	var authErr *autherrors.Error
	if !errors.As(err, &authErr) {
		if err == nil {
			return errors.New("unknown failure")
		}
		return err
	}
	switch {
	case authErr.Kind == autherrors.KindNetworkFailure:
		return fmt.Errorf("auth service unreachable, try again: %w", err)
	case authErr.Kind == autherrors.KindReauthenticationRequired:
		return fmt.Errorf("login required: %w", err)
	case authErr.Hint != "":
		return fmt.Errorf("%s (%s): %w", authErr.Kind, authErr.Hint, err)
	default:
		return err
	}
}
