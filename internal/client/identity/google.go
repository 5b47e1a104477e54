package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dmitrijs2005/secnexus/internal/common"
)

// GoogleProviderID is the Identity Service id of Google sign-in.
const GoogleProviderID = "google.com"

// ProviderToken is what a third-party provider hands back.
type ProviderToken struct {
	IDToken     string
	AccessToken string
}

// Test seams.
var (
	listenLoopback = func() (net.Listener, error) { return net.Listen("tcp", "127.0.0.1:0") }
	openBrowser    = defaultOpenBrowser
)

// GoogleProvider runs the OAuth2 authorization-code flow (with PKCE) against
// Google using a loopback redirect, the desktop equivalent of a sign-in popup.
type GoogleProvider struct {
	cfg     oauth2.Config
	timeout time.Duration
	out     io.Writer
}

func NewGoogleProvider(clientID, clientSecret string, timeout time.Duration, out io.Writer) *GoogleProvider {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GoogleProvider{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		timeout: timeout,
		out:     out,
	}
}

type callbackResult struct {
	code string
	err  error
}

// Authorize sends the user to Google and waits for the redirect. A closed or
// denied consent screen, or no answer before the timeout, yields
// auth/popup-closed-by-user; an unusable loopback or browser yields
// auth/popup-blocked.
func (g *GoogleProvider) Authorize(ctx context.Context) (ProviderToken, error) {
	ln, err := listenLoopback()
	if err != nil {
		return ProviderToken{}, &common.AuthError{Code: common.AuthPopupBlocked, Message: "cannot open loopback listener", Err: err}
	}
	defer ln.Close()

	cfg := g.cfg
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())
	state, err := common.MakeRandHexString(16)
	if err != nil {
		return ProviderToken{}, &common.AuthError{Code: common.AuthInternal, Message: "cannot generate state", Err: err}
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			var res callbackResult
			switch {
			case q.Get("state") != state:
				res.err = &common.AuthError{Code: common.AuthInternal, Message: "state mismatch"}
			case q.Get("error") != "":
				res.err = &common.AuthError{Code: common.AuthPopupClosedByUser, Message: q.Get("error")}
			case q.Get("code") == "":
				res.err = &common.AuthError{Code: common.AuthPopupClosedByUser, Message: "no authorization code"}
			default:
				res.code = q.Get("code")
			}
			if res.err != nil {
				fmt.Fprintln(w, "Sign-in was not completed. You can close this window.")
			} else {
				fmt.Fprintln(w, "Signed in. You can close this window and return to the terminal.")
			}
			select {
			case results <- res:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if g.out != nil {
		fmt.Fprintf(g.out, "Continue signing in with Google in your browser:\n%s\n", authURL)
	}
	if err := openBrowser(authURL); err != nil && g.out == nil {
		return ProviderToken{}, &common.AuthError{Code: common.AuthPopupBlocked, Message: "cannot open browser", Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ProviderToken{}, ctx.Err()
		}
		return ProviderToken{}, &common.AuthError{Code: common.AuthPopupClosedByUser, Message: "timed out waiting for sign-in"}
	}
	if res.err != nil {
		return ProviderToken{}, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return ProviderToken{}, &common.AuthError{Code: common.AuthInternal, Message: "code exchange failed", Err: err}
	}
	pt := ProviderToken{AccessToken: tok.AccessToken}
	if id, ok := tok.Extra("id_token").(string); ok {
		pt.IDToken = id
	}
	return pt, nil
}

func defaultOpenBrowser(u string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", u)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u)
	default:
		cmd = exec.Command("xdg-open", u)
	}
	return cmd.Start()
}
