// Package identity is the client of the remote Identity Service (the
// Firebase Authentication REST surface). It turns service answers into
// models.User / models.Session values and service failures into
// *common.AuthError values carrying stable codes.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

const (
	DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"
)

// Config addresses one Firebase project.
type Config struct {
	APIKey string
	// Endpoints default to the hosted service; point them at the emulator
	// (http://localhost:9099/identitytoolkit.googleapis.com/v1, ...) for local runs.
	IdentityEndpoint string
	TokenEndpoint    string
	HTTPClient       *http.Client
}

// Credential is the outcome of a successful sign-in or sign-up.
type Credential struct {
	User    models.User
	Session models.Session
}

// Client calls the Identity Service.
type Client struct {
	apiKey   string
	identity string
	token    string
	hc       *http.Client
	now      func() time.Time
}

func NewClient(cfg Config) *Client {
	c := &Client{
		apiKey:   cfg.APIKey,
		identity: strings.TrimRight(cfg.IdentityEndpoint, "/"),
		token:    strings.TrimRight(cfg.TokenEndpoint, "/"),
		hc:       cfg.HTTPClient,
		now:      time.Now,
	}
	if c.identity == "" {
		c.identity = DefaultIdentityEndpoint
	}
	if c.token == "" {
		c.token = DefaultTokenEndpoint
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 20 * time.Second}
	}
	return c
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (c *Client) credential(r signInResponse) *Credential {
	now := c.now()
	return &Credential{
		User: models.User{
			ID:        r.LocalID,
			Name:      r.DisplayName,
			Email:     r.Email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Session: models.Session{
			UserID:       r.LocalID,
			IDToken:      r.IDToken,
			RefreshToken: r.RefreshToken,
			ExpiresAt:    tokenExpiry(r.IDToken, now, r.ExpiresIn),
		},
	}
}

// SignUp creates an email/password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Credential, error) {
	var r signInResponse
	err := c.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &r)
	if err != nil {
		return nil, err
	}
	return c.credential(r), nil
}

// SignIn authenticates an email/password account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	var r signInResponse
	err := c.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &r)
	if err != nil {
		return nil, err
	}
	return c.credential(r), nil
}

// SignInWithIdp exchanges a provider credential (Google ID or access token)
// for a session.
func (c *Client) SignInWithIdp(ctx context.Context, providerID string, tok ProviderToken) (*Credential, error) {
	form := url.Values{}
	form.Set("providerId", providerID)
	if tok.IDToken != "" {
		form.Set("id_token", tok.IDToken)
	}
	if tok.AccessToken != "" {
		form.Set("access_token", tok.AccessToken)
	}
	var r signInResponse
	err := c.post(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":          form.Encode(),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	}, &r)
	if err != nil {
		return nil, err
	}
	return c.credential(r), nil
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Disabled    bool   `json:"disabled"`
		CreatedAt   string `json:"createdAt"`
		LastLoginAt string `json:"lastLoginAt"`
	} `json:"users"`
}

// Lookup returns the account the ID token belongs to.
func (c *Client) Lookup(ctx context.Context, idToken string) (*models.User, error) {
	var r lookupResponse
	if err := c.post(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &r); err != nil {
		return nil, err
	}
	if len(r.Users) == 0 {
		return nil, &common.AuthError{Code: common.AuthUserNotFound, Message: "no user for token"}
	}
	u := r.Users[0]
	if u.Disabled {
		return nil, &common.AuthError{Code: common.AuthUserDisabled}
	}
	return &models.User{
		ID:        u.LocalID,
		Name:      u.DisplayName,
		Email:     u.Email,
		CreatedAt: millis(u.CreatedAt),
		UpdatedAt: millis(u.LastLoginAt),
	}, nil
}

// SendPasswordReset asks the service to mail a reset link to email.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// UpdateProfile sets the display name of the account behind idToken.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	return c.post(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil)
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Refresh trades a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.token+"/token?key="+url.QueryEscape(c.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &common.AuthError{Code: common.AuthInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var r refreshResponse
	if err := c.send(req, &r); err != nil {
		return nil, err
	}
	return &models.Session{
		UserID:       r.UserID,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    tokenExpiry(r.IDToken, c.now(), r.ExpiresIn),
	}, nil
}

func (c *Client) post(ctx context.Context, method string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return &common.AuthError{Code: common.AuthInternal, Err: err}
	}
	u := c.identity + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return &common.AuthError{Code: common.AuthInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &common.AuthError{Code: common.AuthNetworkRequest, Message: "network error", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.AuthError{Code: common.AuthNetworkRequest, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		_ = json.Unmarshal(raw, &env)
		msg := env.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return MapError(msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &common.AuthError{Code: common.AuthInternal, Message: "malformed response", Err: err}
	}
	return nil
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
