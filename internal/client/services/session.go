// Package services holds the client-side adapters: the session adapter in
// front of the Identity Service and the event adapter in front of the
// Document/File Store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secnexus/internal/client/identity"
	"github.com/dmitrijs2005/secnexus/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/dbx"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// IdentityClient is the Identity Service surface the session adapter uses.
type IdentityClient interface {
	SignUp(ctx context.Context, email, password string) (*identity.Credential, error)
	SignIn(ctx context.Context, email, password string) (*identity.Credential, error)
	SignInWithIdp(ctx context.Context, providerID string, tok identity.ProviderToken) (*identity.Credential, error)
	Lookup(ctx context.Context, idToken string) (*models.User, error)
	SendPasswordReset(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, idToken, displayName string) error
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
}

// ProviderAuthorizer runs an interactive third-party sign-in.
type ProviderAuthorizer interface {
	Authorize(ctx context.Context) (identity.ProviderToken, error)
}

// SessionService keeps the signed-in user and tokens in the local database
// and publishes every auth-state change.
type SessionService struct {
	idp      IdentityClient
	provider ProviderAuthorizer
	db       *sql.DB
	log      logging.Logger
	hub      *authHub
	now      func() time.Time
}

// NewSessionService wires the adapter. provider may be nil when no
// third-party sign-in is configured.
func NewSessionService(idp IdentityClient, provider ProviderAuthorizer, db *sql.DB, log logging.Logger) *SessionService {
	return &SessionService{
		idp:      idp,
		provider: provider,
		db:       db,
		log:      log.With("module", "session"),
		hub:      newAuthHub(),
		now:      time.Now,
	}
}

func (s *SessionService) repo() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// Ready reports whether the Identity Service client is available.
func (s *SessionService) Ready() bool {
	return s != nil && s.idp != nil
}

// Subscribe returns a channel of auth-state changes and its cancel function.
// The channel first yields the latest known state, if any.
func (s *SessionService) Subscribe() (<-chan AuthState, func()) {
	return s.hub.subscribe()
}

// SignUp creates an account and signs it in.
func (s *SessionService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	cred, err := s.idp.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, cred.User, cred.Session); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account created", "user_id", cred.User.ID)
	return &cred.User, nil
}

// SignIn authenticates with email and password.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	cred, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, cred.User, cred.Session); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "signed in", "user_id", cred.User.ID)
	return &cred.User, nil
}

// SignInWithProvider runs the Google sign-in flow.
func (s *SessionService) SignInWithProvider(ctx context.Context) (*models.User, error) {
	if s.provider == nil {
		return nil, &common.AuthError{Code: common.AuthOperationNotAllowed, Message: "google sign-in is not configured"}
	}
	tok, err := s.provider.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := s.idp.SignInWithIdp(ctx, identity.GoogleProviderID, tok)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, cred.User, cred.Session); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "signed in with provider", "user_id", cred.User.ID, "provider", identity.GoogleProviderID)
	return &cred.User, nil
}

// SignOut drops the local session and snapshot. It never returns an error;
// false means the local state could not be cleared.
func (s *SessionService) SignOut(ctx context.Context) bool {
	if err := s.repo().Delete(ctx, common.SessionKey, common.UserInfoKey); err != nil {
		s.log.Error(ctx, "sign out failed", "error", err)
		return false
	}
	s.hub.publish(nil, s.now())
	return true
}

// CurrentUser resolves the signed-in user against the Identity Service. It
// returns (nil, nil) and clears the snapshot when nobody is signed in or the
// session is no longer valid.
func (s *SessionService) CurrentUser(ctx context.Context) (*models.User, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoSession) || isSessionRevoked(err) {
			s.clear(ctx)
			return nil, nil
		}
		return nil, err
	}

	u, err := s.idp.Lookup(ctx, sess.IDToken)
	if err != nil {
		if isSessionRevoked(err) {
			s.clear(ctx)
			return nil, nil
		}
		return nil, err
	}

	if err := metadata.SetJSON(ctx, s.repo(), common.UserInfoKey, u); err != nil {
		return nil, err
	}
	s.hub.publish(u, s.now())
	return u, nil
}

// Snapshot returns the persisted user snapshot without contacting the
// Identity Service, or nil when there is none.
func (s *SessionService) Snapshot(ctx context.Context) (*models.User, error) {
	var u models.User
	ok, err := metadata.GetJSON(ctx, s.repo(), common.UserInfoKey, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// Session returns valid tokens, refreshing them when they expired.
// common.ErrNoSession means nobody is signed in.
func (s *SessionService) Session(ctx context.Context) (*models.Session, error) {
	var sess models.Session
	ok, err := metadata.GetJSON(ctx, s.repo(), common.SessionKey, &sess)
	if err != nil {
		return nil, err
	}
	if !ok || sess.RefreshToken == "" {
		return nil, common.ErrNoSession
	}
	if !sess.Expired(s.now()) {
		return &sess, nil
	}

	fresh, err := s.idp.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if fresh.UserID == "" {
		fresh.UserID = sess.UserID
	}
	if err := metadata.SetJSON(ctx, s.repo(), common.SessionKey, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// RequestPasswordReset asks the Identity Service to mail a reset link.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.idp.SendPasswordReset(ctx, email); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset requested")
	return nil
}

// UpdateDisplayName stores name on the account and in the snapshot.
func (s *SessionService) UpdateDisplayName(ctx context.Context, name string) error {
	sess, err := s.Session(ctx)
	if err != nil {
		return err
	}
	if err := s.idp.UpdateProfile(ctx, sess.IDToken, name); err != nil {
		return err
	}

	u, err := s.Snapshot(ctx)
	if err != nil || u == nil {
		return err
	}
	u.Name = name
	u.UpdatedAt = s.now()
	if err := metadata.SetJSON(ctx, s.repo(), common.UserInfoKey, u); err != nil {
		return err
	}
	s.hub.publish(u, s.now())
	return nil
}

// persist writes the snapshot and the tokens in one transaction, then
// notifies subscribers.
func (s *SessionService) persist(ctx context.Context, u models.User, sess models.Session) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := metadata.SetJSON(ctx, repo, common.UserInfoKey, u); err != nil {
			return err
		}
		return metadata.SetJSON(ctx, repo, common.SessionKey, sess)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.hub.publish(&u, s.now())
	return nil
}

func (s *SessionService) clear(ctx context.Context) {
	if err := s.repo().Delete(ctx, common.SessionKey, common.UserInfoKey); err != nil {
		s.log.Warn(ctx, "cannot clear session", "error", err)
	}
	s.hub.publish(nil, s.now())
}

func isSessionRevoked(err error) bool {
	var ae *common.AuthError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code {
	case common.AuthInvalidUserToken, common.AuthUserTokenExpired, common.AuthUserNotFound, common.AuthUserDisabled:
		return true
	}
	return false
}
