package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/client/identity"
	"github.com/dmitrijs2005/secnexus/internal/client/localdb"
	"github.com/dmitrijs2005/secnexus/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// fakeIdentity keeps accounts in memory.
type fakeIdentity struct {
	accounts map[string]string // email -> password
	ids      map[string]string // email -> uid

	SignUpCalls int
	SignInCalls int
	LookupErr   error
	RefreshErr  error
	RefreshN    int
	ResetErr    error
	LastReset   string
	LastName    string
	IdpToken    identity.ProviderToken
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]string{}, ids: map[string]string{}}
}

func (f *fakeIdentity) cred(email string) *identity.Credential {
	uid := f.ids[email]
	return &identity.Credential{
		User:    models.User{ID: uid, Email: email, CreatedAt: testNow, UpdatedAt: testNow},
		Session: models.Session{UserID: uid, IDToken: "id-" + uid, RefreshToken: "r-" + uid, ExpiresAt: testNow.Add(time.Hour)},
	}
}

func (f *fakeIdentity) SignUp(_ context.Context, email, password string) (*identity.Credential, error) {
	f.SignUpCalls++
	if _, ok := f.accounts[email]; ok {
		return nil, &common.AuthError{Code: common.AuthEmailAlreadyInUse}
	}
	if len(password) < 6 {
		return nil, &common.AuthError{Code: common.AuthWeakPassword}
	}
	f.accounts[email] = password
	f.ids[email] = "uid-" + email
	return f.cred(email), nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (*identity.Credential, error) {
	f.SignInCalls++
	pw, ok := f.accounts[email]
	if !ok {
		return nil, &common.AuthError{Code: common.AuthUserNotFound}
	}
	if pw != password {
		return nil, &common.AuthError{Code: common.AuthWrongPassword}
	}
	return f.cred(email), nil
}

func (f *fakeIdentity) SignInWithIdp(_ context.Context, providerID string, tok identity.ProviderToken) (*identity.Credential, error) {
	f.IdpToken = tok
	f.ids["g@x.y"] = "uid-google"
	return f.cred("g@x.y"), nil
}

func (f *fakeIdentity) Lookup(_ context.Context, idToken string) (*models.User, error) {
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	for email, uid := range f.ids {
		if "id-"+uid == idToken {
			return &models.User{ID: uid, Email: email, Name: f.LastName}, nil
		}
	}
	return nil, &common.AuthError{Code: common.AuthInvalidUserToken}
}

func (f *fakeIdentity) SendPasswordReset(_ context.Context, email string) error {
	f.LastReset = email
	return f.ResetErr
}

func (f *fakeIdentity) UpdateProfile(_ context.Context, _ string, name string) error {
	f.LastName = name
	return nil
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (*models.Session, error) {
	f.RefreshN++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	return &models.Session{IDToken: "id-" + refreshToken[2:], RefreshToken: refreshToken, ExpiresAt: testNow.Add(2 * time.Hour)}, nil
}

type fakeProvider struct {
	tok identity.ProviderToken
	err error
}

func (p fakeProvider) Authorize(context.Context) (identity.ProviderToken, error) { return p.tok, p.err }

func newSvc(t *testing.T, idp IdentityClient, p ProviderAuthorizer) (*SessionService, *sql.DB) {
	t.Helper()
	db := setupDB(t)
	s := NewSessionService(idp, p, db, logging.Nop{})
	s.now = func() time.Time { return testNow }
	return s, db
}

// ---- tests ----

func TestSignUpThenSignIn(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()

	u, err := s.SignUp(ctx, "ann@sec.edu.in", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@sec.edu.in", u.Email)

	require.True(t, s.SignOut(ctx))

	u, err = s.SignIn(ctx, "ann@sec.edu.in", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@sec.edu.in", u.Email)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, u.ID, snap.ID)
}

func TestSignIn_UnknownUser(t *testing.T) {
	s, _ := newSvc(t, newFakeIdentity(), nil)

	_, err := s.SignIn(context.Background(), "ghost@sec.edu.in", "pw")
	var ae *common.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, common.AuthUserNotFound, ae.Code)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSignOut_ClearsSnapshotAndNotifies(t *testing.T) {
	idp := newFakeIdentity()
	s, db := newSvc(t, idp, nil)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	ch, cancel := s.Subscribe()
	defer cancel()
	first := <-ch
	require.NotNil(t, first.User)

	assert.True(t, s.SignOut(ctx))
	st := <-ch
	assert.Nil(t, st.User)

	v, err := metadata.NewSQLiteRepository(db).Get(ctx, common.UserInfoKey)
	require.NoError(t, err)
	assert.Nil(t, v)

	// signing out twice is still fine
	assert.True(t, s.SignOut(ctx))
}

func TestSignOut_ReturnsFalseWhenStoreFails(t *testing.T) {
	s, db := newSvc(t, newFakeIdentity(), nil)
	require.NoError(t, db.Close())
	assert.False(t, s.SignOut(context.Background()))
}

func TestCurrentUser_NoSession(t *testing.T) {
	s, _ := newSvc(t, newFakeIdentity(), nil)
	u, err := s.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCurrentUser_RefreshesExpiredToken(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	s.now = func() time.Time { return testNow.Add(90 * time.Minute) }
	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, 1, idp.RefreshN)

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-a@b.c", sess.UserID)
	assert.Equal(t, 1, idp.RefreshN)
}

func TestCurrentUser_RevokedSessionClearsSnapshot(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	idp.LookupErr = &common.AuthError{Code: common.AuthUserDisabled}
	u, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCurrentUser_NetworkErrorKeepsSnapshot(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()

	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	idp.LookupErr = &common.AuthError{Code: common.AuthNetworkRequest}
	_, err = s.CurrentUser(ctx)
	require.Error(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestSignInWithProvider(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, fakeProvider{tok: identity.ProviderToken{IDToken: "gid"}})

	u, err := s.SignInWithProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uid-google", u.ID)
	assert.Equal(t, "gid", idp.IdpToken.IDToken)
}

func TestSignInWithProvider_Errors(t *testing.T) {
	s, _ := newSvc(t, newFakeIdentity(), nil)
	_, err := s.SignInWithProvider(context.Background())
	var ae *common.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, common.AuthOperationNotAllowed, ae.Code)

	closed := &common.AuthError{Code: common.AuthPopupClosedByUser}
	s, _ = newSvc(t, newFakeIdentity(), fakeProvider{err: closed})
	_, err = s.SignInWithProvider(context.Background())
	assert.ErrorIs(t, err, closed)
}

func TestRequestPasswordReset(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)

	require.NoError(t, s.RequestPasswordReset(context.Background(), "a@b.c"))
	assert.Equal(t, "a@b.c", idp.LastReset)

	idp.ResetErr = &common.AuthError{Code: common.AuthInvalidEmail}
	assert.Error(t, s.RequestPasswordReset(context.Background(), "nope"))
}

func TestUpdateDisplayName(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()

	require.ErrorIs(t, s.UpdateDisplayName(ctx, "Ann"), common.ErrNoSession)

	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)
	require.NoError(t, s.UpdateDisplayName(ctx, "Ann"))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", snap.Name)
	assert.Equal(t, "Ann", idp.LastName)
}

func TestSession_RefreshFailure(t *testing.T) {
	idp := newFakeIdentity()
	s, _ := newSvc(t, idp, nil)
	ctx := context.Background()
	_, err := s.SignUp(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	s.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	idp.RefreshErr = errors.New("boom")
	_, err = s.Session(ctx)
	assert.ErrorContains(t, err, "refresh session")
}

func TestReady(t *testing.T) {
	var nilSvc *SessionService
	assert.False(t, nilSvc.Ready())

	s, _ := newSvc(t, nil, nil)
	assert.False(t, s.Ready())

	s, _ = newSvc(t, newFakeIdentity(), nil)
	assert.True(t, s.Ready())
}

func TestHub_LatestStateOnly(t *testing.T) {
	h := newAuthHub()
	ch, cancel := h.subscribe()
	h.publish(&models.User{ID: "1"}, testNow)
	h.publish(&models.User{ID: "2"}, testNow)

	st := <-ch
	assert.Equal(t, "2", st.User.ID)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}
