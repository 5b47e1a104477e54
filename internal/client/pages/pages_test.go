package pages

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

type fakeAuth struct {
	ready       bool
	signInErr   error
	signUpErr   error
	googleErr   error
	resetErr    error
	signInCalls int
	signUpCalls int
	resetEmail  string
}

func (f *fakeAuth) Ready() bool { return f.ready }

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (*models.User, error) {
	f.signInCalls++
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &models.User{ID: "u1", Email: email}, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string) (*models.User, error) {
	f.signUpCalls++
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &models.User{ID: "u2", Email: email}, nil
}

func (f *fakeAuth) SignInWithProvider(context.Context) (*models.User, error) {
	if f.googleErr != nil {
		return nil, f.googleErr
	}
	return &models.User{ID: "g"}, nil
}

func (f *fakeAuth) RequestPasswordReset(_ context.Context, email string) error {
	f.resetEmail = email
	return f.resetErr
}

func mounted(a *fakeAuth) *LoginPage {
	a.ready = true
	p := NewLoginPage(a)
	p.Mount()
	return p
}

func authErr(code string) error { return &common.AuthError{Code: code} }

func TestLogin_NotReady(t *testing.T) {
	a := &fakeAuth{}
	p := NewLoginPage(a)
	assert.False(t, p.Mount())

	_, ok := p.Submit(context.Background())
	assert.False(t, ok)
	assert.Equal(t, MsgServiceUnavailable, p.Error)
	assert.Equal(t, StateError, p.State)
	assert.Zero(t, a.signInCalls)

	assert.False(t, p.ForgotPassword(context.Background()))
	_, ok = p.GoogleSignIn(context.Background())
	assert.False(t, ok)

	var out bytes.Buffer
	p.Render(&out)
	assert.Contains(t, out.String(), "Loading...")
}

func TestLogin_SignInSuccess(t *testing.T) {
	p := mounted(&fakeAuth{})
	p.Email, p.Password = "a@b.c", "pw"

	route, ok := p.Submit(context.Background())
	require.True(t, ok)
	assert.Equal(t, RouteHome, route)
	assert.Equal(t, StateAuthenticated, p.State)
	assert.False(t, p.Loading)
	assert.Empty(t, p.Error)
}

func TestLogin_SignInMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{authErr(common.AuthInvalidEmail), "Invalid email address."},
		{authErr(common.AuthUserDisabled), "This account has been disabled."},
		{authErr(common.AuthUserNotFound), "No account found with this email."},
		{authErr(common.AuthWrongPassword), "Incorrect password."},
		{authErr(common.AuthTooManyRequests), "Too many failed attempts. Please try again later."},
		{&common.AuthError{Code: common.AuthInternal, Message: "QUOTA_EXCEEDED"}, "QUOTA_EXCEEDED"},
		{authErr(common.AuthInvalidCredential), MsgLoginFailed},
	}
	for _, c := range cases {
		p := mounted(&fakeAuth{signInErr: c.err})
		_, ok := p.Submit(context.Background())
		assert.False(t, ok)
		assert.Equal(t, c.want, p.Error)
		assert.Equal(t, StateError, p.State)
	}
}

func TestLogin_SignUpMismatchNeverCallsService(t *testing.T) {
	a := &fakeAuth{}
	p := mounted(a)
	p.ToggleMode()
	p.Email, p.Password, p.ConfirmPassword = "a@b.c", "secret1", "secret2"

	_, ok := p.Submit(context.Background())
	assert.False(t, ok)
	assert.Equal(t, MsgPasswordMismatch, p.Error)
	assert.Zero(t, a.signUpCalls)
}

func TestLogin_SignUpMessages(t *testing.T) {
	cases := map[string]string{
		common.AuthEmailAlreadyInUse:   "This email is already registered.",
		common.AuthInvalidEmail:        "Invalid email address.",
		common.AuthOperationNotAllowed: "Email/password accounts are not enabled.",
		common.AuthWeakPassword:        "Password is too weak.",
		common.AuthNetworkRequest:      MsgSignUpFailed,
	}
	for code, want := range cases {
		p := mounted(&fakeAuth{signUpErr: authErr(code)})
		p.ToggleMode()
		p.Password, p.ConfirmPassword = "x", "x"
		_, ok := p.Submit(context.Background())
		assert.False(t, ok)
		assert.Equal(t, want, p.Error, code)
	}
}

func TestLogin_SignUpSuccess(t *testing.T) {
	a := &fakeAuth{}
	p := mounted(a)
	p.ToggleMode()
	p.Email, p.Password, p.ConfirmPassword = "new@b.c", "secret1", "secret1"

	route, ok := p.Submit(context.Background())
	require.True(t, ok)
	assert.Equal(t, RouteHome, route)
	assert.Equal(t, 1, a.signUpCalls)
	assert.Equal(t, "new@b.c", p.User.Email)
}

func TestLogin_Google(t *testing.T) {
	p := mounted(&fakeAuth{googleErr: authErr(common.AuthPopupClosedByUser)})
	_, ok := p.GoogleSignIn(context.Background())
	assert.False(t, ok)
	assert.Equal(t, MsgGoogleFailed, p.Error)

	p = mounted(&fakeAuth{})
	route, ok := p.GoogleSignIn(context.Background())
	assert.True(t, ok)
	assert.Equal(t, RouteHome, route)
}

func TestLogin_ForgotPassword(t *testing.T) {
	a := &fakeAuth{}
	p := mounted(a)

	assert.False(t, p.ForgotPassword(context.Background()))
	assert.Equal(t, MsgResetNeedsEmail, p.Error)
	assert.Empty(t, a.resetEmail)

	p.Email = "a@b.c"
	assert.True(t, p.ForgotPassword(context.Background()))
	assert.True(t, p.ResetEmailSent)
	assert.Empty(t, p.Error)

	var out bytes.Buffer
	p.Render(&out)
	assert.Contains(t, out.String(), MsgResetSent)

	a.resetErr = errors.New("x")
	p.ResetEmailSent = false
	assert.False(t, p.ForgotPassword(context.Background()))
	assert.Equal(t, MsgResetFailed, p.Error)
}

func TestLogin_ToggleClearsMessages(t *testing.T) {
	p := mounted(&fakeAuth{})
	p.Error, p.ResetEmailSent = "x", true
	p.ToggleMode()
	assert.Equal(t, ModeSignUp, p.Mode)
	assert.Empty(t, p.Error)
	assert.False(t, p.ResetEmailSent)
	assert.Equal(t, "Create account", p.SubmitLabel())
	p.Loading = true
	assert.Equal(t, "Creating account...", p.SubmitLabel())
	p.ToggleMode()
	assert.Equal(t, "Signing in...", p.SubmitLabel())
}

type snap struct {
	u   *models.User
	err error
}

func (s snap) Snapshot(context.Context) (*models.User, error) { return s.u, s.err }

func TestHome_GetStarted(t *testing.T) {
	assert.Equal(t, RouteLanding, NewHomePage(snap{u: &models.User{ID: "u"}}).GetStarted(context.Background()))
	assert.Equal(t, RouteLogin, NewHomePage(snap{}).GetStarted(context.Background()))
	assert.Equal(t, RouteLogin, NewHomePage(snap{err: errors.New("db")}).GetStarted(context.Background()))

	var out bytes.Buffer
	NewHomePage(snap{}).Render(&out)
	assert.Contains(t, out.String(), "Welcome to SEC-NEXUS")
}

func TestStaticPages(t *testing.T) {
	var out bytes.Buffer
	ContactPage{}.Render(&out)
	assert.Contains(t, out.String(), "support@sec-nexus.edu.in")
	assert.Contains(t, out.String(), "+91 123 456 7890")
	assert.Contains(t, out.String(), "St. Edmund's College, Shillong")

	out.Reset()
	AboutPage{}.Render(&out)
	assert.Contains(t, out.String(), "SEC-NEXUS is a comprehensive event management platform designed specifically for St. Edmund's College.")
}

type fakeCreator struct {
	in       models.EventInput
	banner   models.Banner
	sponsors []models.Sponsor
	err      error
}

func (f *fakeCreator) CreateEvent(_ context.Context, in models.EventInput, b models.Banner, s []models.Sponsor) (string, error) {
	f.in, f.banner, f.sponsors = in, b, s
	if f.err != nil {
		return "", f.err
	}
	return common.SuccessMarker, nil
}

func stubOpen(t *testing.T, content string, err error) {
	t.Helper()
	orig := openFile
	t.Cleanup(func() { openFile = orig })
	openFile = func(string) (io.ReadCloser, int64, error) {
		if err != nil {
			return nil, 0, err
		}
		return io.NopCloser(strings.NewReader(content)), int64(len(content)), nil
	}
}

func TestEventForm_Submit(t *testing.T) {
	stubOpen(t, "png", nil)
	c := &fakeCreator{}
	p := NewEventFormPage(c)
	p.Input = models.EventInput{Name: "TechFest", Date: "2026-03-01"}
	p.BannerPath = "/tmp/poster.png"
	p.AddSponsor(" Acme ", "https://acme")

	route, ok := p.Submit(context.Background())
	require.True(t, ok)
	assert.Equal(t, RouteLanding, route)
	assert.Equal(t, "poster.png", c.banner.FileName)
	assert.Equal(t, "image/png", c.banner.ContentType)
	assert.EqualValues(t, 3, c.banner.Size)
	assert.Equal(t, []models.Sponsor{{Name: "Acme", URL: "https://acme"}}, c.sponsors)

	var out bytes.Buffer
	p.Render(&out)
	assert.Contains(t, out.String(), "Event created.")
}

func TestEventForm_Validation(t *testing.T) {
	p := NewEventFormPage(&fakeCreator{})
	_, ok := p.Submit(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "event name is required", p.Error)

	p.Input.Name, p.Input.Date = "x", "y"
	_, ok = p.Submit(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "banner image is required", p.Error)
}

func TestEventForm_SponsorFieldLength(t *testing.T) {
	c := &fakeCreator{}
	p := NewEventFormPage(c)
	p.Input = models.EventInput{Name: "x", Date: "y"}
	p.BannerPath = "b.png"

	p.AddSponsor(strings.Repeat("é", models.SponsorFieldMax), "https://acme")
	require.NoError(t, p.Validate(), "the limit counts characters, not bytes")

	p.AddSponsor(strings.Repeat("a", models.SponsorFieldMax+1), "https://b")
	_, ok := p.Submit(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "sponsor 2: name is longer than 50 characters", p.Error)
	assert.Nil(t, c.sponsors, "nothing is submitted")

	p.Sponsors[1] = models.Sponsor{Name: "b", URL: "https://" + strings.Repeat("u", models.SponsorFieldMax)}
	assert.EqualError(t, p.Validate(), "sponsor 2: url is longer than 50 characters")
}

func TestEventForm_Errors(t *testing.T) {
	stubOpen(t, "", errors.New("no such file"))
	p := NewEventFormPage(&fakeCreator{})
	p.Input = models.EventInput{Name: "x", Date: "y"}
	p.BannerPath = "missing.png"
	_, ok := p.Submit(context.Background())
	assert.False(t, ok)
	assert.Contains(t, p.Error, "no such file")

	stubOpen(t, "x", nil)
	p = NewEventFormPage(&fakeCreator{err: &common.DataError{RemoteError: common.RemoteError{Op: "create document", Status: 401}}})
	p.Input = models.EventInput{Name: "x", Date: "y"}
	p.BannerPath = "b.png"
	_, ok = p.Submit(context.Background())
	assert.False(t, ok)
	assert.Contains(t, p.Error, "data: create document")
}
