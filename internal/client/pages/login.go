package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/secnexus/internal/models"
)

// Authenticator is the session adapter as seen by the login page.
type Authenticator interface {
	Ready() bool
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignInWithProvider(ctx context.Context) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
}

// LoginMode toggles between signing in and creating an account.
type LoginMode int

const (
	ModeSignIn LoginMode = iota
	ModeSignUp
)

// LoginState is the auth progress shown by the page.
type LoginState string

const (
	StateUnauthenticated LoginState = "unauthenticated"
	StateAuthenticating  LoginState = "authenticating"
	StateAuthenticated   LoginState = "authenticated"
	StateError           LoginState = "error"
)

// LoginPage handles sign-in, sign-up, Google sign-in and password reset.
type LoginPage struct {
	auth  Authenticator
	ready bool

	Email           string
	Password        string
	ConfirmPassword string

	Mode           LoginMode
	State          LoginState
	Loading        bool
	Error          string
	ResetEmailSent bool
	User           *models.User
}

func NewLoginPage(auth Authenticator) *LoginPage {
	return &LoginPage{auth: auth, State: StateUnauthenticated}
}

// Mount checks whether the Identity Service is ready. Until it is, every
// action only reports MsgServiceUnavailable.
func (p *LoginPage) Mount() bool {
	p.ready = p.auth != nil && p.auth.Ready()
	return p.ready
}

// ToggleMode switches between sign-in and sign-up and clears messages.
func (p *LoginPage) ToggleMode() {
	if p.Mode == ModeSignIn {
		p.Mode = ModeSignUp
	} else {
		p.Mode = ModeSignIn
	}
	p.Error = ""
	p.ResetEmailSent = false
}

func (p *LoginPage) guard() bool {
	if !p.ready {
		p.Error = MsgServiceUnavailable
		p.State = StateError
		return false
	}
	return true
}

// Submit signs in or signs up depending on Mode. It returns the route to
// navigate to and whether the action succeeded.
func (p *LoginPage) Submit(ctx context.Context) (Route, bool) {
	if p.Mode == ModeSignUp {
		return p.signUp(ctx)
	}
	return p.signIn(ctx)
}

func (p *LoginPage) signIn(ctx context.Context) (Route, bool) {
	if !p.guard() {
		return RouteLogin, false
	}
	p.begin()
	p.ResetEmailSent = false
	defer p.end()

	u, err := p.auth.SignIn(ctx, p.Email, p.Password)
	if err != nil {
		p.fail(SignInMessage(err))
		return RouteLogin, false
	}
	return p.succeed(u), true
}

func (p *LoginPage) signUp(ctx context.Context) (Route, bool) {
	if !p.guard() {
		return RouteLogin, false
	}
	if p.Password != p.ConfirmPassword {
		p.fail(MsgPasswordMismatch)
		return RouteLogin, false
	}
	p.begin()
	defer p.end()

	u, err := p.auth.SignUp(ctx, p.Email, p.Password)
	if err != nil {
		p.fail(SignUpMessage(err))
		return RouteLogin, false
	}
	return p.succeed(u), true
}

// GoogleSignIn signs in (or up) through Google.
func (p *LoginPage) GoogleSignIn(ctx context.Context) (Route, bool) {
	if !p.guard() {
		return RouteLogin, false
	}
	p.begin()
	p.ResetEmailSent = false
	defer p.end()

	u, err := p.auth.SignInWithProvider(ctx)
	if err != nil {
		p.fail(MsgGoogleFailed)
		return RouteLogin, false
	}
	return p.succeed(u), true
}

// ForgotPassword mails a reset link to Email.
func (p *LoginPage) ForgotPassword(ctx context.Context) bool {
	if !p.guard() {
		return false
	}
	if p.Email == "" {
		p.Error = MsgResetNeedsEmail
		return false
	}
	p.Error = ""
	p.Loading = true
	defer p.end()

	if err := p.auth.RequestPasswordReset(ctx, p.Email); err != nil {
		p.Error = MsgResetFailed
		return false
	}
	p.ResetEmailSent = true
	return true
}

func (p *LoginPage) begin() {
	p.Error = ""
	p.Loading = true
	p.State = StateAuthenticating
}

func (p *LoginPage) end() { p.Loading = false }

func (p *LoginPage) fail(msg string) {
	p.Error = msg
	p.State = StateError
}

func (p *LoginPage) succeed(u *models.User) Route {
	p.User = u
	p.State = StateAuthenticated
	return RouteHome
}

// Render prints the current state of the page.
func (p *LoginPage) Render(w io.Writer) {
	if !p.ready {
		fmt.Fprintln(w, "Loading...")
		if p.Error != "" {
			fmt.Fprintln(w, p.Error)
		}
		return
	}

	if p.Mode == ModeSignUp {
		heading(w, "Create your account")
		fmt.Fprintln(w, "Join us today! Create your account")
	} else {
		heading(w, "Sign in to your account")
		fmt.Fprintln(w, "Welcome back! Please enter your credentials")
	}

	if p.Error != "" {
		fmt.Fprintf(w, "! %s\n", p.Error)
	}
	if p.ResetEmailSent {
		fmt.Fprintln(w, MsgResetSent)
	}
	if p.State == StateAuthenticated && p.User != nil {
		fmt.Fprintf(w, "Signed in as %s\n", p.User.Email)
	}
}

// SubmitLabel is the text of the submit action for the current state.
func (p *LoginPage) SubmitLabel() string {
	switch {
	case p.Loading && p.Mode == ModeSignUp:
		return "Creating account..."
	case p.Loading:
		return "Signing in..."
	case p.Mode == ModeSignUp:
		return "Create account"
	default:
		return "Sign in"
	}
}
