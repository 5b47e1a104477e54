package pages

import (
	"errors"

	"github.com/dmitrijs2005/secnexus/internal/common"
)

// Fixed user-facing texts of the login page.
const (
	MsgServiceUnavailable = "Authentication service not available"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgLoginFailed        = "Login failed. Please try again."
	MsgSignUpFailed       = "Sign up failed. Please try again."
	MsgGoogleFailed       = "Google sign-in failed. Please try again."
	MsgResetNeedsEmail    = "Please enter your email address first."
	MsgResetFailed        = "Failed to send reset email. Please check your email address."
	MsgResetSent          = "Password reset email sent! Please check your inbox."
)

var signInMessages = map[string]string{
	common.AuthInvalidEmail:    "Invalid email address.",
	common.AuthUserDisabled:    "This account has been disabled.",
	common.AuthUserNotFound:    "No account found with this email.",
	common.AuthWrongPassword:   "Incorrect password.",
	common.AuthTooManyRequests: "Too many failed attempts. Please try again later.",
}

var signUpMessages = map[string]string{
	common.AuthEmailAlreadyInUse:   "This email is already registered.",
	common.AuthInvalidEmail:        "Invalid email address.",
	common.AuthOperationNotAllowed: "Email/password accounts are not enabled.",
	common.AuthWeakPassword:        "Password is too weak.",
}

// SignInMessage translates a sign-in failure. Unmapped failures show the
// service message, or the generic text when there is none.
func SignInMessage(err error) string {
	return translate(err, signInMessages, MsgLoginFailed)
}

// SignUpMessage translates a sign-up failure.
func SignUpMessage(err error) string {
	return translate(err, signUpMessages, MsgSignUpFailed)
}

func translate(err error, table map[string]string, fallback string) string {
	var ae *common.AuthError
	if errors.As(err, &ae) {
		if msg, ok := table[ae.Code]; ok {
			return msg
		}
		if ae.Message != "" {
			return ae.Message
		}
		return fallback
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
