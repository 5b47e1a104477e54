package identity

import (
	"strings"

	"github.com/dmitrijs2005/secnexus/internal/common"
)

var serviceCodes = map[string]string{
	"EMAIL_EXISTS":                   common.AuthEmailAlreadyInUse,
	"EMAIL_NOT_FOUND":                common.AuthUserNotFound,
	"USER_NOT_FOUND":                 common.AuthUserNotFound,
	"INVALID_PASSWORD":               common.AuthWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      common.AuthInvalidCredential,
	"USER_DISABLED":                  common.AuthUserDisabled,
	"INVALID_EMAIL":                  common.AuthInvalidEmail,
	"MISSING_EMAIL":                  common.AuthInvalidEmail,
	"WEAK_PASSWORD":                  common.AuthWeakPassword,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    common.AuthTooManyRequests,
	"OPERATION_NOT_ALLOWED":          common.AuthOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":        common.AuthOperationNotAllowed,
	"INVALID_ID_TOKEN":               common.AuthInvalidUserToken,
	"INVALID_REFRESH_TOKEN":          common.AuthInvalidUserToken,
	"TOKEN_EXPIRED":                  common.AuthUserTokenExpired,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": common.AuthUserTokenExpired,
}

// MapError converts a service error message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" into an
// *common.AuthError. Unknown messages keep their text under AuthInternal.
func MapError(message string) *common.AuthError {
	key, detail, _ := strings.Cut(message, ":")
	key, detail = strings.TrimSpace(key), strings.TrimSpace(detail)

	if code, ok := serviceCodes[key]; ok {
		return &common.AuthError{Code: code, Message: detail}
	}
	return &common.AuthError{Code: common.AuthInternal, Message: message}
}
