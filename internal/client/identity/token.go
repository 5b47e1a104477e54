package identity

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads the exp claim of an ID token without verifying it (the
// service already did). When the token carries no usable claim the service's
// expiresIn seconds are used, and one hour as a last resort.
func tokenExpiry(idToken string, now time.Time, expiresIn string) time.Time {
	if idToken != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil {
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
				return exp.Time
			}
		}
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		return now.Add(time.Duration(secs) * time.Second)
	}
	return now.Add(time.Hour)
}
