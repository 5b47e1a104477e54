package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadPassword is returned when a password does not match its hash.
var ErrBadPassword = errors.New("bad password")

// HashPassword returns the bcrypt hash of password for the
// admin_password_hash setting.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func CheckPassword(hash, password string) error {
	if hash == "" {
		return ErrBadPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadPassword
	}
	return nil
}
