// Package models defines the domain types shared by the SEC-NEXUS client
// and the provisioner.
package models

import "time"

// User is the read-only mirror of the identity record of the signed-in user.
// Its JSON form is the persisted session snapshot.
type User struct {
	ID        string    `json:"$id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"$createdAt"`
	UpdatedAt time.Time `json:"$updatedAt"`
}

// Session holds the tokens issued by the Identity Service.
type Session struct {
	UserID       string    `json:"user_id"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the ID token must be refreshed before use. A small
// margin avoids handing out a token that expires in flight.
func (s *Session) Expired(now time.Time) bool {
	return !now.Add(30 * time.Second).Before(s.ExpiresAt)
}
