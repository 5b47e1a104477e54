// Package idgen generates identifiers for remote records and ledger jobs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// JobPrefix is prepended to every provisioning job id.
var JobPrefix = "job-"

// Alphabet is the character set for the random part of job ids.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length of the random part of job ids.
var Length = 12

// Unique returns a fresh identifier accepted by the document store for
// documents and files (at most 36 characters, [a-zA-Z0-9-]).
func Unique() string {
	return uuid.NewString()
}

// JobID returns a new provisioning job id.
func JobID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return JobPrefix + id, nil
}
