package models

import (
	"errors"
	"strings"
)

// ErrMissingCredential is returned when no bearer token was supplied by flag, env, config or file
var ErrMissingCredential = errors.New("missing credential: provide a token with -t or a token file with -f")

// Credential is the opaque bearer token replayed into page storage.
// It is loaded once at startup and never mutated.
type Credential struct {
	Token  string `json:"-"`
	Source string `json:"source"`            // "token" or "file:<path>"
	UserID string `json:"user_id,omitempty"` // Decoded from the token payload for logging only
}

// NewCredential trims the raw token and rejects an empty value
func NewCredential(token, source string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, ErrMissingCredential
	}
	return Credential{Token: token, Source: source}, nil
}

// IsZero reports whether the credential carries no token
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// Masked returns a short, log-safe rendering of the token
func (c Credential) Masked() string {
	if len(c.Token) <= 12 {
		return "****"
	}
	return c.Token[:6] + "..." + c.Token[len(c.Token)-4:]
}
