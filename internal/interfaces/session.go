package interfaces

import (
	"context"
	"fmt"

	"github.com/ternarybob/akile-checkin/internal/models"
)

// Session is one live browser handle with the credential already in page storage
type Session interface {
	// FetchUserInfo runs the user info fetch inside the page and returns the decoded envelope
	FetchUserInfo(ctx context.Context) (*models.Envelope, error)

	// FetchCheckin runs the check-in fetch inside the page and returns the decoded envelope
	FetchCheckin(ctx context.Context) (*models.Envelope, error)

	// Close releases the browser process; safe to call more than once
	Close() error
}

// SessionDriver launches browser sessions bound to a credential
type SessionDriver interface {
	// Open launches a browser, navigates to the site root and injects the credential.
	// Failures are returned as *DriverInitError.
	Open(ctx context.Context, credential models.Credential) (Session, error)

	// Name identifies the automation engine
	Name() string
}

// DriverInitError reports a browser launch or credential injection failure.
// It is fatal to the run.
type DriverInitError struct {
	Engine string
	Stage  string // "launch", "user_agent", "navigate", "inject"
	Err    error
}

func (e *DriverInitError) Error() string {
	return fmt.Sprintf("%s driver init failed at %s: %v", e.Engine, e.Stage, e.Err)
}

func (e *DriverInitError) Unwrap() error {
	return e.Err
}
