// Package identity declares the boundary to the external identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Novip1906/taskmaster/internal/models"
)

// Provider error codes. They follow the codes the hosted provider reports so
// callers can categorize failures without knowing the transport.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeNetwork           = "auth/network-request-failed"
	CodeInternal          = "auth/internal-error"
)

type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, user *models.Identity, name string) error

	// OnAuthStateChange registers fn for auth state notifications. fn receives
	// nil when no user is signed in. Notifications are delivered one at a time
	// in the order the provider emits them.
	OnAuthStateChange(fn func(*models.Identity)) (unsubscribe func())
}

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Code extracts the provider error code, or "" when err carries none.
func Code(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
