package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		err   error
		title string
		desc  string
	}{
		{"sign in wrong password", OpSignIn, ErrInvalidCredential, "Login Failed", "Invalid email or password."},
		{"sign in unknown", OpSignIn, ErrUnknown, "Login Failed", "An unknown error occurred. Please try again."},
		{"sign up email in use", OpSignUp, fmt.Errorf("create account: %w", ErrEmailInUse), "Signup Failed", "This email address is already in use."},
		{"sign up unknown", OpSignUp, ErrUnknown, "Signup Failed", "Could not create account. Please try again."},
		{"add not authenticated", OpAdd, ErrNotAuthenticated, "Not Authenticated", "You must be logged in to add tasks."},
		{"toggle failure", OpToggle, ErrUnknown, "Error", "Could not update task status."},
		{"export empty", OpExport, ErrNothingToExport, "Nothing to Export", "Your to-do list is empty."},
		{"export write failure", OpExport, errors.New("permission denied"), "Export Failed", "Could not write the export file."},
		{"search failure", OpSearch, ErrUnknown, "Search Failed", "Could not search your tasks."},
		{"restore failure", OpInitialize, errors.New("parse credentials"), "Authentication Error", "Could not restore your saved session."},
		{"load failure", OpLoad, errors.New("stream reset"), "Error", "Could not load your tasks from the database."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Describe(tt.op, tt.err)
			assert.Equal(t, tt.title, n.Title)
			assert.Equal(t, tt.desc, n.Description)
		})
	}
}

func TestDescribeExportIsNotDestructive(t *testing.T) {
	assert.False(t, Describe(OpExport, ErrNothingToExport).Destructive)
	assert.True(t, Describe(OpRemove, ErrUnknown).Destructive)
}
