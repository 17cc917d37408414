package errors

import (
	"errors"
	"fmt"

	"github.com/Novip1906/taskmaster/internal/models"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrEmailInUse        = errors.New("email already in use")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUnknown           = errors.New("unknown error")

	ErrEmptyText       = errors.New("task text is empty")
	ErrNothingToExport = errors.New("nothing to export")
)

type Op string

const (
	OpSignIn     Op = "sign_in"
	OpSignUp     Op = "sign_up"
	OpSignOut    Op = "sign_out"
	OpAdd        Op = "add"
	OpToggle     Op = "toggle"
	OpRemove     Op = "remove"
	OpLoad       Op = "load"
	OpExport     Op = "export"
	OpSearch     Op = "search"
	OpInitialize Op = "initialize"
)

// Describe turns a categorized error into the notice shown to the user.
func Describe(op Op, err error) models.Notice {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return models.Notice{Title: "Not Authenticated", Description: notAuthenticatedDescription(op), Destructive: true}
	case errors.Is(err, ErrNothingToExport):
		return models.Notice{Title: "Nothing to Export", Description: "Your to-do list is empty."}
	case errors.Is(err, ErrEmptyText):
		return models.Notice{Title: "Error", Description: "Task description cannot be empty.", Destructive: true}
	}

	switch op {
	case OpSignIn:
		desc := "An unknown error occurred. Please try again."
		if errors.Is(err, ErrInvalidCredential) {
			desc = "Invalid email or password."
		}
		return models.Notice{Title: "Login Failed", Description: desc, Destructive: true}
	case OpSignUp:
		desc := "Could not create account. Please try again."
		if errors.Is(err, ErrEmailInUse) {
			desc = "This email address is already in use."
		}
		return models.Notice{Title: "Signup Failed", Description: desc, Destructive: true}
	case OpSignOut:
		return models.Notice{Title: "Logout Error", Description: "Could not log out. Please try again.", Destructive: true}
	case OpAdd:
		return models.Notice{Title: "Error", Description: "Could not add task.", Destructive: true}
	case OpToggle:
		return models.Notice{Title: "Error", Description: "Could not update task status.", Destructive: true}
	case OpRemove:
		return models.Notice{Title: "Error", Description: "Could not delete task.", Destructive: true}
	case OpLoad:
		return models.Notice{Title: "Error", Description: "Could not load your tasks from the database.", Destructive: true}
	case OpExport:
		return models.Notice{Title: "Export Failed", Description: "Could not write the export file.", Destructive: true}
	case OpSearch:
		return models.Notice{Title: "Search Failed", Description: "Could not search your tasks.", Destructive: true}
	case OpInitialize:
		return models.Notice{Title: "Authentication Error", Description: "Could not restore your saved session.", Destructive: true}
	}
	return models.Notice{Title: "Error", Description: fmt.Sprintf("%s failed.", op), Destructive: true}
}

func notAuthenticatedDescription(op Op) string {
	switch op {
	case OpAdd:
		return "You must be logged in to add tasks."
	default:
		return "You must be logged in."
	}
}
