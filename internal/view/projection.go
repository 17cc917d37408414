// Package view derives what the task screen shows from the session and
// task list state.
package view

import (
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/session"
)

type Input struct {
	Session session.Value
	Tasks   []models.Task
	Loading bool
	// NavigationPending is set while a signed-in user is still being routed
	// to the main view.
	NavigationPending bool
}

type Projection struct {
	ShowAuthLoader bool
	ShowTaskLoader bool
	ShowEmptyState bool
	OrderedTasks   []models.Task
	UserName       string
}

func Project(in Input) Projection {
	signedIn := in.Session.State == session.SignedIn && in.Session.Identity != nil

	p := Projection{
		ShowAuthLoader: in.Session.State == session.Pending || (signedIn && in.NavigationPending),
		ShowTaskLoader: signedIn && in.Loading,
		ShowEmptyState: signedIn && !in.Loading && len(in.Tasks) == 0,
		OrderedTasks:   in.Tasks,
	}
	if signedIn {
		p.UserName = in.Session.Identity.DisplayName
		if p.UserName == "" {
			p.UserName = in.Session.Identity.Email
		}
	}
	return p
}
