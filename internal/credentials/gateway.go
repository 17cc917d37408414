// Package credentials wraps account creation, sign-in and sign-out against
// the identity provider and sorts provider failures into the categories the
// user sees.
package credentials

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Novip1906/taskmaster/internal/docstore"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/identity"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/pkg/logging"
)

var (
	NoticeSignedIn  = models.Notice{Title: "Login Successful", Description: "Welcome back!"}
	NoticeSignedUp  = models.Notice{Title: "Account Created", Description: "Welcome to TaskMaster!"}
	NoticeSignedOut = models.Notice{Title: "Logged Out", Description: "You have been successfully logged out."}
)

const usersCollection = "users"

type Gateway struct {
	provider identity.Provider
	store    docstore.Store
	log      *slog.Logger
}

func NewGateway(provider identity.Provider, store docstore.Store, log *slog.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		store:    store,
		log:      log.With(slog.String("component", "credentials")),
	}
}

// SignUp creates the account, names it and writes the profile document.
// A failure after the account exists is still reported as ErrUnknown.
func (g *Gateway) SignUp(ctx context.Context, name, email, password string) (*models.Identity, error) {
	const op = "credentials.SignUp"

	user, err := g.provider.CreateAccount(ctx, email, password)
	if err != nil {
		g.log.Warn("create account failed", slog.String("op", op), logging.Err(err))
		if identity.Code(err) == identity.CodeEmailInUse {
			return nil, appErrors.ErrEmailInUse
		}
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnknown, err)
	}

	if err := g.provider.UpdateDisplayName(ctx, user, name); err != nil {
		g.log.Error("update display name failed", slog.String("op", op), logging.Err(err))
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnknown, err)
	}
	user.DisplayName = name

	profile := models.Profile{Id: user.Id, Name: name, Email: user.Email}
	if err := g.store.Set(ctx, docstore.Join(usersCollection, profile.Id), profileFields(profile)); err != nil {
		g.log.Error("create profile failed", slog.String("op", op), logging.Err(err))
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnknown, err)
	}

	return user, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	user, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		g.log.Warn("sign in failed", logging.Err(err))
		switch identity.Code(err) {
		case identity.CodeUserNotFound, identity.CodeWrongPassword, identity.CodeInvalidCredential:
			return nil, appErrors.ErrInvalidCredential
		}
		return nil, fmt.Errorf("%w: %v", appErrors.ErrUnknown, err)
	}
	return user, nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.provider.SignOut(ctx); err != nil {
		g.log.Error("sign out failed", logging.Err(err))
		return fmt.Errorf("%w: %v", appErrors.ErrUnknown, err)
	}
	return nil
}

// profileFields lays out p as the users/{uid} document. A zero CreatedAt is
// left to the server clock.
func profileFields(p models.Profile) docstore.Fields {
	var createdAt any = docstore.ServerTimestamp
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt
	}
	return docstore.Fields{
		"uid":       p.Id,
		"name":      p.Name,
		"email":     p.Email,
		"createdAt": createdAt,
	}
}
