package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/docstore/memory"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/identity"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	createAccount     func(email, password string) (*models.Identity, error)
	signIn            func(email, password string) (*models.Identity, error)
	signOut           func() error
	updateDisplayName func(user *models.Identity, name string) error

	calls int
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*models.Identity, error) {
	p.calls++
	return p.createAccount(email, password)
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	p.calls++
	return p.signIn(email, password)
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.calls++
	return p.signOut()
}

func (p *fakeProvider) UpdateDisplayName(_ context.Context, user *models.Identity, name string) error {
	if p.updateDisplayName == nil {
		return nil
	}
	return p.updateDisplayName(user, name)
}

func (p *fakeProvider) OnAuthStateChange(func(*models.Identity)) func() {
	return func() {}
}

func TestSignUpCreatesProfile(t *testing.T) {
	store := memory.New()
	var named string
	p := &fakeProvider{
		createAccount: func(email, _ string) (*models.Identity, error) {
			return &models.Identity{Id: "u1", Email: email}, nil
		},
		updateDisplayName: func(_ *models.Identity, name string) error {
			named = name
			return nil
		},
	}
	g := NewGateway(p, store, logging.Discard())

	user, err := g.SignUp(context.Background(), "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.Id)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, "Ann", user.DisplayName)
	assert.Equal(t, "Ann", named)

	doc, err := store.Get(context.Background(), "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", doc.Fields.String("name"))
	assert.Equal(t, "ann@example.com", doc.Fields.String("email"))
	assert.False(t, doc.Fields.Time("createdAt").IsZero())
}

func TestSignUpErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"email in use", identity.NewError(identity.CodeEmailInUse, nil), appErrors.ErrEmailInUse},
		{"network", identity.NewError(identity.CodeNetwork, errors.New("dial")), appErrors.ErrUnknown},
		{"plain error", errors.New("boom"), appErrors.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{createAccount: func(string, string) (*models.Identity, error) { return nil, tt.err }}
			g := NewGateway(p, memory.New(), logging.Discard())

			user, err := g.SignUp(context.Background(), "Ann", "ann@example.com", "secret1")
			assert.Nil(t, user)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, p.calls, "no retries")
		})
	}
}

type failingStore struct {
	docstore.Store
}

func (failingStore) Set(context.Context, string, docstore.Fields) error {
	return errors.New("unavailable")
}

func TestSignUpProfileFailureIsUnknown(t *testing.T) {
	p := &fakeProvider{createAccount: func(email, _ string) (*models.Identity, error) {
		return &models.Identity{Id: "u1", Email: email}, nil
	}}
	g := NewGateway(p, failingStore{}, logging.Discard())

	_, err := g.SignUp(context.Background(), "Ann", "ann@example.com", "secret1")
	assert.ErrorIs(t, err, appErrors.ErrUnknown)
}

func TestSignInErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{identity.CodeUserNotFound, appErrors.ErrInvalidCredential},
		{identity.CodeWrongPassword, appErrors.ErrInvalidCredential},
		{identity.CodeInvalidCredential, appErrors.ErrInvalidCredential},
		{identity.CodeInternal, appErrors.ErrUnknown},
		{identity.CodeNetwork, appErrors.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			p := &fakeProvider{signIn: func(string, string) (*models.Identity, error) {
				return nil, identity.NewError(tt.code, nil)
			}}
			g := NewGateway(p, memory.New(), logging.Discard())

			_, err := g.SignIn(context.Background(), "ann@example.com", "wrong-password")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, p.calls)
		})
	}
}

func TestSignInSuccess(t *testing.T) {
	p := &fakeProvider{signIn: func(email, _ string) (*models.Identity, error) {
		return &models.Identity{Id: "u1", Email: email}, nil
	}}
	g := NewGateway(p, memory.New(), logging.Discard())

	user, err := g.SignIn(context.Background(), "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
}

func TestSignOut(t *testing.T) {
	p := &fakeProvider{signOut: func() error { return nil }}
	g := NewGateway(p, memory.New(), logging.Discard())
	assert.NoError(t, g.SignOut(context.Background()))

	p.signOut = func() error { return errors.New("offline") }
	assert.ErrorIs(t, g.SignOut(context.Background()), appErrors.ErrUnknown)
	assert.Equal(t, 2, p.calls)
}

func TestProfileFields(t *testing.T) {
	fields := profileFields(models.Profile{Id: "u1", Name: "Ann", Email: "ann@example.com"})
	assert.Equal(t, "u1", fields.String("uid"))
	assert.Equal(t, []string{"createdAt"}, fields.ServerTimestampKeys())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fields = profileFields(models.Profile{Id: "u1", Name: "Ann", Email: "ann@example.com", CreatedAt: at})
	assert.Empty(t, fields.ServerTimestampKeys())
	assert.Equal(t, at, fields.Time("createdAt"))
}
