package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Novip1906/taskmaster/internal/identity"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

var ErrNotSignedIn = errors.New("not signed in")

type savedSession struct {
	Account models.Identity `yaml:"account"`
	Token   string          `yaml:"token"`
}

// AuthProvider is an identity.Provider backed by the Auth service. The
// signed-in account and its token are kept in a YAML file so the session
// outlives the process.
type AuthProvider struct {
	auth *rpc.AuthClient
	path string
	log  *slog.Logger

	mu        sync.Mutex
	resolved  bool
	user      *models.Identity
	token     string
	nextID    int
	listeners map[int]func(*models.Identity)

	dispatchMu sync.Mutex
}

func NewAuthProvider(cc grpc.ClientConnInterface, credentialsPath string, log *slog.Logger) *AuthProvider {
	return &AuthProvider{
		auth:      rpc.NewAuthClient(cc),
		path:      credentialsPath,
		log:       log.With(slog.String("component", "auth_provider")),
		listeners: make(map[int]func(*models.Identity)),
	}
}

// Restore loads the saved session, checks it with the backend and announces
// the first auth state. A session the backend rejects is dropped; one that
// cannot be checked is kept.
func (p *AuthProvider) Restore(ctx context.Context) error {
	creds, err := p.load()
	if err != nil {
		p.resolve(nil, "")
		return err
	}
	if creds == nil {
		p.resolve(nil, "")
		return nil
	}

	resp, err := p.auth.Me(withToken(ctx, creds.Token), &rpc.MeRequest{})
	switch status.Code(err) {
	case codes.OK:
		user := resp.Account.Identity()
		if err := p.save(user, creds.Token); err != nil {
			p.log.Warn("save credentials", logging.Err(err))
		}
		p.resolve(user, creds.Token)
	case codes.Unauthenticated:
		p.log.Info("saved session expired")
		p.remove()
		p.resolve(nil, "")
	default:
		p.log.Warn("validate saved session", logging.Err(err))
		p.resolve(&creds.Account, creds.Token)
	}
	return nil
}

func (p *AuthProvider) CreateAccount(ctx context.Context, email, password string) (*models.Identity, error) {
	resp, err := p.auth.CreateAccount(ctx, &rpc.CreateAccountRequest{Email: email, Password: password})
	if err != nil {
		return nil, providerError(err)
	}
	return p.signedIn(resp)
}

func (p *AuthProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	resp, err := p.auth.SignIn(ctx, &rpc.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, providerError(err)
	}
	return p.signedIn(resp)
}

func (p *AuthProvider) signedIn(resp *rpc.AuthResponse) (*models.Identity, error) {
	user := resp.Account.Identity()
	if err := p.save(user, resp.Token); err != nil {
		return nil, identity.NewError(identity.CodeInternal, err)
	}
	p.setUser(user, resp.Token)

	out := *user
	return &out, nil
}

// SignOut revokes the session on the backend and forgets it locally. The
// local session ends even when the backend cannot be reached.
func (p *AuthProvider) SignOut(ctx context.Context) error {
	token := p.Token()
	if token == "" {
		return nil
	}

	if _, err := p.auth.SignOut(withToken(ctx, token), &rpc.SignOutRequest{}); err != nil {
		p.log.Warn("revoke session", logging.Err(err))
	}
	p.remove()
	p.setUser(nil, "")
	return nil
}

func (p *AuthProvider) UpdateDisplayName(ctx context.Context, user *models.Identity, name string) error {
	token := p.Token()
	if token == "" {
		return identity.NewError(identity.CodeInternal, ErrNotSignedIn)
	}

	resp, err := p.auth.UpdateDisplayName(withToken(ctx, token), &rpc.UpdateDisplayNameRequest{DisplayName: name})
	if err != nil {
		p.checkExpired(err)
		return providerError(err)
	}

	updated := resp.Account.Identity()
	p.mu.Lock()
	if p.user != nil && p.user.Id == updated.Id {
		p.user = updated
	}
	p.mu.Unlock()
	if err := p.save(updated, token); err != nil {
		p.log.Warn("save credentials", logging.Err(err))
	}
	return nil
}

// OnAuthStateChange registers fn. Once the first state is known fn is called
// with it right away.
func (p *AuthProvider) OnAuthStateChange(fn func(*models.Identity)) (unsubscribe func()) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	resolved, user := p.resolved, copyIdentity(p.user)
	p.mu.Unlock()

	if resolved {
		fn(user)
	}

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Current returns the signed-in account, or nil.
func (p *AuthProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.user)
}

func (p *AuthProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Expire ends the local session after the backend rejected its token.
func (p *AuthProvider) Expire() {
	if p.Token() == "" {
		return
	}
	p.log.Info("session expired")
	p.remove()
	p.setUser(nil, "")
}

func (p *AuthProvider) checkExpired(err error) {
	if status.Code(err) == codes.Unauthenticated {
		p.Expire()
	}
}

// authorize attaches the bearer token to ctx.
func (p *AuthProvider) authorize(ctx context.Context) (context.Context, error) {
	token := p.Token()
	if token == "" {
		return nil, ErrNotSignedIn
	}
	return withToken(ctx, token), nil
}

func (p *AuthProvider) resolve(user *models.Identity, token string) {
	p.mu.Lock()
	p.resolved = true
	p.mu.Unlock()
	p.setUser(user, token)
}

func (p *AuthProvider) setUser(user *models.Identity, token string) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	p.mu.Lock()
	p.user = copyIdentity(user)
	p.token = token
	if !p.resolved {
		p.mu.Unlock()
		return
	}
	listeners := make([]func(*models.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(copyIdentity(user))
	}
}

func (p *AuthProvider) load() (*savedSession, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds savedSession
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Token == "" || creds.Account.Id == "" {
		return nil, nil
	}
	return &creds, nil
}

func (p *AuthProvider) save(user *models.Identity, token string) error {
	data, err := yaml.Marshal(savedSession{Account: *user, Token: token})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

func (p *AuthProvider) remove() {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.log.Warn("remove credentials", logging.Err(err))
	}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func copyIdentity(user *models.Identity) *models.Identity {
	if user == nil {
		return nil
	}
	u := *user
	return &u
}

// providerError translates a backend status into an identity provider error.
func providerError(err error) error {
	code := identity.CodeInternal
	switch status.Code(err) {
	case codes.AlreadyExists:
		code = identity.CodeEmailInUse
	case codes.NotFound:
		code = identity.CodeUserNotFound
	case codes.Unauthenticated:
		code = identity.CodeWrongPassword
	case codes.InvalidArgument:
		code = identity.CodeInvalidCredential
	case codes.Unavailable, codes.DeadlineExceeded:
		code = identity.CodeNetwork
	}
	return identity.NewError(code, err)
}
