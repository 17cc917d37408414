package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/contextkeys"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/internal/storage"
	"github.com/Novip1906/taskmaster/internal/tokens"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AccountsStorage interface {
	CreateAccount(ctx context.Context, email, password string) (*models.Identity, error)
	CheckCredentials(ctx context.Context, email, password string) (*models.Identity, error)
	GetAccount(ctx context.Context, id string) (*models.Identity, error)
	UpdateDisplayName(ctx context.Context, id, name string) error
}

type SessionsStorage interface {
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, sessionID string) (*storage.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type AuthService struct {
	cfg      *config.Config
	log      *slog.Logger
	accounts AccountsStorage
	sessions SessionsStorage
	tokens   *tokens.Manager
}

func NewAuthService(cfg *config.Config, log *slog.Logger, accounts AccountsStorage, sessions SessionsStorage, tokens *tokens.Manager) *AuthService {
	return &AuthService{cfg: cfg, log: log, accounts: accounts, sessions: sessions, tokens: tokens}
}

func (s *AuthService) CreateAccount(ctx context.Context, req *rpc.CreateAccountRequest) (*rpc.AuthResponse, error) {
	log := contextkeys.GetLogger(ctx)

	log.Debug("attempt")

	if !emailIsValid(req.Email) {
		log.Warn("email invalid")
		return nil, status.Error(codes.InvalidArgument, ErrInvalidEmailMessage)
	}
	if !lengthIsValid(req.Password, s.cfg.Params.Password, 6) {
		log.Warn("password len invalid")
		return nil, status.Error(codes.InvalidArgument, ErrInvalidPasswordMessage)
	}

	user, err := s.accounts.CreateAccount(ctx, req.Email, req.Password)
	if errors.Is(err, storage.ErrEmailTaken) {
		log.Warn("email taken")
		return nil, status.Error(codes.AlreadyExists, ErrEmailTakenMessage)
	}
	if err != nil {
		log.Error("db error", logging.DbErr("CreateAccount", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	log.Info("account created", slog.String("user_id", user.Id))

	return s.startSession(ctx, user)
}

func (s *AuthService) SignIn(ctx context.Context, req *rpc.SignInRequest) (*rpc.AuthResponse, error) {
	log := contextkeys.GetLogger(ctx)

	log.Debug("attempt")

	user, err := s.accounts.CheckCredentials(ctx, req.Email, req.Password)
	if errors.Is(err, storage.ErrAccountNotFound) {
		log.Warn("account not found")
		return nil, status.Error(codes.NotFound, ErrAccountNotFoundMessage)
	}
	if errors.Is(err, storage.ErrWrongPassword) {
		log.Warn("wrong password")
		return nil, status.Error(codes.Unauthenticated, ErrWrongPasswordMessage)
	}
	if err != nil {
		log.Error("db error", logging.DbErr("CheckCredentials", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	log.Info("signed in", slog.String("user_id", user.Id))

	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *models.Identity) (*rpc.AuthResponse, error) {
	log := contextkeys.GetLogger(ctx)

	sessionID := uuid.NewString()
	token, exp, err := s.tokens.Issue(user.Id, user.Email, user.DisplayName, sessionID)
	if err != nil {
		log.Error("token error", logging.Err(err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	err = s.sessions.CreateSession(ctx, storage.Session{SessionID: sessionID, UserID: user.Id, ExpiresAt: exp})
	if err != nil {
		log.Error("redis error", logging.DbErr("CreateSession", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	return &rpc.AuthResponse{Account: rpc.AccountFromIdentity(user), Token: token}, nil
}

func (s *AuthService) SignOut(ctx context.Context, req *rpc.SignOutRequest) (*rpc.SignOutResponse, error) {
	tokenClaims, ok := contextkeys.GetTokenClaims(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}
	log := contextkeys.GetLogger(ctx)

	if err := s.sessions.DeleteSession(ctx, tokenClaims.SessionId); err != nil {
		log.Error("redis error", logging.DbErr("DeleteSession", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	log.Info("signed out")
	return &rpc.SignOutResponse{}, nil
}

func (s *AuthService) UpdateDisplayName(ctx context.Context, req *rpc.UpdateDisplayNameRequest) (*rpc.AccountResponse, error) {
	tokenClaims, ok := contextkeys.GetTokenClaims(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}
	log := contextkeys.GetLogger(ctx)

	name := strings.TrimSpace(req.DisplayName)
	if !lengthIsValid(name, s.cfg.Params.DisplayName, 2) {
		log.Warn("display name len invalid")
		return nil, status.Error(codes.InvalidArgument, ErrInvalidNameMessage)
	}

	err := s.accounts.UpdateDisplayName(ctx, tokenClaims.UserId, name)
	if errors.Is(err, storage.ErrAccountNotFound) {
		log.Warn("account not found")
		return nil, status.Error(codes.NotFound, ErrAccountNotFoundMessage)
	}
	if err != nil {
		log.Error("db error", logging.DbErr("UpdateDisplayName", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	log.Info("display name updated")
	return s.Me(ctx, &rpc.MeRequest{})
}

func (s *AuthService) Me(ctx context.Context, req *rpc.MeRequest) (*rpc.AccountResponse, error) {
	tokenClaims, ok := contextkeys.GetTokenClaims(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}
	log := contextkeys.GetLogger(ctx)

	user, err := s.accounts.GetAccount(ctx, tokenClaims.UserId)
	if errors.Is(err, storage.ErrAccountNotFound) {
		log.Warn("account of valid token not found")
		return nil, status.Error(codes.Unauthenticated, ErrUnauthenticatedMessage)
	}
	if err != nil {
		log.Error("db error", logging.DbErr("GetAccount", err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	return &rpc.AccountResponse{Account: rpc.AccountFromIdentity(user)}, nil
}

// ValidateToken checks the signature and that the session has not been
// revoked.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*contextkeys.TokenClaims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, tokens.ErrExpiredToken
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserId {
		return nil, tokens.ErrInvalidToken
	}

	return &contextkeys.TokenClaims{
		UserId:      claims.UserId,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		SessionId:   claims.ID,
	}, nil
}

func emailIsValid(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// lengthIsValid checks s against the configured bounds. A zero minimum falls
// back to def; a zero maximum means unbounded.
func lengthIsValid(s string, bounds config.MinMaxLen, def int) bool {
	length := utf8.RuneCountInString(s)
	minLen := bounds.Min
	if minLen == 0 {
		minLen = def
	}
	return length >= minLen && (bounds.Max == 0 || length <= bounds.Max)
}
