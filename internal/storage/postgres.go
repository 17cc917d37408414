package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type PostgresStorage struct {
	db   *sql.DB
	log  *slog.Logger
	cost int
}

func NewPostgresStorage(dsn string, log *slog.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("cannot connect to db: %w", err)
	}

	s := &PostgresStorage{db: db, log: log, cost: bcrypt.DefaultCost}

	if err := s.init(); err != nil {
		return nil, fmt.Errorf("cannot initialize db schema: %w", err)
	}

	log.Info("connected to postgres")
	return s, nil
}

func (s *PostgresStorage) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, email, password string) (*models.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	email = normalizeEmail(email)

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3)",
		id, email, string(hash))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	return &models.Identity{Id: id, Email: email}, nil
}

func (s *PostgresStorage) CheckCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	var (
		user models.Identity
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash FROM accounts WHERE email = $1",
		normalizeEmail(email)).Scan(&user.Id, &user.Email, &user.DisplayName, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return &user, nil
}

func (s *PostgresStorage) GetAccount(ctx context.Context, id string) (*models.Identity, error) {
	var user models.Identity
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name FROM accounts WHERE id = $1", id).
		Scan(&user.Id, &user.Email, &user.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStorage) UpdateDisplayName(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE accounts SET display_name = $2 WHERE id = $1", id, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
