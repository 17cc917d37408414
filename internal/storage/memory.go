package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type memoryAccount struct {
	user models.Identity
	hash []byte
}

// MemoryStorage keeps accounts and sessions in process memory. It backs the
// memory docstore driver for local runs and tests.
type MemoryStorage struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
	byEmail  map[string]string
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[string]*memoryAccount),
		byEmail:  make(map[string]string),
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStorage) CreateAccount(_ context.Context, email, password string) (*models.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	acc := &memoryAccount{user: models.Identity{Id: uuid.NewString(), Email: email}, hash: hash}
	m.accounts[acc.user.Id] = acc
	m.byEmail[email] = acc.user.Id

	user := acc.user
	return &user, nil
}

func (m *MemoryStorage) CheckCredentials(_ context.Context, email, password string) (*models.Identity, error) {
	m.mu.Lock()
	id, ok := m.byEmail[normalizeEmail(email)]
	var acc memoryAccount
	if ok {
		acc = *m.accounts[id]
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrAccountNotFound
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return &acc.user, nil
}

func (m *MemoryStorage) GetAccount(_ context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	user := acc.user
	return &user, nil
}

func (m *MemoryStorage) UpdateDisplayName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.user.DisplayName = name
	return nil
}

func (m *MemoryStorage) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MemoryStorage) GetSession(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, sessionID)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStorage) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
