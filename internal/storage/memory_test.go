package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	user, err := m.CreateAccount(ctx, " Ann@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)

	_, err = m.CreateAccount(ctx, "ann@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = m.CheckCredentials(ctx, "ann@example.com", "nope-nope")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = m.CheckCredentials(ctx, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, m.UpdateDisplayName(ctx, user.Id, "Ann"))
	got, err := m.CheckCredentials(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.DisplayName)

	assert.ErrorIs(t, m.UpdateDisplayName(ctx, "missing", "X"), ErrAccountNotFound)
}

func TestMemorySessionsExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.CreateSession(ctx, Session{SessionID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Minute)}))
	s, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	now = now.Add(2 * time.Minute)
	_, err = m.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.CreateSession(ctx, Session{SessionID: "s2", UserID: "u1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, m.DeleteSession(ctx, "s2"))
	_, err = m.GetSession(ctx, "s2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
