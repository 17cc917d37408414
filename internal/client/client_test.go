package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Novip1906/taskmaster/internal/app"
	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/credentials"
	"github.com/Novip1906/taskmaster/internal/docstore/memory"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/identity"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/session"
	"github.com/Novip1906/taskmaster/internal/storage"
	"github.com/Novip1906/taskmaster/internal/tasksync"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const waitFor = 2 * time.Second

func startBackend(t *testing.T) *grpc.ClientConn {
	t.Helper()

	cfg := &config.Config{
		JWT: config.JWT{Secret: "test-secret", SessionTTL: time.Hour},
		Params: config.Params{
			Text:     config.MinMaxLen{Min: 1, Max: 200},
			Password: config.MinMaxLen{Min: 6},
		},
	}
	mem := storage.NewMemoryStorage()
	srv := app.New(cfg, logging.Discard(), app.Deps{Store: memory.New(), Accounts: mem, Sessions: mem})

	ln := bufconn.Listen(1 << 20)
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Stop()
		srv.Close()
	})

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return ln.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type noticeLog struct {
	mu      sync.Mutex
	notices []models.Notice
}

func (n *noticeLog) add(notice models.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Title)
	}
	return out
}

func TestSignUpAddToggleRemove(t *testing.T) {
	conn := startBackend(t)
	ctx := context.Background()
	log := logging.Discard()
	credsPath := filepath.Join(t.TempDir(), "credentials.yaml")

	provider := NewAuthProvider(conn, credsPath, log)
	store := NewDocumentStore(conn, provider, log)
	sess := session.New(provider, log)
	notices := &noticeLog{}
	tasks := tasksync.New(store, log, notices.add)
	defer tasks.Close()
	defer sess.Close()

	sess.Start()
	tasks.Bind(sess)
	assert.Equal(t, session.Pending, sess.Value().State)

	require.NoError(t, provider.Restore(ctx))
	assert.Equal(t, session.SignedOut, sess.Value().State)

	gateway := credentials.NewGateway(provider, store, log)
	user, err := gateway.SignUp(ctx, "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.DisplayName)
	assert.Equal(t, session.SignedIn, sess.Value().State)
	assert.FileExists(t, credsPath)

	assert.Eventually(t, func() bool { return tasks.View().State == tasksync.Live }, waitFor, 10*time.Millisecond)

	require.NoError(t, tasks.Add("  Buy milk  "))
	assert.Eventually(t, func() bool { return len(tasks.View().Tasks) == 1 }, waitFor, 10*time.Millisecond)
	task := tasks.View().Tasks[0]
	assert.Equal(t, "Buy milk", task.Text)
	assert.Equal(t, user.Id, task.OwnerId)
	assert.False(t, task.CreatedAt.IsZero())

	require.NoError(t, tasks.Toggle(task.Id))
	assert.Eventually(t, func() bool {
		v := tasks.View()
		return len(v.Tasks) == 1 && v.Tasks[0].Completed
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, tasks.Remove(task.Id))
	assert.Eventually(t, func() bool { return len(tasks.View().Tasks) == 0 }, waitFor, 10*time.Millisecond)

	tasks.Wait()
	assert.Equal(t, []string{"Task Added", "Task Deleted"}, notices.titles())

	require.NoError(t, gateway.SignOut(ctx))
	assert.Equal(t, session.SignedOut, sess.Value().State)
	assert.Equal(t, tasksync.Closed, tasks.View().State)
	assert.NoFileExists(t, credsPath)
}

func TestSignInErrorsMapToProviderCodes(t *testing.T) {
	conn := startBackend(t)
	ctx := context.Background()
	log := logging.Discard()
	provider := NewAuthProvider(conn, filepath.Join(t.TempDir(), "credentials.yaml"), log)
	gateway := credentials.NewGateway(provider, NewDocumentStore(conn, provider, log), log)

	_, err := provider.SignIn(ctx, "ann@example.com", "secret1")
	assert.Equal(t, identity.CodeUserNotFound, identity.Code(err))

	_, err = gateway.SignUp(ctx, "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)

	_, err = provider.CreateAccount(ctx, "ann@example.com", "secret1")
	assert.Equal(t, identity.CodeEmailInUse, identity.Code(err))
	_, err = gateway.SignUp(ctx, "Ann", "ann@example.com", "secret1")
	assert.ErrorIs(t, err, appErrors.ErrEmailInUse)

	_, err = gateway.SignIn(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredential)
}

func TestRestoreSavedSession(t *testing.T) {
	conn := startBackend(t)
	ctx := context.Background()
	log := logging.Discard()
	credsPath := filepath.Join(t.TempDir(), "credentials.yaml")

	first := NewAuthProvider(conn, credsPath, log)
	user, err := credentials.NewGateway(first, NewDocumentStore(conn, first, log), log).SignUp(ctx, "Ann", "ann@example.com", "secret1")
	require.NoError(t, err)

	second := NewAuthProvider(conn, credsPath, log)
	var got []*models.Identity
	second.OnAuthStateChange(func(u *models.Identity) { got = append(got, u) })
	require.NoError(t, second.Restore(ctx))

	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, user.Id, got[0].Id)
	assert.Equal(t, "Ann", got[0].DisplayName)

	// revoking the session from the first process expires the second one
	require.NoError(t, first.SignOut(ctx))

	_, err = NewDocumentStore(conn, second, log).Create(ctx, "users/"+user.Id+"/todos", nil)
	require.Error(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1])
	assert.Nil(t, second.Current())
}

func TestRestoreDropsRevokedSession(t *testing.T) {
	conn := startBackend(t)
	ctx := context.Background()
	log := logging.Discard()
	credsPath := filepath.Join(t.TempDir(), "credentials.yaml")

	first := NewAuthProvider(conn, credsPath, log)
	_, err := first.CreateAccount(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	saved, err := os.ReadFile(credsPath)
	require.NoError(t, err)
	require.NoError(t, first.SignOut(ctx))
	require.NoError(t, os.WriteFile(credsPath, saved, 0o600))

	second := NewAuthProvider(conn, credsPath, log)
	require.NoError(t, second.Restore(ctx))
	assert.Nil(t, second.Current())
	assert.NoFileExists(t, credsPath)
}
