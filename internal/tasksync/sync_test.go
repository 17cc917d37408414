package tasksync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/docstore/memory"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/session"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	ann = &models.Identity{Id: "u1", Email: "ann@example.com", DisplayName: "Ann"}
	bob = &models.Identity{Id: "u2", Email: "bob@example.com", DisplayName: "Bob"}
)

type notices struct {
	mu  sync.Mutex
	got []models.Notice
}

func (n *notices) add(notice models.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, notice)
}

func (n *notices) all() []models.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notice(nil), n.got...)
}

func texts(v View) []string {
	out := make([]string, 0, len(v.Tasks))
	for _, t := range v.Tasks {
		out = append(out, t.Text)
	}
	return out
}

func newSync(t *testing.T, store docstore.Store) (*Sync, *notices) {
	t.Helper()
	n := &notices{}
	s := New(store, logging.Discard(), n.add)
	t.Cleanup(s.Close)
	return s, n
}

func TestAddOrdersNewestFirst(t *testing.T) {
	s, n := newSync(t, memory.New())
	s.SetIdentity(ann)

	require.Eventually(t, func() bool { return s.View().State == Live }, waitFor, tick)
	assert.False(t, s.View().Loading)
	assert.Empty(t, s.View().Tasks)

	for _, text := range []string{"A", "B", "C"} {
		require.NoError(t, s.Add(text))
		s.Wait()
	}

	require.Eventually(t, func() bool { return len(s.View().Tasks) == 3 }, waitFor, tick)
	assert.Equal(t, []string{"C", "B", "A"}, texts(s.View()))
	for _, task := range s.View().Tasks {
		assert.Equal(t, "u1", task.OwnerId)
		assert.False(t, task.Completed)
		assert.False(t, task.CreatedAt.IsZero())
	}

	got := n.all()
	require.Len(t, got, 3)
	assert.Equal(t, models.Notice{Title: "Task Added", Description: `"A" has been added to your list.`}, got[0])
}

func TestToggleTwiceRestoresCompleted(t *testing.T) {
	s, _ := newSync(t, memory.New())
	s.SetIdentity(ann)

	require.NoError(t, s.Add("Pay rent"))
	require.Eventually(t, func() bool { return len(s.View().Tasks) == 1 }, waitFor, tick)
	id := s.View().Tasks[0].Id

	require.NoError(t, s.Toggle(id))
	require.Eventually(t, func() bool { return s.View().Tasks[0].Completed }, waitFor, tick)

	require.NoError(t, s.Toggle(id))
	require.Eventually(t, func() bool { return !s.View().Tasks[0].Completed }, waitFor, tick)
}

func TestToggleUnknownTaskIsNoop(t *testing.T) {
	calls := 0
	store := &fakeStore{update: func(string, docstore.Fields) error {
		calls++
		return nil
	}}
	s, n := newSync(t, store)
	s.SetIdentity(ann)

	require.NoError(t, s.Toggle("missing"))
	s.Wait()
	assert.Zero(t, calls)
	assert.Empty(t, n.all())
}

func TestRemove(t *testing.T) {
	s, n := newSync(t, memory.New())
	s.SetIdentity(ann)

	require.NoError(t, s.Add("Buy milk"))
	require.Eventually(t, func() bool { return len(s.View().Tasks) == 1 }, waitFor, tick)

	require.NoError(t, s.Remove(s.View().Tasks[0].Id))
	s.Wait()
	require.Eventually(t, func() bool { return len(s.View().Tasks) == 0 }, waitFor, tick)

	got := n.all()
	assert.Equal(t, models.Notice{Title: "Task Deleted", Description: `"Buy milk" has been removed.`}, got[len(got)-1])
}

func TestMutationsRequireIdentity(t *testing.T) {
	s, _ := newSync(t, memory.New())

	assert.ErrorIs(t, s.Add("A"), appErrors.ErrNotAuthenticated)
	assert.ErrorIs(t, s.Toggle("x"), appErrors.ErrNotAuthenticated)
	assert.ErrorIs(t, s.Remove("x"), appErrors.ErrNotAuthenticated)
}

func TestAddRejectsEmptyText(t *testing.T) {
	s, _ := newSync(t, memory.New())
	s.SetIdentity(ann)

	assert.ErrorIs(t, s.Add("   "), appErrors.ErrEmptyText)
}

func TestMutationFailureIsReported(t *testing.T) {
	store := &fakeStore{
		create: func(string, docstore.Fields) (string, error) { return "", errors.New("unavailable") },
		delete: func(string) error { return errors.New("unavailable") },
	}
	s, n := newSync(t, store)
	s.SetIdentity(ann)

	require.NoError(t, s.Add("A"))
	s.Wait()
	require.NoError(t, s.Remove("x"))
	s.Wait()

	assert.Equal(t, []models.Notice{
		{Title: "Error", Description: "Could not add task.", Destructive: true},
		{Title: "Error", Description: "Could not delete task.", Destructive: true},
	}, n.all())
}

func TestDropsTasksOfOtherOwners(t *testing.T) {
	store := &fakeStore{}
	s, _ := newSync(t, store)
	s.SetIdentity(ann)

	feed := store.feed(0)
	feed.Publish(docstore.Snapshot{Docs: []docstore.Document{
		{Id: "t1", Fields: docstore.Fields{"text": "mine", "userId": "u1"}},
		{Id: "t2", Fields: docstore.Fields{"text": "theirs", "userId": "u2"}},
	}})

	require.Eventually(t, func() bool { return s.View().State == Live }, waitFor, tick)
	assert.Equal(t, []string{"mine"}, texts(s.View()))
}

func TestSwitchReleasesPreviousSubscriptionFirst(t *testing.T) {
	store := &fakeStore{}
	s, _ := newSync(t, store)

	s.SetIdentity(ann)
	s.SetIdentity(bob)

	require.Equal(t, 2, store.opened())
	assert.True(t, store.feed(0).Closed())
	assert.True(t, store.openedWithAllPreviousClosed)
	assert.Equal(t, "users/u2/todos", store.queries[1].Collection)
	assert.Equal(t, []docstore.Filter{{Field: "userId", Value: "u2"}}, store.queries[1].Where)

	// a late snapshot on the released feed is refused
	assert.False(t, store.feed(0).Publish(docstore.Snapshot{}))
}

func TestSameIdentityKeepsSubscription(t *testing.T) {
	store := &fakeStore{}
	s, _ := newSync(t, store)

	s.SetIdentity(ann)
	renamed := *ann
	renamed.DisplayName = "Annie"
	s.SetIdentity(&renamed)

	assert.Equal(t, 1, store.opened())
	assert.False(t, store.feed(0).Closed())
}

func TestSignOutClosesView(t *testing.T) {
	store := &fakeStore{}
	s, _ := newSync(t, store)

	var states []State
	var mu sync.Mutex
	s.Subscribe(func(v View) {
		mu.Lock()
		states = append(states, v.State)
		mu.Unlock()
	})

	s.SetIdentity(ann)
	store.feed(0).Publish(docstore.Snapshot{Docs: []docstore.Document{
		{Id: "t1", Fields: docstore.Fields{"text": "A", "userId": "u1"}},
	}})
	require.Eventually(t, func() bool { return len(s.View().Tasks) == 1 }, waitFor, tick)

	s.SetIdentity(nil)

	assert.Equal(t, View{State: Closed}, s.View())
	assert.True(t, store.feed(0).Closed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Closed, Opening, Live, Closed}, states)
}

func TestLoadErrorClearsLoading(t *testing.T) {
	store := &fakeStore{}
	s, n := newSync(t, store)
	s.SetIdentity(ann)
	require.True(t, s.View().Loading)

	store.feed(0).Fail(errors.New("permission denied"))

	require.Eventually(t, func() bool { return !s.View().Loading }, waitFor, tick)
	require.Eventually(t, func() bool { return len(n.all()) == 1 }, waitFor, tick)
	assert.Equal(t, "Could not load your tasks from the database.", n.all()[0].Description)
}

func TestSubscribeErrorClearsLoading(t *testing.T) {
	store := &fakeStore{subscribeErr: errors.New("unavailable")}
	s, n := newSync(t, store)

	s.SetIdentity(ann)

	assert.False(t, s.View().Loading)
	assert.Len(t, n.all(), 1)
}

func TestBindFollowsSession(t *testing.T) {
	provider := &sessionProvider{}
	sess := session.New(provider, logging.Discard())
	sess.Start()
	defer sess.Close()

	store := &fakeStore{}
	s, _ := newSync(t, store)
	s.Bind(sess)

	provider.emit(ann)
	require.Equal(t, 1, store.opened())
	assert.Equal(t, Opening, s.View().State)

	provider.emit(nil)
	assert.Equal(t, Closed, s.View().State)
	assert.True(t, store.feed(0).Closed())
}

func TestCloseReleasesEverything(t *testing.T) {
	store := &fakeStore{}
	s := New(store, logging.Discard(), nil)
	s.SetIdentity(ann)

	s.Close()
	s.Close()

	assert.True(t, store.feed(0).Closed())
	s.SetIdentity(bob)
	assert.Equal(t, 1, store.opened())
}

type fakeStore struct {
	create func(collection string, fields docstore.Fields) (string, error)
	update func(path string, fields docstore.Fields) error
	delete func(path string) error

	subscribeErr error

	mu                          sync.Mutex
	feeds                       []*docstore.Feed
	queries                     []docstore.Query
	openedWithAllPreviousClosed bool
}

func (f *fakeStore) Create(_ context.Context, collection string, fields docstore.Fields) (string, error) {
	if f.create == nil {
		return "id", nil
	}
	return f.create(collection, fields)
}

func (f *fakeStore) Set(context.Context, string, docstore.Fields) error {
	return nil
}

func (f *fakeStore) Update(_ context.Context, path string, fields docstore.Fields) error {
	if f.update == nil {
		return nil
	}
	return f.update(path, fields)
}

func (f *fakeStore) Delete(_ context.Context, path string) error {
	if f.delete == nil {
		return nil
	}
	return f.delete(path)
}

func (f *fakeStore) Subscribe(_ context.Context, q docstore.Query) (docstore.Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.openedWithAllPreviousClosed = true
	for _, feed := range f.feeds {
		if !feed.Closed() {
			f.openedWithAllPreviousClosed = false
		}
	}
	feed := docstore.NewFeed(nil)
	f.feeds = append(f.feeds, feed)
	f.queries = append(f.queries, q)
	return feed, nil
}

func (f *fakeStore) feed(i int) *docstore.Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[i]
}

func (f *fakeStore) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds)
}

type sessionProvider struct {
	fn func(*models.Identity)
}

func (p *sessionProvider) CreateAccount(context.Context, string, string) (*models.Identity, error) {
	return nil, nil
}

func (p *sessionProvider) SignIn(context.Context, string, string) (*models.Identity, error) {
	return nil, nil
}

func (p *sessionProvider) SignOut(context.Context) error { return nil }

func (p *sessionProvider) UpdateDisplayName(context.Context, *models.Identity, string) error {
	return nil
}

func (p *sessionProvider) OnAuthStateChange(fn func(*models.Identity)) func() {
	p.fn = fn
	return func() { p.fn = nil }
}

func (p *sessionProvider) emit(user *models.Identity) {
	if p.fn != nil {
		p.fn(user)
	}
}
