// Package tasksync keeps a live, ordered view of the signed-in user's tasks
// and issues task mutations against the document store.
package tasksync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Novip1906/taskmaster/internal/docstore"
	appErrors "github.com/Novip1906/taskmaster/internal/errors"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/session"
	"github.com/Novip1906/taskmaster/pkg/logging"
)

type State int

const (
	Closed State = iota
	Opening
	Live
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Live:
		return "live"
	}
	return "unknown"
}

// View is the published task list. Tasks are ordered newest first and must
// not be modified by readers.
type View struct {
	State   State
	Tasks   []models.Task
	Loading bool
}

type Sync struct {
	store  docstore.Store
	log    *slog.Logger
	notify func(models.Notice)

	mu        sync.Mutex
	user      *models.Identity
	view      View
	gen       uint64
	stop      func()
	consumer  chan struct{}
	listeners map[int]func(View)
	nextID    int
	closed    bool
	unbind    func()

	// switchMu serializes identity switches so the old consumer has exited
	// before the next subscription opens.
	switchMu   sync.Mutex
	dispatchMu sync.Mutex
	inflight   sync.WaitGroup
}

// New returns a closed Sync. notify receives mutation outcomes and load
// errors; it may be nil.
func New(store docstore.Store, log *slog.Logger, notify func(models.Notice)) *Sync {
	if notify == nil {
		notify = func(models.Notice) {}
	}
	return &Sync{
		store:     store,
		log:       log.With(slog.String("component", "tasksync")),
		notify:    notify,
		listeners: make(map[int]func(View)),
	}
}

// Collection is the task collection of uid.
func Collection(uid string) string {
	return docstore.Join("users", uid, "todos")
}

// Query is the live query for uid's tasks, newest first.
func Query(uid string) docstore.Query {
	return docstore.Query{
		Collection: Collection(uid),
		Where:      []docstore.Filter{{Field: "userId", Value: uid}},
		OrderBy:    docstore.Order{Field: "createdAt", Descending: true},
	}
}

// Bind follows the identity published by store until Close.
func (s *Sync) Bind(store *session.Store) {
	unbind := store.Subscribe(func(v session.Value) {
		s.SetIdentity(v.Identity)
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unbind()
		return
	}
	s.unbind = unbind
	s.mu.Unlock()
}

// SetIdentity opens the subscription for user, or closes it when user is
// nil. Setting the identity that is already active keeps the subscription.
func (s *Sync) SetIdentity(user *models.Identity) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if sameUser(s.user, user) {
		if user != nil {
			u := *user
			s.user = &u
		}
		s.mu.Unlock()
		return
	}

	stop, consumer := s.stop, s.consumer
	s.stop, s.consumer = nil, nil
	s.gen++
	gen := s.gen
	if user == nil {
		s.user = nil
		s.view = View{State: Closed}
	} else {
		u := *user
		s.user = &u
		s.view = View{State: Opening, Loading: true}
	}
	view := s.view
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-consumer
	}
	s.publish(view)

	if user == nil {
		return
	}
	s.open(gen, user.Id)
}

func (s *Sync) open(gen uint64, uid string) {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.store.Subscribe(ctx, Query(uid))
	if err != nil {
		cancel()
		s.log.Error("open subscription", slog.String("user_id", uid), logging.Err(err))
		s.failLoad(gen)
		return
	}

	consumer := make(chan struct{})
	s.mu.Lock()
	s.stop = func() {
		cancel()
		sub.Close()
	}
	s.consumer = consumer
	s.mu.Unlock()

	s.log.Debug("subscription opened", slog.String("user_id", uid))
	go s.consume(ctx, gen, uid, sub, consumer)
}

func (s *Sync) consume(ctx context.Context, gen uint64, uid string, sub docstore.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil && ctx.Err() == nil {
					s.log.Error("subscription failed", slog.String("user_id", uid), logging.Err(err))
					s.failLoad(gen)
				}
				return
			}
			s.apply(gen, uid, snap)
		}
	}
}

func (s *Sync) apply(gen uint64, uid string, snap docstore.Snapshot) {
	tasks := make([]models.Task, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		task := toTask(doc)
		if task.OwnerId != uid {
			s.log.Warn("dropping task of another owner",
				slog.String("user_id", uid),
				slog.String("task_id", task.Id),
				slog.String("owner_id", task.OwnerId))
			continue
		}
		tasks = append(tasks, task)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.view = View{State: Live, Tasks: tasks}
	view := s.view
	s.mu.Unlock()

	s.publish(view)
}

func (s *Sync) failLoad(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.view.Loading = false
	view := s.view
	s.mu.Unlock()

	s.publish(view)
	s.notify(appErrors.Describe(appErrors.OpLoad, appErrors.ErrUnknown))
}

func toTask(doc docstore.Document) models.Task {
	return models.Task{
		Id:        doc.Id,
		Text:      doc.Fields.String("text"),
		Completed: doc.Fields.Bool("completed"),
		CreatedAt: doc.Fields.Time("createdAt"),
		OwnerId:   doc.Fields.String("userId"),
	}
}

func sameUser(a, b *models.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Id == b.Id
}

func (s *Sync) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Subscribe calls fn with the current view and then after every change.
// fn must not call SetIdentity.
func (s *Sync) Subscribe(fn func(View)) (unsubscribe func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.view
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// publish delivers view to the listeners. Callers publish the value they
// stored so a switch that follows cannot be observed out of order.
func (s *Sync) publish(view View) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	listeners := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

func (s *Sync) currentUser() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Sync) find(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.view.Tasks {
		if t.Id == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Add creates a task. The outcome is reported through notify.
func (s *Sync) Add(text string) error {
	user := s.currentUser()
	if user == nil {
		return appErrors.ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return appErrors.ErrEmptyText
	}

	fields := docstore.Fields{
		"text":      text,
		"completed": false,
		"createdAt": docstore.ServerTimestamp,
		"userId":    user.Id,
	}
	s.run(appErrors.OpAdd, func(ctx context.Context) (*models.Notice, error) {
		if _, err := s.store.Create(ctx, Collection(user.Id), fields); err != nil {
			return nil, err
		}
		return &models.Notice{Title: "Task Added", Description: fmt.Sprintf(`"%s" has been added to your list.`, text)}, nil
	})
	return nil
}

// Toggle flips the completed flag of a task from the last snapshot. Unknown
// ids are ignored.
func (s *Sync) Toggle(id string) error {
	user := s.currentUser()
	if user == nil {
		return appErrors.ErrNotAuthenticated
	}
	task, ok := s.find(id)
	if !ok {
		return nil
	}

	path := docstore.Join(Collection(user.Id), id)
	s.run(appErrors.OpToggle, func(ctx context.Context) (*models.Notice, error) {
		return nil, s.store.Update(ctx, path, docstore.Fields{"completed": !task.Completed})
	})
	return nil
}

func (s *Sync) Remove(id string) error {
	user := s.currentUser()
	if user == nil {
		return appErrors.ErrNotAuthenticated
	}
	text := "Task"
	if task, ok := s.find(id); ok && task.Text != "" {
		text = task.Text
	}

	path := docstore.Join(Collection(user.Id), id)
	s.run(appErrors.OpRemove, func(ctx context.Context) (*models.Notice, error) {
		if err := s.store.Delete(ctx, path); err != nil {
			return nil, err
		}
		return &models.Notice{Title: "Task Deleted", Description: fmt.Sprintf(`"%s" has been removed.`, text)}, nil
	})
	return nil
}

func (s *Sync) run(op appErrors.Op, fn func(ctx context.Context) (*models.Notice, error)) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		notice, err := fn(context.Background())
		if err != nil {
			s.log.Error("mutation failed", slog.String("op", string(op)), logging.Err(err))
			s.notify(appErrors.Describe(op, appErrors.ErrUnknown))
			return
		}
		if notice != nil {
			s.notify(*notice)
		}
	}()
}

// Wait blocks until every dispatched mutation has reported its outcome.
func (s *Sync) Wait() {
	s.inflight.Wait()
}

// Close releases the subscription, stops following the session and waits
// for in-flight mutations.
func (s *Sync) Close() {
	s.switchMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.switchMu.Unlock()
		return
	}
	s.closed = true
	stop, consumer, unbind := s.stop, s.consumer, s.unbind
	s.stop, s.consumer, s.unbind = nil, nil, nil
	s.gen++
	s.user = nil
	s.view = View{State: Closed}
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-consumer
	}
	s.switchMu.Unlock()

	if unbind != nil {
		unbind()
	}
	s.publish(View{State: Closed})
	s.inflight.Wait()
}
