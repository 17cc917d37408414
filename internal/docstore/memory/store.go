// Package memory is an in-process document store. The backend runs on it in
// development mode and tests use it as the live database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/google/uuid"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]docstore.Fields // keyed by full document path
	subs map[*subscription]struct{}
	last time.Time
	now  func() time.Time
}

type subscription struct {
	query docstore.Query
	feed  *docstore.Feed
}

func New() *Store {
	return &Store{
		docs: make(map[string]docstore.Fields),
		subs: make(map[*subscription]struct{}),
		now:  time.Now,
	}
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docstore.Join(collection, id)] = fields.Resolve(s.tick())
	s.notifyLocked(collection)
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	collection, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = fields.Resolve(s.tick())
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	collection, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
	}
	merged := cur.Clone()
	for k, v := range fields.Resolve(s.tick()) {
		merged[k] = v
	}
	s.docs[path] = merged
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[path]; !ok {
		return nil
	}
	delete(s.docs, path)
	s.notifyLocked(collection)
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	_, id, err := docstore.SplitDoc(path)
	if err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.docs[path]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
	}
	return docstore.Document{Id: id, Path: path, Fields: f.Clone()}, nil
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{query: q}
	sub.feed = docstore.NewFeed(func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.feed.Publish(s.snapshotLocked(q))
	s.mu.Unlock()

	// a cancelled context releases the subscription like Close does
	go func() {
		select {
		case <-ctx.Done():
			sub.feed.Close()
		case <-sub.feed.Done():
		}
	}()

	return sub.feed, nil
}

func (s *Store) notifyLocked(collection string) {
	for sub := range s.subs {
		if sub.query.Collection == collection {
			sub.feed.Publish(s.snapshotLocked(sub.query))
		}
	}
}

func (s *Store) snapshotLocked(q docstore.Query) docstore.Snapshot {
	prefix := q.Collection + "/"
	var docs []docstore.Document
	for path, f := range s.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		if !q.Matches(f) {
			continue
		}
		docs = append(docs, docstore.Document{Id: rest, Path: path, Fields: f.Clone()})
	}
	if q.OrderBy.Field != "" {
		sort.Slice(docs, func(i, j int) bool { return docstore.Less(docs[i], docs[j], q.OrderBy) })
	}
	return docstore.Snapshot{Docs: docs, ReadAt: s.now()}
}

// tick returns the store clock, strictly increasing across writes so that
// documents written in sequence never share a timestamp.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}
