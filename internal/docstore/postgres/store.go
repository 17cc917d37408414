// Package postgres stores documents as JSONB rows and turns Postgres
// LISTEN/NOTIFY into live query snapshots.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const changesChannel = "docstore_changes"

type Store struct {
	db       *sql.DB
	listener *pq.Listener
	log      *slog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

type subscription struct {
	ctx   context.Context
	query docstore.Query
	feed  *docstore.Feed
}

func New(dsn string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("cannot connect to db: %w", err)
	}

	s := &Store{
		db:   db,
		log:  log.With(slog.String("component", "docstore.postgres")),
		subs: make(map[*subscription]struct{}),
		done: make(chan struct{}),
	}

	if err := s.init(); err != nil {
		return nil, fmt.Errorf("cannot initialize db schema: %w", err)
	}

	s.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn("listener event", slog.Int("event", int(ev)), logging.Err(err))
		}
	})
	if err := s.listener.Listen(changesChannel); err != nil {
		s.listener.Close()
		return nil, fmt.Errorf("cannot listen on %s: %w", changesChannel, err)
	}

	s.wg.Add(1)
	go s.dispatch()

	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq BIGSERIAL,
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		fields JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	path := docstore.Join(collection, id)

	err := s.write(ctx, collection, func(tx *sql.Tx, now time.Time) error {
		raw, err := encodeFields(fields.Resolve(now))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (path, collection, id, fields) VALUES ($1, $2, $3, $4)",
			path, collection, id, raw)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	collection, id, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx *sql.Tx, now time.Time) error {
		raw, err := encodeFields(fields.Resolve(now))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, id, fields) VALUES ($1, $2, $3, $4)
			ON CONFLICT (path) DO UPDATE SET fields = EXCLUDED.fields, updated_at = CURRENT_TIMESTAMP`,
			path, collection, id, raw)
		return err
	})
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	collection, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx *sql.Tx, now time.Time) error {
		raw, err := encodeFields(fields.Resolve(now))
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET fields = fields || $2::jsonb, updated_at = CURRENT_TIMESTAMP WHERE path = $1",
			path, raw)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, _, err := docstore.SplitDoc(path)
	if err != nil {
		return err
	}

	return s.write(ctx, collection, func(tx *sql.Tx, _ time.Time) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = $1", path)
		return err
	})
}

// write runs fn in a transaction stamped with the database clock and
// announces the change to listeners on commit.
func (s *Store) write(ctx context.Context, collection string, fn func(tx *sql.Tx, now time.Time) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var now time.Time
	if err := tx.QueryRowContext(ctx, "SELECT clock_timestamp()").Scan(&now); err != nil {
		return err
	}

	if err := fn(tx, now.UTC()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", changesChannel, collection); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	sub := &subscription{ctx: ctx, query: q}
	sub.feed = docstore.NewFeed(func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})

	// register first so a change racing the initial read is not lost
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	snap, err := s.query(ctx, q)
	if err != nil {
		sub.feed.Close()
		return nil, err
	}
	sub.feed.Publish(snap)

	go func() {
		select {
		case <-ctx.Done():
			sub.feed.Close()
		case <-sub.feed.Done():
		}
	}()

	return sub.feed, nil
}

func (s *Store) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// nil means the connection was re-established and
			// notifications may have been missed
			collection := ""
			if n != nil {
				collection = n.Extra
			}
			s.refresh(collection)
		case <-time.After(90 * time.Second):
			go s.listener.Ping()
		}
	}
}

func (s *Store) refresh(collection string) {
	s.mu.Lock()
	var targets []*subscription
	for sub := range s.subs {
		if collection == "" || sub.query.Collection == collection {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range targets {
		snap, err := s.query(sub.ctx, sub.query)
		if err != nil {
			if sub.ctx.Err() == nil {
				s.log.Error("refresh snapshot", slog.String("collection", sub.query.Collection), logging.DbErr("query", err))
				sub.feed.Fail(err)
			}
			continue
		}
		sub.feed.Publish(snap)
	}
}

func (s *Store) query(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	filter := make(map[string]any, len(q.Where))
	for _, f := range q.Where {
		filter[f.Field] = f.Value
	}
	rawFilter, err := encodeFields(filter)
	if err != nil {
		return docstore.Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb ORDER BY seq",
		q.Collection, rawFilter)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			doc docstore.Document
			raw []byte
		)
		if err := rows.Scan(&doc.Id, &doc.Path, &raw); err != nil {
			return docstore.Snapshot{}, err
		}
		if doc.Fields, err = decodeFields(raw); err != nil {
			return docstore.Snapshot{}, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return docstore.Snapshot{}, err
	}

	if q.OrderBy.Field != "" {
		sort.Slice(docs, func(i, j int) bool { return docstore.Less(docs[i], docs[j], q.OrderBy) })
	}
	return docstore.Snapshot{Docs: docs, ReadAt: time.Now()}, nil
}

func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.feed.Close()
	}

	return errors.Join(s.listener.Close(), s.db.Close())
}

const timeKey = "$ts"

// encodeFields marshals fields to JSON, tagging timestamps so they decode
// back to time.Time instead of plain strings.
func encodeFields(f map[string]any) ([]byte, error) {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if t, ok := v.(time.Time); ok {
			out[k] = map[string]string{timeKey: t.UTC().Format(time.RFC3339Nano)}
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func decodeFields(raw []byte) (docstore.Fields, error) {
	var f docstore.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	for k, v := range f {
		m, ok := v.(map[string]any)
		if !ok || len(m) != 1 {
			continue
		}
		s, ok := m[timeKey].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		f[k] = t
	}
	return f, nil
}
