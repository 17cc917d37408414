// Package firestore adapts Cloud Firestore to the docstore boundary.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Store struct {
	client *firestore.Client
	log    *slog.Logger
}

// New connects to projectID. With FIRESTORE_EMULATOR_HOST set the client
// talks to the emulator and credentialsFile may be empty.
func New(ctx context.Context, projectID, credentialsFile string, log *slog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	return &Store{
		client: client,
		log:    log.With(slog.String("component", "docstore.firestore")),
	}, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(fields))
	if err != nil {
		return "", mapErr(err)
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, path string, fields docstore.Fields) error {
	if _, _, err := docstore.SplitDoc(path); err != nil {
		return err
	}
	_, err := s.client.Doc(path).Set(ctx, toFirestore(fields))
	return mapErr(err)
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Fields) error {
	if _, _, err := docstore.SplitDoc(path); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := s.client.Doc(path).Update(ctx, updates)
	return mapErr(err)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.SplitDoc(path); err != nil {
		return err
	}
	_, err := s.client.Doc(path).Delete(ctx)
	return mapErr(err)
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Where {
		query = query.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy.Field != "" {
		dir := firestore.Asc
		if q.OrderBy.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy.Field, dir)
	}

	ctx, cancel := context.WithCancel(ctx)
	it := query.Snapshots(ctx)
	feed := docstore.NewFeed(cancel)

	go func() {
		defer it.Stop()
		defer cancel()
		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
					feed.Close()
					return
				}
				s.log.Error("snapshot listener", slog.String("collection", q.Collection), logging.Err(err))
				feed.Fail(mapErr(err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				s.log.Error("read snapshot", slog.String("collection", q.Collection), logging.Err(err))
				feed.Fail(mapErr(err))
				return
			}

			out := make([]docstore.Document, 0, len(docs))
			for _, d := range docs {
				out = append(out, docstore.Document{
					Id:     d.Ref.ID,
					Path:   docstore.Join(q.Collection, d.Ref.ID),
					Fields: docstore.Fields(d.Data()),
				})
			}
			if !feed.Publish(docstore.Snapshot{Docs: out, ReadAt: snap.ReadTime}) {
				return
			}
		}
	}()

	return feed, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toFirestore(f docstore.Fields) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if docstore.IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC()
			continue
		}
		out[k] = v
	}
	return out
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case codes.FailedPrecondition:
		// missing composite index
		return fmt.Errorf("%w: %v", docstore.ErrUnsupportedOp, err)
	}
	return err
}
