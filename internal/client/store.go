package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DocumentStore is a docstore.Store served by the Documents service under
// the identity of auth.
type DocumentStore struct {
	docs *rpc.DocumentsClient
	auth *AuthProvider
	log  *slog.Logger
}

func NewDocumentStore(cc grpc.ClientConnInterface, auth *AuthProvider, log *slog.Logger) *DocumentStore {
	return &DocumentStore{
		docs: rpc.NewDocumentsClient(cc),
		auth: auth,
		log:  log.With(slog.String("component", "document_store")),
	}
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return "", err
	}
	resp, err := s.docs.Create(ctx, &rpc.CreateRequest{Collection: collection, Fields: rpc.EncodeFields(fields)})
	if err != nil {
		return "", s.storeError(err)
	}
	return resp.Id, nil
}

func (s *DocumentStore) Set(ctx context.Context, path string, fields docstore.Fields) error {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return err
	}
	_, err = s.docs.Set(ctx, &rpc.SetRequest{Path: path, Fields: rpc.EncodeFields(fields)})
	return s.storeError(err)
}

func (s *DocumentStore) Update(ctx context.Context, path string, fields docstore.Fields) error {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return err
	}
	_, err = s.docs.Update(ctx, &rpc.UpdateRequest{Path: path, Fields: rpc.EncodeFields(fields)})
	return s.storeError(err)
}

func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return err
	}
	_, err = s.docs.Delete(ctx, &rpc.DeleteRequest{Path: path})
	return s.storeError(err)
}

// Search runs a full-text query over the signed-in user's tasks.
func (s *DocumentStore) Search(ctx context.Context, query string, limit int) ([]rpc.SearchHit, error) {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.docs.Search(ctx, &rpc.SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, s.storeError(err)
	}
	return resp.Hits, nil
}

func (s *DocumentStore) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	ctx, err := s.auth.authorize(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := s.docs.Subscribe(ctx, rpc.EncodeQuery(q))
	if err != nil {
		cancel()
		return nil, err
	}

	feed := docstore.NewFeed(cancel)
	go s.receive(ctx, stream, feed)
	return feed, nil
}

func (s *DocumentStore) receive(ctx context.Context, stream grpc.ServerStreamingClient[rpc.Snapshot], feed *docstore.Feed) {
	for {
		snap, err := stream.Recv()
		if err != nil {
			switch {
			case ctx.Err() != nil || feed.Closed():
				feed.Close()
			case errors.Is(err, io.EOF):
				feed.Fail(docstore.ErrSubscriptionEnd)
			default:
				s.log.Warn("subscription stream", logging.Err(err))
				feed.Fail(s.storeError(err))
			}
			return
		}
		if !feed.Publish(snap.Decode()) {
			return
		}
	}
}

// storeError maps backend statuses onto docstore errors and expires the
// session on Unauthenticated.
func (s *DocumentStore) storeError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", docstore.ErrUnsupportedOp, st.Message())
	case codes.Unauthenticated:
		s.auth.Expire()
	}
	return err
}
