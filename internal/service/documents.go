package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/contextkeys"
	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/kafka"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const sideEffectTimeout = 5 * time.Second

type SearchIndex interface {
	Search(ctx context.Context, userId, query string, limit int) ([]models.Task, error)
	IndexTask(ctx context.Context, task models.Task) error
	UpdateCompleted(ctx context.Context, taskId string, completed bool) error
	DeleteTask(ctx context.Context, taskId string) error
}

type EventSender interface {
	SendTaskEvent(ctx context.Context, message *models.EventMessage) error
}

// DocumentsService exposes the document store to signed-in users, confined
// to their own users/{uid} subtree. search and events may be nil.
type DocumentsService struct {
	cfg    *config.Config
	log    *slog.Logger
	store  docstore.Store
	search SearchIndex
	events EventSender
}

func NewDocumentsService(cfg *config.Config, log *slog.Logger, store docstore.Store, search SearchIndex, events EventSender) *DocumentsService {
	return &DocumentsService{cfg: cfg, log: log, store: store, search: search, events: events}
}

func (s *DocumentsService) Create(ctx context.Context, req *rpc.CreateRequest) (*rpc.CreateResponse, error) {
	tokenClaims, err := s.authorize(ctx, req.Collection)
	if err != nil {
		return nil, err
	}
	log := contextkeys.GetLogger(ctx).With(slog.String("collection", req.Collection))

	log.Debug("attempt")

	fields := req.Fields.Decode()
	isTask := isTaskCollection(req.Collection)
	if isTask {
		text := strings.TrimSpace(fields.String("text"))
		if !s.textIsValid(text) {
			log.Warn("text len invalid")
			return nil, status.Error(codes.InvalidArgument, ErrInvalidTextMessage)
		}
		if fields.String("userId") != tokenClaims.UserId {
			log.Warn("task owner mismatch", slog.String("owner_id", fields.String("userId")))
			return nil, status.Error(codes.PermissionDenied, ErrTaskOwnerMessage)
		}
		fields["text"] = text
	}
	// stamp here so the indexed task carries the stored createdAt
	fields = fields.Resolve(time.Now().UTC())

	id, err := s.store.Create(ctx, req.Collection, fields)
	if err != nil {
		return nil, s.storeError(log, "Create", err)
	}

	log.Info("document created", slog.String("document_id", id))

	if isTask {
		task := models.Task{
			Id:        id,
			Text:      fields.String("text"),
			Completed: fields.Bool("completed"),
			CreatedAt: fields.Time("createdAt"),
			OwnerId:   tokenClaims.UserId,
		}
		s.afterWrite(ctx, log, tokenClaims, kafka.EventCreate, task, func(ctx context.Context, idx SearchIndex) error {
			return idx.IndexTask(ctx, task)
		})
	}

	return &rpc.CreateResponse{Id: id}, nil
}

func (s *DocumentsService) Set(ctx context.Context, req *rpc.SetRequest) (*rpc.WriteResponse, error) {
	if _, err := s.authorize(ctx, req.Path); err != nil {
		return nil, err
	}
	log := contextkeys.GetLogger(ctx).With(slog.String("path", req.Path))

	if collection, _, err := docstore.SplitDoc(req.Path); err == nil && isTaskCollection(collection) {
		log.Warn("set on task document")
		return nil, status.Error(codes.InvalidArgument, ErrTaskFieldsMessage)
	}

	if err := s.store.Set(ctx, req.Path, req.Fields.Decode()); err != nil {
		return nil, s.storeError(log, "Set", err)
	}

	log.Info("document set")
	return &rpc.WriteResponse{}, nil
}

func (s *DocumentsService) Update(ctx context.Context, req *rpc.UpdateRequest) (*rpc.WriteResponse, error) {
	tokenClaims, err := s.authorize(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	log := contextkeys.GetLogger(ctx).With(slog.String("path", req.Path))

	log.Debug("attempt")

	fields := req.Fields.Decode()
	collection, id, err := docstore.SplitDoc(req.Path)
	if err != nil {
		return nil, s.storeError(log, "Update", err)
	}
	isTask := isTaskCollection(collection)
	if isTask {
		if _, ok := fields["completed"].(bool); !ok || len(fields) != 1 {
			log.Warn("task update with other fields")
			return nil, status.Error(codes.InvalidArgument, ErrTaskFieldsMessage)
		}
	}

	if err := s.store.Update(ctx, req.Path, fields); err != nil {
		return nil, s.storeError(log, "Update", err)
	}

	log.Info("document updated")

	if isTask {
		completed := fields.Bool("completed")
		task := models.Task{Id: id, Completed: completed, OwnerId: tokenClaims.UserId}
		s.afterWrite(ctx, log, tokenClaims, kafka.EventUpdate, task, func(ctx context.Context, idx SearchIndex) error {
			return idx.UpdateCompleted(ctx, id, completed)
		})
	}

	return &rpc.WriteResponse{}, nil
}

func (s *DocumentsService) Delete(ctx context.Context, req *rpc.DeleteRequest) (*rpc.WriteResponse, error) {
	tokenClaims, err := s.authorize(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	log := contextkeys.GetLogger(ctx).With(slog.String("path", req.Path))

	log.Debug("attempt")

	collection, id, err := docstore.SplitDoc(req.Path)
	if err != nil {
		return nil, s.storeError(log, "Delete", err)
	}

	if err := s.store.Delete(ctx, req.Path); err != nil {
		return nil, s.storeError(log, "Delete", err)
	}

	log.Info("document deleted")

	if isTaskCollection(collection) {
		task := models.Task{Id: id, OwnerId: tokenClaims.UserId}
		s.afterWrite(ctx, log, tokenClaims, kafka.EventDelete, task, func(ctx context.Context, idx SearchIndex) error {
			return idx.DeleteTask(ctx, id)
		})
	}

	return &rpc.WriteResponse{}, nil
}

func (s *DocumentsService) Search(ctx context.Context, req *rpc.SearchRequest) (*rpc.SearchResponse, error) {
	tokenClaims, ok := contextkeys.GetTokenClaims(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}
	log := contextkeys.GetLogger(ctx)

	if s.search == nil {
		return nil, status.Error(codes.Unimplemented, ErrSearchDisabledMessage)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, status.Error(codes.InvalidArgument, ErrEmptySearchQueryMessage)
	}

	tasks, err := s.search.Search(ctx, tokenClaims.UserId, query, req.Limit)
	if err != nil {
		log.Error("search error", logging.Err(err))
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}

	hits := make([]rpc.SearchHit, 0, len(tasks))
	for _, t := range tasks {
		if t.OwnerId != tokenClaims.UserId {
			continue
		}
		hits = append(hits, rpc.SearchHit{Id: t.Id, Text: t.Text, Completed: t.Completed, CreatedAt: t.CreatedAt})
	}
	return &rpc.SearchResponse{Hits: hits}, nil
}

func (s *DocumentsService) Subscribe(req *rpc.SubscribeRequest, stream grpc.ServerStreamingServer[rpc.Snapshot]) error {
	ctx := stream.Context()
	tokenClaims, err := s.authorize(ctx, req.Collection)
	if err != nil {
		return err
	}
	log := contextkeys.GetLogger(ctx).With(slog.String("collection", req.Collection))

	q := req.Query()
	if isTaskCollection(q.Collection) && !filtersOwner(q, tokenClaims.UserId) {
		log.Warn("task query without owner filter")
		return status.Error(codes.PermissionDenied, ErrTaskQueryMessage)
	}

	sub, err := s.store.Subscribe(ctx, q)
	if err != nil {
		return s.storeError(log, "Subscribe", err)
	}
	defer sub.Close()

	log.Info("subscription opened")

	for {
		select {
		case <-ctx.Done():
			log.Info("subscription closed by client")
			return nil
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil {
					return s.storeError(log, "Subscribe", err)
				}
				return status.Error(codes.Aborted, ErrSubscriptionEndedMessage)
			}
			if err := stream.Send(rpc.EncodeSnapshot(snap)); err != nil {
				log.Warn("send snapshot", logging.Err(err))
				return err
			}
		}
	}
}

// authorize confines path to the caller's users/{uid} subtree.
func (s *DocumentsService) authorize(ctx context.Context, path string) (*contextkeys.TokenClaims, error) {
	tokenClaims, ok := contextkeys.GetTokenClaims(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, ErrInternalMessage)
	}
	if owner := docstore.Owner(path); owner == "" || owner != tokenClaims.UserId {
		contextkeys.GetLogger(ctx).Warn("path outside of user tree", slog.String("path", path))
		return nil, status.Error(codes.PermissionDenied, ErrPermissionDeniedMessage)
	}
	return tokenClaims, nil
}

// afterWrite reports a task mutation before the handler returns, so events
// and index writes follow the order of the writes themselves. With events
// enabled the search index is fed from the events topic, otherwise it is
// updated here. Failures are logged only.
func (s *DocumentsService) afterWrite(ctx context.Context, log *slog.Logger, claims *contextkeys.TokenClaims, eventType string, task models.Task, index func(context.Context, SearchIndex) error) {
	if s.events == nil && s.search == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.events == nil {
		if err := index(ctx, s.search); err != nil {
			log.Error("search index error", slog.String("task_id", task.Id), logging.Err(err))
		}
		return
	}

	err := s.events.SendTaskEvent(ctx, &models.EventMessage{
		Email:     claims.Email,
		Username:  claims.DisplayName,
		Type:      eventType,
		UserId:    claims.UserId,
		TaskId:    task.Id,
		TaskText:  task.Text,
		Completed: task.Completed,
		CreatedAt: task.CreatedAt,
	})
	if err != nil {
		log.Error("kafka error", slog.String("event-type", eventType), logging.Err(err))
		return
	}
	log.Debug("kafka event message sent", slog.String("event-type", eventType))
}

func (s *DocumentsService) storeError(log *slog.Logger, method string, err error) error {
	switch {
	case errors.Is(err, docstore.ErrInvalidPath):
		log.Warn("invalid path", logging.Err(err))
		return status.Error(codes.InvalidArgument, ErrInvalidPathMessage)
	case errors.Is(err, docstore.ErrNotFound):
		log.Warn("document not found", logging.Err(err))
		return status.Error(codes.NotFound, ErrDocumentNotFoundMessage)
	case errors.Is(err, docstore.ErrUnsupportedOp):
		log.Warn("unsupported query", logging.Err(err))
		return status.Error(codes.FailedPrecondition, ErrUnsupportedQueryMessage)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	log.Error("store error", logging.DbErr(method, err))
	return status.Error(codes.Internal, ErrInternalMessage)
}

func (s *DocumentsService) textIsValid(text string) bool {
	return lengthIsValid(text, s.cfg.Params.Text, 1)
}

// isTaskCollection reports whether collection is users/{uid}/todos.
func isTaskCollection(collection string) bool {
	segs := strings.Split(collection, "/")
	return len(segs) == 3 && segs[0] == "users" && segs[2] == "todos"
}

func filtersOwner(q docstore.Query, uid string) bool {
	for _, f := range q.Where {
		if f.Field == "userId" {
			v, ok := f.Value.(string)
			return ok && v == uid
		}
	}
	return false
}
