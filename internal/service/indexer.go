package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Novip1906/taskmaster/internal/kafka"
	"github.com/Novip1906/taskmaster/internal/models"
)

// SearchIndexer applies task events from the events topic to the search
// index.
type SearchIndexer struct {
	index SearchIndex
	log   *slog.Logger
}

func NewSearchIndexer(index SearchIndex, log *slog.Logger) *SearchIndexer {
	return &SearchIndexer{index: index, log: log.With(slog.String("component", "indexer"))}
}

func (i *SearchIndexer) HandleTaskEvent(ctx context.Context, event *models.EventMessage) error {
	switch event.Type {
	case kafka.EventCreate:
		return i.index.IndexTask(ctx, models.Task{
			Id:        event.TaskId,
			Text:      event.TaskText,
			Completed: event.Completed,
			CreatedAt: event.CreatedAt,
			OwnerId:   event.UserId,
		})
	case kafka.EventUpdate:
		return i.index.UpdateCompleted(ctx, event.TaskId, event.Completed)
	case kafka.EventDelete:
		return i.index.DeleteTask(ctx, event.TaskId)
	}
	i.log.Warn("unknown event type", slog.String("type", event.Type))
	return fmt.Errorf("unknown event type %q", event.Type)
}
