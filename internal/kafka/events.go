package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/models"
)

const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// EventsProducer publishes task events keyed by user id so one user's events
// stay ordered within a partition.
type EventsProducer struct {
	producer    *producer
	eventsTopic string
}

func NewEventsProducer(kafkaCfg *config.Kafka) *EventsProducer {
	return &EventsProducer{
		producer:    newProducer(kafkaCfg),
		eventsTopic: kafkaCfg.EventsTopic,
	}
}

func (e *EventsProducer) SendTaskEvent(ctx context.Context, message *models.EventMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal task event message: %w", err)
	}

	err = e.producer.SendMessage(
		ctx,
		e.eventsTopic,
		[]byte(message.UserId),
		jsonData,
	)
	if err != nil {
		return fmt.Errorf("failed to send task event message: %w", err)
	}

	return nil
}

func (e *EventsProducer) Close() error {
	return e.producer.Close()
}
