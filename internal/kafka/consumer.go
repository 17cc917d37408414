package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/segmentio/kafka-go"
)

const maxRetries = 3

type EventHandler interface {
	HandleTaskEvent(ctx context.Context, event *models.EventMessage) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer feeds task events from the events topic to a handler. Each
// message is retried a few times and then skipped.
type Consumer struct {
	reader     messageReader
	handler    EventHandler
	topic      string
	retryDelay time.Duration
	wg         sync.WaitGroup
	log        *slog.Logger
}

func NewConsumer(kafkaCfg *config.Kafka, handler EventHandler, log *slog.Logger) *Consumer {
	log = log.With(slog.String("topic", kafkaCfg.EventsTopic))
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaCfg.Brokers,
		GroupID:     kafkaCfg.GroupId,
		Topic:       kafkaCfg.EventsTopic,
		MaxAttempts: 3,
		MaxWait:     10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Debug("[KAFKA] " + fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("[KAFKA-ERROR] " + fmt.Sprintf(msg, args...))
		}),
	})
	return newConsumer(reader, kafkaCfg.EventsTopic, handler, log)
}

func newConsumer(reader messageReader, topic string, handler EventHandler, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		handler:    handler,
		topic:      topic,
		retryDelay: time.Second,
		log:        log,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("starting events consumer")

	c.wg.Add(1)
	go c.consume(ctx)
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("stopping events consumer")
				return
			}
			c.log.Error("read message", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		var event models.EventMessage
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("skipping malformed event", slog.Int64("offset", msg.Offset), logging.Err(err))
			continue
		}
		c.handleWithRetry(ctx, msg, &event)
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, event *models.EventMessage) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.handler.HandleTaskEvent(ctx, event); err != nil {
			lastErr = err
			c.log.Warn("failed to process event, retrying",
				slog.Int("attempt", attempt),
				slog.String("task_id", event.TaskId),
				logging.Err(err))

			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(attempt) * c.retryDelay):
				}
			}
			continue
		}

		c.log.Debug("processed event",
			slog.String("type", event.Type),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset))
		return
	}

	c.log.Error("failed to process event after all retries",
		slog.String("task_id", event.TaskId),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		logging.Err(lastErr))
}

// Stop closes the reader and waits for the consumer to exit. ctx passed to
// Start must be cancelled first.
func (c *Consumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	c.log.Info("events consumer stopped")
	return err
}
