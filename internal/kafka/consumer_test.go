package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs   chan kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type handlerFunc func(ctx context.Context, event *models.EventMessage) error

func (f handlerFunc) HandleTaskEvent(ctx context.Context, event *models.EventMessage) error {
	return f(ctx, event)
}

func eventMessage(t *testing.T, event models.EventMessage) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Topic: "task-events", Value: data}
}

func TestConsumerDeliversEvents(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 4)}

	var mu sync.Mutex
	var got []models.EventMessage
	c := newConsumer(reader, "task-events", handlerFunc(func(_ context.Context, e *models.EventMessage) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, *e)
		return nil
	}), logging.Discard())

	reader.msgs <- kafka.Message{Value: []byte("{not json")}
	reader.msgs <- eventMessage(t, models.EventMessage{Type: EventCreate, TaskId: "t1", TaskText: "Buy milk"})
	reader.msgs <- eventMessage(t, models.EventMessage{Type: EventUpdate, TaskId: "t1", Completed: true})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, c.Stop())
	assert.True(t, reader.closed)

	assert.Equal(t, "Buy milk", got[0].TaskText)
	assert.True(t, got[1].Completed)
}

func TestConsumerRetriesFailedEvents(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}

	var mu sync.Mutex
	attempts := 0
	c := newConsumer(reader, "task-events", handlerFunc(func(context.Context, *models.EventMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("index unavailable")
		}
		return nil
	}), logging.Discard())
	c.retryDelay = time.Millisecond

	reader.msgs <- eventMessage(t, models.EventMessage{Type: EventDelete, TaskId: "t1"})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, c.Stop())
}
