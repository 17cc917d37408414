package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSendTaskEvent(t *testing.T) {
	w := &fakeWriter{}
	e := &EventsProducer{producer: &producer{writer: w}, eventsTopic: "task-events"}

	err := e.SendTaskEvent(context.Background(), &models.EventMessage{
		Email:    "ann@example.com",
		Type:     EventCreate,
		UserId:   "u1",
		TaskId:   "t1",
		TaskText: "Buy milk",
	})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "task-events", msg.Topic)
	assert.Equal(t, []byte("u1"), msg.Key)

	var got models.EventMessage
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "create", got.Type)
	assert.Equal(t, "Buy milk", got.TaskText)

	require.NoError(t, e.Close())
	assert.True(t, w.closed)
}

func TestSendTaskEventWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	e := &EventsProducer{producer: &producer{writer: &fakeWriter{err: boom}}, eventsTopic: "task-events"}

	err := e.SendTaskEvent(context.Background(), &models.EventMessage{Type: EventDelete, UserId: "u1"})
	assert.ErrorIs(t, err, boom)
}
