package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Novip1906/taskmaster/internal/models"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   string
}

// fakeES answers like a single-node cluster and records every request.
func fakeES(t *testing.T, indexExists bool, searchBody string) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodHead && !indexExists:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/tasks/_search":
			io.WriteString(w, searchBody)
		default:
			io.WriteString(w, `{"result":"ok"}`)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestNewClientCreatesMissingIndex(t *testing.T) {
	srv, reqs := fakeES(t, false, "")

	_, err := NewClient([]string{srv.URL}, "tasks", logging.Discard())
	require.NoError(t, err)

	got := reqs()
	require.Len(t, got, 2)
	assert.Equal(t, http.MethodHead, got[0].method)
	assert.Equal(t, http.MethodPut, got[1].method)
	assert.Equal(t, "/tasks", got[1].path)
	assert.Contains(t, got[1].body, `"user_id": { "type": "keyword" }`)
}

func TestSearchFiltersByOwner(t *testing.T) {
	srv, reqs := fakeES(t, true, `{"hits":{"hits":[{"_source":{"id":"t1","user_id":"u1","text":"Buy milk","completed":true,"created_at":"2026-01-02T03:04:05Z"}}]}}`)
	c, err := NewClient([]string{srv.URL}, "tasks", logging.Discard())
	require.NoError(t, err)

	tasks, err := c.Search(context.Background(), "u1", "milk", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.Task{
		Id:        "t1",
		Text:      "Buy milk",
		Completed: true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		OwnerId:   "u1",
	}, tasks[0])

	last := reqs()[len(reqs())-1]
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.body), &body))
	assert.EqualValues(t, defaultLimit, body["size"])
	filter := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"user_id": "u1"}}, filter[0])
}

func TestIndexUpdateDelete(t *testing.T) {
	srv, reqs := fakeES(t, true, "")
	c, err := NewClient([]string{srv.URL}, "tasks", logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.IndexTask(ctx, models.Task{Id: "t1", Text: "A", OwnerId: "u1"}))
	require.NoError(t, c.UpdateCompleted(ctx, "t1", true))
	require.NoError(t, c.DeleteTask(ctx, "t1"))

	got := reqs()[1:]
	require.Len(t, got, 3)
	assert.Equal(t, "/tasks/_doc/t1", got[0].path)
	assert.Contains(t, got[0].body, `"user_id":"u1"`)
	assert.Equal(t, "/tasks/_update/t1", got[1].path)
	assert.JSONEq(t, `{"doc":{"completed":true}}`, got[1].body)
	assert.Equal(t, http.MethodDelete, got[2].method)
}
