package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v9"

	"github.com/Novip1906/taskmaster/internal/models"
)

const defaultLimit = 20

type Client struct {
	es    *es.Client
	index string
	log   *slog.Logger
}

func NewClient(addresses []string, index string, log *slog.Logger) (*Client, error) {
	cfg := es.Config{
		Addresses: addresses,
	}
	c, err := es.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	client := &Client{
		es:    c,
		index: index,
		log:   log,
	}

	if err := client.ensureIndex(); err != nil {
		return nil, err
	}

	return client, nil
}

type taskDoc struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Search matches text within the tasks of userId, newest first.
func (c *Client) Search(ctx context.Context, userId, query string, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	body, err := json.Marshal(map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{"text": query}},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"user_id": userId}},
				},
			},
		},
		"sort": []any{
			map[string]any{"created_at": map[string]any{"order": "desc"}},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("es search error: %s", res.String())
	}

	var raw struct {
		Hits struct {
			Hits []struct {
				Source taskDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(raw.Hits.Hits))
	for _, h := range raw.Hits.Hits {
		tasks = append(tasks, models.Task{
			Id:        h.Source.Id,
			Text:      h.Source.Text,
			Completed: h.Source.Completed,
			CreatedAt: h.Source.CreatedAt,
			OwnerId:   h.Source.UserId,
		})
	}

	return tasks, nil
}

func (c *Client) IndexTask(ctx context.Context, task models.Task) error {
	body, err := json.Marshal(taskDoc{
		Id:        task.Id,
		UserId:    task.OwnerId,
		Text:      task.Text,
		Completed: task.Completed,
		CreatedAt: task.CreatedAt,
	})
	if err != nil {
		return err
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(task.Id),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("es index error: %s", res.String())
	}

	return nil
}

// UpdateCompleted changes only the completed flag of an indexed task.
func (c *Client) UpdateCompleted(ctx context.Context, taskId string, completed bool) error {
	body, err := json.Marshal(map[string]any{"doc": map[string]any{"completed": completed}})
	if err != nil {
		return err
	}

	res, err := c.es.Update(
		c.index,
		taskId,
		bytes.NewReader(body),
		c.es.Update.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("es update error: %s", res.String())
	}
	return nil
}

func (c *Client) DeleteTask(ctx context.Context, taskId string) error {
	res, err := c.es.Delete(
		c.index,
		taskId,
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es delete error: %s", res.String())
	}
	return nil
}

func (c *Client) ensureIndex() error {
	res, err := c.es.Indices.Exists([]string{c.index})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		c.log.Info("elasticsearch index exists", "index", c.index)
		return nil
	}

	if res.StatusCode != 404 {
		return fmt.Errorf("unexpected status checking index: %s", res.String())
	}

	c.log.Info("creating elasticsearch index", "index", c.index)

	mapping := `
{
  "mappings": {
    "properties": {
      "id": { "type": "keyword" },
      "user_id": { "type": "keyword" },
      "text": { "type": "text" },
      "completed": { "type": "boolean" },
      "created_at": { "type": "date" }
    }
  }
}`

	createRes, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("create index error: %s", createRes.String())
	}

	c.log.Info("elasticsearch index created", "index", c.index)
	return nil
}
