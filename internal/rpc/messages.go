package rpc

import (
	"time"

	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/models"
)

type Account struct {
	Id          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

func AccountFromIdentity(id *models.Identity) Account {
	return Account{Id: id.Id, Email: id.Email, DisplayName: id.DisplayName}
}

func (a Account) Identity() *models.Identity {
	return &models.Identity{Id: a.Id, Email: a.Email, DisplayName: a.DisplayName}
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Account Account `json:"account"`
	Token   string  `json:"token"`
}

type SignOutRequest struct{}

type SignOutResponse struct{}

type UpdateDisplayNameRequest struct {
	DisplayName string `json:"display_name"`
}

type MeRequest struct{}

type AccountResponse struct {
	Account Account `json:"account"`
}

// Fields is a document body on the wire. Server timestamp sentinels are
// listed by key since they have no JSON value.
type Fields struct {
	Values           map[string]any `json:"values"`
	ServerTimestamps []string       `json:"server_timestamps,omitempty"`
}

func EncodeFields(f docstore.Fields) Fields {
	out := Fields{Values: make(map[string]any, len(f)), ServerTimestamps: f.ServerTimestampKeys()}
	for k, v := range f {
		if docstore.IsServerTimestamp(v) {
			continue
		}
		out.Values[k] = v
	}
	return out
}

func (f Fields) Decode() docstore.Fields {
	out := make(docstore.Fields, len(f.Values)+len(f.ServerTimestamps))
	for k, v := range f.Values {
		out[k] = v
	}
	for _, k := range f.ServerTimestamps {
		out[k] = docstore.ServerTimestamp
	}
	return out
}

type CreateRequest struct {
	Collection string `json:"collection"`
	Fields     Fields `json:"fields"`
}

type CreateResponse struct {
	Id string `json:"id"`
}

type SetRequest struct {
	Path   string `json:"path"`
	Fields Fields `json:"fields"`
}

type UpdateRequest struct {
	Path   string `json:"path"`
	Fields Fields `json:"fields"`
}

type DeleteRequest struct {
	Path string `json:"path"`
}

type WriteResponse struct{}

type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type Order struct {
	Field      string `json:"field,omitempty"`
	Descending bool   `json:"descending,omitempty"`
}

type SubscribeRequest struct {
	Collection string   `json:"collection"`
	Where      []Filter `json:"where,omitempty"`
	OrderBy    Order    `json:"order_by"`
}

func EncodeQuery(q docstore.Query) *SubscribeRequest {
	req := &SubscribeRequest{
		Collection: q.Collection,
		OrderBy:    Order{Field: q.OrderBy.Field, Descending: q.OrderBy.Descending},
	}
	for _, f := range q.Where {
		req.Where = append(req.Where, Filter{Field: f.Field, Value: f.Value})
	}
	return req
}

func (r *SubscribeRequest) Query() docstore.Query {
	q := docstore.Query{
		Collection: r.Collection,
		OrderBy:    docstore.Order{Field: r.OrderBy.Field, Descending: r.OrderBy.Descending},
	}
	for _, f := range r.Where {
		q.Where = append(q.Where, docstore.Filter{Field: f.Field, Value: f.Value})
	}
	return q
}

type Document struct {
	Id     string         `json:"id"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
}

type Snapshot struct {
	Documents []Document `json:"documents"`
	ReadAt    time.Time  `json:"read_at"`
}

func EncodeSnapshot(s docstore.Snapshot) *Snapshot {
	out := &Snapshot{Documents: make([]Document, 0, len(s.Docs)), ReadAt: s.ReadAt}
	for _, d := range s.Docs {
		out.Documents = append(out.Documents, Document{Id: d.Id, Path: d.Path, Fields: d.Fields})
	}
	return out
}

func (s *Snapshot) Decode() docstore.Snapshot {
	out := docstore.Snapshot{Docs: make([]docstore.Document, 0, len(s.Documents)), ReadAt: s.ReadAt}
	for _, d := range s.Documents {
		out.Docs = append(out.Docs, docstore.Document{Id: d.Id, Path: d.Path, Fields: docstore.Fields(d.Fields)})
	}
	return out
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchHit struct {
	Id        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}
