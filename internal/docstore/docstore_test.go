package docstore

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDoc(t *testing.T) {
	col, id, err := SplitDoc("users/u1/todos/t1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/todos", col)
	assert.Equal(t, "t1", id)

	_, _, err = SplitDoc("users/u1/todos")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = SplitDoc("users//todos/t1")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestValidateCollection(t *testing.T) {
	assert.NoError(t, ValidateCollection("users"))
	assert.NoError(t, ValidateCollection("users/u1/todos"))
	assert.ErrorIs(t, ValidateCollection("users/u1"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateCollection(""), ErrInvalidPath)
}

func TestOwner(t *testing.T) {
	assert.Equal(t, "u1", Owner("users/u1"))
	assert.Equal(t, "u1", Owner("users/u1/todos/t9"))
	assert.Equal(t, "", Owner("teams/u1/todos"))
	assert.Equal(t, "", Owner("users"))
}

func TestResolveServerTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Fields{"text": "Buy milk", "createdAt": ServerTimestamp}

	out := in.Resolve(now)

	assert.Equal(t, now, out["createdAt"])
	assert.True(t, IsServerTimestamp(in["createdAt"]), "input must not be mutated")
	assert.Equal(t, []string{"createdAt"}, in.ServerTimestampKeys())
	assert.Empty(t, out.ServerTimestampKeys())
}

func TestFieldsTimeParsesStrings(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	f := Fields{"a": ts, "b": ts.Format(time.RFC3339Nano), "c": 42}

	assert.True(t, ts.Equal(f.Time("a")))
	assert.True(t, ts.Equal(f.Time("b")))
	assert.True(t, f.Time("c").IsZero())
}

func TestQueryMatches(t *testing.T) {
	q := Query{Where: []Filter{{Field: "userId", Value: "u1"}}}

	assert.True(t, q.Matches(Fields{"userId": "u1", "text": "x"}))
	assert.False(t, q.Matches(Fields{"userId": "u2"}))
	assert.False(t, q.Matches(Fields{"text": "x"}))
}

func TestLessOrdersDescendingByTime(t *testing.T) {
	base := time.Now()
	docs := []Document{
		{Id: "a", Fields: Fields{"createdAt": base}},
		{Id: "c", Fields: Fields{"createdAt": base.Add(2 * time.Second)}},
		{Id: "b", Fields: Fields{"createdAt": base.Add(time.Second)}},
	}
	o := Order{Field: "createdAt", Descending: true}

	sort.Slice(docs, func(i, j int) bool { return Less(docs[i], docs[j], o) })

	assert.Equal(t, "c", docs[0].Id)
	assert.Equal(t, "b", docs[1].Id)
	assert.Equal(t, "a", docs[2].Id)
}
