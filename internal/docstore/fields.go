package docstore

import (
	"sort"
	"strings"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is a field value sentinel replaced by the store's clock
// when the document is written.
var ServerTimestamp any = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

type Fields map[string]any

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Resolve returns a copy with every ServerTimestamp replaced by now.
func (f Fields) Resolve(now time.Time) Fields {
	out := f.Clone()
	for k, v := range out {
		if IsServerTimestamp(v) {
			out[k] = now
		}
	}
	return out
}

// ServerTimestampKeys lists the fields holding the sentinel, sorted.
func (f Fields) ServerTimestampKeys() []string {
	var keys []string
	for k, v := range f {
		if IsServerTimestamp(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Time reads a timestamp field. Values that crossed a JSON boundary arrive
// as RFC 3339 strings and are parsed back.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// Less orders two documents by field for a query ordering. Ties are broken
// by document id so the order is total.
func Less(a, b Document, o Order) bool {
	c := compareField(a.Fields[o.Field], b.Fields[o.Field])
	if c == 0 {
		c = strings.Compare(a.Id, b.Id)
	}
	if o.Descending {
		return c > 0
	}
	return c < 0
}

func compareField(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case bool:
		bv, _ := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return 0
}
