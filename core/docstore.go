package core

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Collections
const (
	CoursesCollection     = "courses"
	StudentsCollection    = "students"
	PaymentsCollection    = "payments"
	EnrollmentsCollection = "enrollments"
	LikesCollection       = "likes"
)

var (
	// errors
	ErrDocNotFound = errors.New("document not found")
	ErrDocExists   = errors.New("document already exists")
)

// ServerTimestamp is replaced by the store's own clock when written.
const ServerTimestamp = "__server_timestamp__"

type (
	// Fields holds the named fields of a document.
	Fields map[string]interface{}

	// Filter matches documents whose top-level fields equal all the given values.
	Filter map[string]interface{}

	Document struct {
		ID     string
		Fields Fields
	}

	// Snapshot is the state of a watched document at some point in time.
	Snapshot struct {
		Document
		Exists bool
	}

	DocExecutor interface {
		Get(ctx context.Context, coll, id string) (Document, error)
		Query(ctx context.Context, coll string, filter Filter) ([]Document, error)
		// Create stores a new document under a store-assigned id.
		Create(ctx context.Context, coll string, fields Fields) (string, error)
		// CreateWithID stores a new document under id, unless one already exists (ErrDocExists).
		CreateWithID(ctx context.Context, coll, id string, fields Fields) error
		// Increment atomically adds delta to a numeric field.
		Increment(ctx context.Context, coll, id, field string, delta int64) error
		Delete(ctx context.Context, coll, id string) error
	}

	Transactor interface {
		// RunInTransaction applies all the writes made through tx, or none of them.
		RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx DocExecutor) error) error
	}

	DocumentStore interface {
		DocExecutor
		Transactor

		// Watch delivers the current snapshot of the document, then a new one on every change.
		Watch(ctx context.Context, coll, id string) (*Subscription, error)
		Close() error
	}
)

// Decode copies the document (including its id, as "id") into dst, a pointer to a json-tagged struct.
func (doc Document) Decode(dst interface{}) error {
	flds := make(Fields, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		flds[k] = v
	}
	flds["id"] = doc.ID
	data, err := json.Marshal(flds)
	if err != nil {
		return errors.Wrap(err, "marshalling document")
	}
	return errors.Wrap(json.Unmarshal(data, dst), "unmarshalling document")
}

// ToFields converts a json-tagged struct into Fields. "id" is dropped; integers stay int64.
func ToFields(v interface{}) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling fields")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err = dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "unmarshalling fields")
	}
	delete(raw, "id")
	return Fields(normalizeNumbers(raw).(map[string]interface{})), nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}

// ResolveTimestamps returns a copy of fields where every ServerTimestamp is replaced by now.
func ResolveTimestamps(fields Fields, now time.Time) Fields {
	resolved := make(Fields, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && s == ServerTimestamp {
			resolved[k] = now.UTC()
			continue
		}
		resolved[k] = v
	}
	return resolved
}

// ToInt64 reads a numeric document field, whatever numeric type the store decoded it to.
func ToInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Subscription is a cancellable stream of snapshots.
// Once Close returns, nothing is delivered on C anymore and C is eventually closed.
type Subscription struct {
	C <-chan Snapshot

	cancel func()
	once   sync.Once
}

func NewSubscription(c <-chan Snapshot, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}
