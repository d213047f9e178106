// Package inmem is a core.DocumentStore kept in memory. It is used by tests and local development.
package inmem

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/docstore/watch"
)

var errClosed = errors.New("store closed")

type (
	table map[string]core.Fields // {id: fields}

	docKey struct {
		coll string
		id   string
	}

	Store struct {
		mu     sync.RWMutex
		tables map[string]table
		hub    *watch.Hub
		closed bool

		now   func() time.Time // mockable
		newID func() string    // mockable
	}
)

var _ core.DocumentStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		tables: make(map[string]table),
		hub:    watch.NewHub(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Store) read(ctx context.Context, fn func(tx *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.Unavailable(errClosed, "reading")
	}
	return fn(&txn{s: s})
}

// update runs fn under the write lock and applies its writes only if it succeeds.
func (s *Store) update(ctx context.Context, fn func(tx *txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Unavailable(errClosed, "writing")
	}

	tx := &txn{s: s, written: make(map[string]table), dirty: make(map[docKey]struct{})}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) Get(ctx context.Context, coll, id string) (doc core.Document, err error) {
	err = s.read(ctx, func(tx *txn) error {
		doc, err = tx.get(coll, id)
		return err
	})
	return doc, err
}

func (s *Store) Query(ctx context.Context, coll string, filter core.Filter) (docs []core.Document, err error) {
	err = s.read(ctx, func(tx *txn) error {
		docs = tx.query(coll, filter)
		return nil
	})
	return docs, err
}

func (s *Store) Create(ctx context.Context, coll string, fields core.Fields) (id string, err error) {
	err = s.update(ctx, func(tx *txn) error {
		id, err = tx.create(coll, fields)
		return err
	})
	return id, err
}

func (s *Store) CreateWithID(ctx context.Context, coll, id string, fields core.Fields) error {
	return s.update(ctx, func(tx *txn) error { return tx.createWithID(coll, id, fields) })
}

func (s *Store) Increment(ctx context.Context, coll, id, field string, delta int64) error {
	return s.update(ctx, func(tx *txn) error { return tx.increment(coll, id, field, delta) })
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	return s.update(ctx, func(tx *txn) error { return tx.delete(coll, id) })
}

func (s *Store) Watch(ctx context.Context, coll, id string) (sub *core.Subscription, err error) {
	err = s.read(ctx, func(tx *txn) error {
		// registered under the read lock: no write can slip between the initial snapshot and the subscription
		sub = s.hub.Subscribe(ctx, coll, id, tx.snapshot(coll, id))
		return nil
	})
	return sub, err
}

// RunInTransaction runs fn under the store's write lock; transactions are therefore serialized.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocExecutor) error) error {
	return s.update(ctx, func(tx *txn) error {
		return fn(ctx, &txExecutor{txn: tx, ctx: ctx})
	})
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

// Reset drops every document.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]table)
}

// txn reads from the store's tables and writes to copies of them (copy-on-write per collection).
type txn struct {
	s       *Store
	written map[string]table
	dirty   map[docKey]struct{}
}

func (tx *txn) table(coll string) table {
	if t, ok := tx.written[coll]; ok {
		return t
	}
	return tx.s.tables[coll]
}

func (tx *txn) writable(coll, id string) table {
	tx.dirty[docKey{coll, id}] = struct{}{}
	if t, ok := tx.written[coll]; ok {
		return t
	}
	orig := tx.s.tables[coll]
	t := make(table, len(orig)+1)
	for k, v := range orig {
		t[k] = v
	}
	tx.written[coll] = t
	return t
}

func (tx *txn) commit() {
	for coll, t := range tx.written {
		tx.s.tables[coll] = t
	}
	for k := range tx.dirty {
		tx.s.hub.Publish(k.coll, k.id, tx.snapshot(k.coll, k.id))
	}
}

func (tx *txn) snapshot(coll, id string) core.Snapshot {
	doc, err := tx.get(coll, id)
	return core.Snapshot{Document: doc, Exists: err == nil}
}

func (tx *txn) get(coll, id string) (core.Document, error) {
	flds, ok := tx.table(coll)[id]
	if !ok {
		return core.Document{ID: id}, core.ErrDocNotFound
	}
	return core.Document{ID: id, Fields: copyFields(flds)}, nil
}

func (tx *txn) query(coll string, filter core.Filter) []core.Document {
	t := tx.table(coll)
	docs := make([]core.Document, 0, len(t))
	for id, flds := range t {
		if matches(flds, filter) {
			docs = append(docs, core.Document{ID: id, Fields: copyFields(flds)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (tx *txn) create(coll string, fields core.Fields) (string, error) {
	id := tx.s.newID()
	if err := tx.createWithID(coll, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (tx *txn) createWithID(coll, id string, fields core.Fields) error {
	if _, ok := tx.table(coll)[id]; ok {
		return core.ErrDocExists
	}
	tx.writable(coll, id)[id] = copyFields(core.ResolveTimestamps(fields, tx.s.now()))
	return nil
}

func (tx *txn) increment(coll, id, field string, delta int64) error {
	flds, ok := tx.table(coll)[id]
	if !ok {
		return core.ErrDocNotFound
	}
	var curr int64
	if v, ok := flds[field]; ok && v != nil {
		if curr, ok = core.ToInt64(v); !ok {
			return errors.Errorf("field %q of %s/%s is not numeric", field, coll, id)
		}
	}
	updated := copyFields(flds)
	updated[field] = curr + delta
	tx.writable(coll, id)[id] = updated
	return nil
}

func (tx *txn) delete(coll, id string) error {
	if _, ok := tx.table(coll)[id]; !ok {
		return core.ErrDocNotFound
	}
	delete(tx.writable(coll, id), id)
	return nil
}

// txExecutor exposes a txn as a core.DocExecutor.
type txExecutor struct {
	txn *txn
	ctx context.Context
}

func (e *txExecutor) Get(ctx context.Context, coll, id string) (core.Document, error) {
	if err := e.check(ctx); err != nil {
		return core.Document{}, err
	}
	return e.txn.get(coll, id)
}

func (e *txExecutor) Query(ctx context.Context, coll string, filter core.Filter) ([]core.Document, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	return e.txn.query(coll, filter), nil
}

func (e *txExecutor) Create(ctx context.Context, coll string, fields core.Fields) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	return e.txn.create(coll, fields)
}

func (e *txExecutor) CreateWithID(ctx context.Context, coll, id string, fields core.Fields) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.txn.createWithID(coll, id, fields)
}

func (e *txExecutor) Increment(ctx context.Context, coll, id, field string, delta int64) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.txn.increment(coll, id, field, delta)
}

func (e *txExecutor) Delete(ctx context.Context, coll, id string) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	return e.txn.delete(coll, id)
}

func (e *txExecutor) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.ctx.Err()
}

func matches(flds core.Fields, filter core.Filter) bool {
	for k, want := range filter {
		got, ok := flds[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if ai, ok := core.ToInt64(a); ok {
		if bi, ok := core.ToInt64(b); ok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}

func copyFields(flds core.Fields) core.Fields {
	cp := make(core.Fields, len(flds))
	for k, v := range flds {
		cp[k] = copyValue(v)
	}
	return cp
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case core.Fields:
		return copyFields(val)
	case map[string]interface{}:
		return map[string]interface{}(copyFields(val))
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i, item := range val {
			cp[i] = copyValue(item)
		}
		return cp
	default:
		return v
	}
}
