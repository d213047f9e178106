// Package pgdoc is a core.DocumentStore backed by a single PostgreSQL jsonb table.
package pgdoc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/docstore/watch"
)

const (
	notifyChannel = "documents"
	maxTxAttempts = 5
)

type (
	executor struct {
		q sqlx.ExtContext
	}

	Store struct {
		executor
		db       *sqlx.DB
		listener *pq.Listener
		hub      *watch.Hub
		logger   core.Logger
		done     chan struct{}
	}

	notification struct {
		Collection string `json:"collection"`
		ID         string `json:"id"`
	}
)

var _ core.DocumentStore = (*Store)(nil)

// Open connects to the database at uri, waits for it to be ready and starts listening to document changes.
// The schema is expected to be migrated (see Migrate).
func Open(ctx context.Context, uri string, logger core.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", uri)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	listener := pq.NewListener(uri, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("documents listener: "+err.Error(), err)
		}
	})
	if err = listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		_ = db.Close()
		return nil, core.Unavailable(err, "listening to document changes")
	}

	s := &Store{
		executor: executor{q: db},
		db:       db,
		listener: listener,
		hub:      watch.NewHub(),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.listen()
	return s, nil
}

// DB exposes the underlying connection pool (migrations).
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 10
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return core.Unavailable(ctx.Err(), "pinging database")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return core.Unavailable(err, "DB ping timeout")
}

func (s *Store) listen() {
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil { // reconnected; changes may have been missed
				continue
			}
			var evt notification
			if err := json.Unmarshal([]byte(n.Extra), &evt); err != nil {
				s.logger.Error("decoding document notification", err)
				continue
			}
			if s.hub.Watched(evt.Collection, evt.ID) {
				s.publish(evt.Collection, evt.ID)
			}
		}
	}
}

func (s *Store) publish(coll, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := s.snapshot(ctx, coll, id)
	if err != nil {
		s.logger.Error("reading watched document", err)
		return
	}
	s.hub.Publish(coll, id, snap)
}

func (s *Store) snapshot(ctx context.Context, coll, id string) (core.Snapshot, error) {
	doc, err := s.Get(ctx, coll, id)
	switch err {
	case nil:
		return core.Snapshot{Document: doc, Exists: true}, nil
	case core.ErrDocNotFound:
		return core.Snapshot{Document: core.Document{ID: id}}, nil
	default:
		return core.Snapshot{}, err
	}
}

func (s *Store) Watch(ctx context.Context, coll, id string) (*core.Subscription, error) {
	initial, err := s.snapshot(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	sub := s.hub.Subscribe(ctx, coll, id, initial)

	// catch up on a change notified before the subscription existed
	if snap, err := s.snapshot(ctx, coll, id); err == nil && !reflect.DeepEqual(snap, initial) {
		s.hub.Publish(coll, id, snap)
	}
	return sub, nil
}

// RunInTransaction runs fn in a serializable transaction, retried when it fails to serialize.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocExecutor) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		if err = s.runInTransaction(ctx, fn); !isSerializationFailure(err) {
			return err
		}
	}
	return errors.Wrap(err, "transaction retries exhausted")
}

func (s *Store) runInTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocExecutor) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapErr(err, "beginning transaction")
	}
	if err = fn(ctx, &executor{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrapErr(tx.Commit(), "committing transaction")
}

func (s *Store) Close() error {
	close(s.done)
	s.hub.Close()
	_ = s.listener.Close()
	return errors.Wrap(s.db.Close(), "closing database")
}

func (e *executor) Get(ctx context.Context, coll, id string) (core.Document, error) {
	var data []byte
	err := sqlx.GetContext(ctx, e.q, &data, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, coll, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Document{ID: id}, core.ErrDocNotFound
		}
		return core.Document{}, wrapErr(err, "selecting document")
	}
	return toDocument(id, data)
}

func (e *executor) Query(ctx context.Context, coll string, filter core.Filter) ([]core.Document, error) {
	if filter == nil {
		filter = core.Filter{}
	}
	f, err := json.Marshal(filter)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling filter")
	}

	rows := []struct {
		ID   string `db:"id"`
		Data []byte `db:"data"`
	}{}
	q := `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY id`
	if err = sqlx.SelectContext(ctx, e.q, &rows, q, coll, string(f)); err != nil {
		return nil, wrapErr(err, "selecting documents")
	}

	docs := make([]core.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := toDocument(row.ID, row.Data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (e *executor) Create(ctx context.Context, coll string, fields core.Fields) (string, error) {
	id := uuid.NewString()
	if err := e.CreateWithID(ctx, coll, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (e *executor) CreateWithID(ctx context.Context, coll, id string, fields core.Fields) error {
	data, err := json.Marshal(core.ResolveTimestamps(fields, time.Now()))
	if err != nil {
		return errors.Wrap(err, "marshalling document")
	}
	res, err := e.q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb) ON CONFLICT DO NOTHING`,
		coll, id, string(data),
	)
	if err != nil {
		return wrapErr(err, "inserting document")
	}
	return checkAffected(res, core.ErrDocExists)
}

func (e *executor) Increment(ctx context.Context, coll, id, field string, delta int64) error {
	res, err := e.q.ExecContext(ctx,
		`UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3)::bigint, 0) + $4::bigint))
		WHERE collection = $1 AND id = $2`,
		coll, id, field, delta,
	)
	if err != nil {
		return wrapErr(err, "incrementing field")
	}
	return checkAffected(res, core.ErrDocNotFound)
}

func (e *executor) Delete(ctx context.Context, coll, id string) error {
	res, err := e.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, coll, id)
	if err != nil {
		return wrapErr(err, "deleting document")
	}
	return checkAffected(res, core.ErrDocNotFound)
}

func checkAffected(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return errNone
	}
	return nil
}

func toDocument(id string, data []byte) (core.Document, error) {
	flds, err := core.ToFields(json.RawMessage(data))
	if err != nil {
		return core.Document{}, err
	}
	return core.Document{ID: id, Fields: flds}, nil
}

func isSerializationFailure(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "40001"
}

func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return core.Unavailable(err, msg)
	}
	return errors.Wrap(err, msg)
}

func isUnavailable(err error) bool {
	if err == driver.ErrBadConn {
		return true
	}
	if _, ok := err.(net.Error); ok {
		return true
	}
	if pqErr, ok := err.(*pq.Error); ok {
		class := string(pqErr.Code.Class())
		return class == "08" || strings.HasPrefix(string(pqErr.Code), "57P")
	}
	return false
}
