// Package mongodoc is a core.DocumentStore backed by MongoDB.
// Transactions and change streams require a replica set.
package mongodoc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/docstore/watch"
)

type (
	// executor runs single operations. Inside a transaction, the mongo session travels in ctx.
	executor struct {
		db *mongo.Database
	}

	Store struct {
		executor
		client *mongo.Client
	}

	changeEvent struct {
		OperationType string `bson:"operationType"`
		FullDocument  bson.M `bson:"fullDocument"`
	}
)

var _ core.DocumentStore = (*Store)(nil)

// Open connects to uri and pings the server.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, core.Unavailable(err, "pinging mongo")
	}
	return &Store{executor: executor{db: client.Database(dbName)}, client: client}, nil
}

func (s *Store) Watch(ctx context.Context, coll, id string) (*core.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}}}
	stream, err := s.db.Collection(coll).Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, wrapErr(err, "watching document")
	}

	// the stream is opened first so that no change is missed between it and the initial read
	initial := core.Snapshot{Document: core.Document{ID: id}}
	doc, err := s.Get(ctx, coll, id)
	switch err {
	case nil:
		initial = core.Snapshot{Document: doc, Exists: true}
	case core.ErrDocNotFound:
	default:
		_ = stream.Close(context.Background())
		cancel()
		return nil, err
	}

	hub := watch.NewHub()
	inner := hub.Subscribe(ctx, coll, id, initial)
	go func() {
		defer func() { _ = stream.Close(context.Background()) }()
		for stream.Next(ctx) {
			var evt changeEvent
			if err := stream.Decode(&evt); err != nil {
				continue
			}
			snap := core.Snapshot{Document: core.Document{ID: id}}
			if evt.OperationType != "delete" && evt.FullDocument != nil {
				snap = core.Snapshot{Document: toDocument(evt.FullDocument), Exists: true}
			}
			hub.Publish(coll, id, snap)
		}
		hub.Close()
	}()

	return core.NewSubscription(inner.C, func() {
		inner.Close()
		cancel()
	}), nil
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx core.DocExecutor) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return wrapErr(err, "starting session")
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &s.executor)
	})
	return err
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(s.client.Disconnect(ctx), "disconnecting from mongo")
}

func (e *executor) Get(ctx context.Context, coll, id string) (core.Document, error) {
	var m bson.M
	if err := e.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return core.Document{ID: id}, core.ErrDocNotFound
		}
		return core.Document{}, wrapErr(err, "finding document")
	}
	return toDocument(m), nil
}

func (e *executor) Query(ctx context.Context, coll string, filter core.Filter) ([]core.Document, error) {
	f := bson.M{}
	for k, v := range filter {
		f[k] = v
	}
	cur, err := e.db.Collection(coll).Find(ctx, f, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrapErr(err, "querying documents")
	}
	var ms []bson.M
	if err = cur.All(ctx, &ms); err != nil {
		return nil, wrapErr(err, "reading documents")
	}
	docs := make([]core.Document, 0, len(ms))
	for _, m := range ms {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (e *executor) Create(ctx context.Context, coll string, fields core.Fields) (string, error) {
	id := primitive.NewObjectID().Hex()
	if err := e.CreateWithID(ctx, coll, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (e *executor) CreateWithID(ctx context.Context, coll, id string, fields core.Fields) error {
	m := bson.M{"_id": id}
	for k, v := range core.ResolveTimestamps(fields, time.Now()) {
		m[k] = v
	}
	if _, err := e.db.Collection(coll).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ErrDocExists
		}
		return wrapErr(err, "inserting document")
	}
	return nil
}

func (e *executor) Increment(ctx context.Context, coll, id, field string, delta int64) error {
	res, err := e.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return wrapErr(err, "incrementing field")
	}
	if res.MatchedCount == 0 {
		return core.ErrDocNotFound
	}
	return nil
}

func (e *executor) Delete(ctx context.Context, coll, id string) error {
	res, err := e.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(err, "deleting document")
	}
	if res.DeletedCount == 0 {
		return core.ErrDocNotFound
	}
	return nil
}

func wrapErr(err error, msg string) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return core.Unavailable(err, msg)
	}
	return errors.Wrap(err, msg)
}

func toDocument(m bson.M) core.Document {
	id, _ := m["_id"].(string)
	flds := make(core.Fields, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		flds[k] = fromBSON(v)
	}
	return core.Document{ID: id, Fields: flds}
}

func fromBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case int32:
		return int64(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.A:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = fromBSON(item)
		}
		return items
	case primitive.D:
		return fromBSON(val.Map())
	case bson.M:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = fromBSON(item)
		}
		return m
	default:
		return v
	}
}
