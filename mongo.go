package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type mongoClient struct {
	mu     sync.Mutex
	opts   *mongoOptions.ClientOptions
	client *mongo.Client
}

// NewMongoClient returns a driver-backed Client. Nothing is dialed until
// Connect.
func NewMongoClient(cfg Config) (Client, error) {
	opts := cfg.clientOptions()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &mongoClient{opts: opts}, nil
}

func (m *mongoClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := mongo.Connect(ctx, m.opts)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping failed: %w", err)
	}

	m.client = client
	return nil
}

func (m *mongoClient) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}

func (m *mongoClient) Database(name string) Database {
	m.mu.Lock()
	defer m.mu.Unlock()

	return &mongoDatabase{db: m.client.Database(name)}
}

func (m *mongoClient) StartTransaction(ctx context.Context) (Transaction, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return nil, ErrConnection
	}

	session, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb session: %w", err)
	}

	txnOpts := mongoOptions.Transaction().
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Snapshot())

	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}

	return &mongoTransaction{
		session: session,
		sctx:    mongo.NewSessionContext(ctx, session),
	}, nil
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	return d.db.ListCollectionNames(ctx, bson.D{})
}

func (d *mongoDatabase) CreateCollection(ctx context.Context, name string) error {
	return d.db.CreateCollection(ctx, name)
}

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Find(ctx context.Context, filter any, opts *mongoOptions.FindOptions) ([]Document, error) {
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	docs := make([]Document, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	return docs, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter any) (Document, error) {
	var doc Document
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, wrapMongoError(err)
	}

	return doc, nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc Document) (any, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}

	return res.InsertedID, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter any, update any) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}

	return res.MatchedCount, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter any, opts ...*mongoOptions.CountOptions) (int64, error) {
	return c.coll.CountDocuments(ctx, filter, opts...)
}

// wrapMongoError only maps the missing-document case; every other driver
// error is returned as is.
func wrapMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	return err
}

type mongoTransaction struct {
	session mongo.Session
	sctx    mongo.SessionContext
}

func (tx *mongoTransaction) Context() context.Context {
	return tx.sctx
}

func (tx *mongoTransaction) Rollback(ctx context.Context) error {
	defer tx.session.EndSession(ctx)
	return tx.session.AbortTransaction(ctx)
}

func (tx *mongoTransaction) Commit(ctx context.Context) error {
	defer tx.session.EndSession(ctx)
	return tx.session.CommitTransaction(ctx)
}
