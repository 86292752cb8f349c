package store

import (
	"context"

	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// Client is the store connection the adapter drives. NewMongoClient is the
// default; tests plug their own through Config.ClientFactory.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Database(name string) Database
	StartTransaction(ctx context.Context) (Transaction, error)
}

type Database interface {
	ListCollectionNames(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	Collection(name string) Collection
}

// Collection returns fully decoded documents. FindOne reports a missing
// document with ErrNotFound.
type Collection interface {
	Find(ctx context.Context, filter any, opts *mongoOptions.FindOptions) ([]Document, error)
	FindOne(ctx context.Context, filter any) (Document, error)
	InsertOne(ctx context.Context, doc Document) (insertedID any, err error)
	UpdateOne(ctx context.Context, filter any, update any) (matched int64, err error)
	DeleteMany(ctx context.Context, filter any) (deleted int64, err error)
	CountDocuments(ctx context.Context, filter any, opts ...*mongoOptions.CountOptions) (int64, error)
}

type ClientFactory func(cfg Config) (Client, error)

type Transaction interface {
	// Context carries the transaction; operations run with it take part in it.
	Context() context.Context
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
