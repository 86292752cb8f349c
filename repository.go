package store

import (
	"context"

	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentDatabase is the generic document contract consumed by a model
// layer. Every operation connects on demand.
type DocumentDatabase interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	GetCollections(ctx context.Context) error
	CollectionNames() []string
	CreateCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)

	Find(ctx context.Context, collection string, query Document, options ...FindOption) ([]Document, error)
	FindByID(ctx context.Context, collection string, id string) (Document, error)
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	Read(ctx context.Context, collection string, query Document) (Document, error)
	Update(ctx context.Context, collection string, doc Document) (Document, error)
	Delete(ctx context.Context, collection string, query Document) error
	DeleteByID(ctx context.Context, collection string, id string) error
	Count(ctx context.Context, collection string, query Document, options ...*mongoOptions.CountOptions) (int64, error)
	InitializeModel(ctx context.Context, dao any, options ...ModelOption) error
	Begin(ctx context.Context) (Transaction, error)
}

var _ DocumentDatabase = (*MongoDatabase)(nil)
