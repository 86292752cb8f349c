package store

import (
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	defaultSkip  int64 = 0
	defaultLimit int64 = 100
)

type DatabaseOption func(o *databaseOption)

type databaseOption struct {
	logger zerolog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used by the adapter. Nothing is logged by default.
func WithLogger(logger zerolog.Logger) DatabaseOption {
	return func(o *databaseOption) {
		o.logger = logger
	}
}

// WithClock replaces time.Now for the createdAt/updatedAt stamps.
func WithClock(now func() time.Time) DatabaseOption {
	return func(o *databaseOption) {
		o.now = now
	}
}

type FindOption func(o *findOption)

type findOption struct {
	Skip       int64
	Limit      int64
	Sort       any
	Projection any
}

// WithSkip returns a FindOption that sets how many documents to skip.
func WithSkip(skip int64) FindOption {
	return func(o *findOption) {
		o.Skip = skip
	}
}

// WithLimit returns a FindOption that sets the maximum number of documents
// to return. Zero keeps the default of 100.
func WithLimit(limit int64) FindOption {
	return func(o *findOption) {
		o.Limit = limit
	}
}

// WithSorter returns a FindOption that sets the sorting order for the query.
// Field names are prefixed by "-" for descending order and by "+" (or
// nothing) for ascending order.
//
// example:
//
//	WithSorter("-createdAt", "+name")
func WithSorter(sorter ...string) FindOption {
	return func(o *findOption) {
		o.Sort = parseSorter(sorter)
	}
}

// WithSort sets a sort document as is.
func WithSort(sort bson.D) FindOption {
	return func(o *findOption) {
		o.Sort = sort
	}
}

func WithProjection(projection any) FindOption {
	return func(o *findOption) {
		o.Projection = projection
	}
}

func resolveFindOptions(options []FindOption) *findOption {
	opt := &findOption{}
	for _, op := range options {
		op(opt)
	}

	if opt.Skip <= 0 {
		opt.Skip = defaultSkip
	}

	if opt.Limit <= 0 {
		opt.Limit = defaultLimit
	}

	if sort, ok := opt.Sort.(bson.D); ok && len(sort) == 0 {
		opt.Sort = nil
	}

	return opt
}

type ModelOption func(o *modelOption)

type modelOption struct {
	name       string
	initValues []Document
}

// WithName names the collection backing the model.
func WithName(name string) ModelOption {
	return func(o *modelOption) {
		o.name = name
	}
}

// InitWith seeds a collection with values when InitializeModel creates it.
func InitWith(values ...Document) ModelOption {
	return func(o *modelOption) {
		o.initValues = values
	}
}
