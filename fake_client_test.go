package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// fakeServer keeps collections in memory and outlives the clients connected
// to it, so reconnecting sees the same data.
type fakeServer struct {
	mu          sync.Mutex
	collections map[string][]Document

	connectDelay   time.Duration
	connectErr     error
	disconnectErr  error
	listErr        error
	connectStarted chan struct{}
	connectGate    chan struct{}

	factoryCalls int
	connects     int
	disconnects  int
	creates      int
}

func newFakeServer() *fakeServer {
	return &fakeServer{collections: make(map[string][]Document)}
}

func (s *fakeServer) factory(cfg Config) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factoryCalls++
	return &fakeClient{server: s}, nil
}

func (s *fakeServer) stats() (factoryCalls, connects, disconnects, creates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factoryCalls, s.connects, s.disconnects, s.creates
}

func (s *fakeServer) stored(coll string) []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sliceMap(s.collections[coll], func(d Document) Document { return d.clone() })
}

type fakeClient struct {
	server *fakeServer
}

func (c *fakeClient) Connect(ctx context.Context) error {
	if c.server.connectStarted != nil {
		c.server.connectStarted <- struct{}{}
	}

	if c.server.connectGate != nil {
		<-c.server.connectGate
	}

	if c.server.connectDelay > 0 {
		time.Sleep(c.server.connectDelay)
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.server.connectErr != nil {
		return c.server.connectErr
	}

	c.server.connects++
	return nil
}

func (c *fakeClient) Disconnect(ctx context.Context) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.disconnects++
	return c.server.disconnectErr
}

func (c *fakeClient) Database(name string) Database {
	return &fakeDatabase{server: c.server}
}

func (c *fakeClient) StartTransaction(ctx context.Context) (Transaction, error) {
	return &fakeTransaction{ctx: ctx}, nil
}

type fakeDatabase struct {
	server *fakeServer
}

func (d *fakeDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	d.server.mu.Lock()
	defer d.server.mu.Unlock()
	if d.server.listErr != nil {
		return nil, d.server.listErr
	}

	names := make([]string, 0, len(d.server.collections))
	for name := range d.server.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *fakeDatabase) CreateCollection(ctx context.Context, name string) error {
	d.server.mu.Lock()
	defer d.server.mu.Unlock()
	if _, ok := d.server.collections[name]; ok {
		return fmt.Errorf("collection %s already exists", name)
	}

	d.server.creates++
	d.server.collections[name] = []Document{}
	return nil
}

func (d *fakeDatabase) Collection(name string) Collection {
	return &fakeCollection{server: d.server, name: name}
}

type fakeCollection struct {
	server *fakeServer
	name   string
}

func (c *fakeCollection) matching(filter any) []Document {
	var docs []Document
	for _, doc := range c.server.collections[c.name] {
		if fakeMatches(doc, filter) {
			docs = append(docs, doc)
		}
	}

	return docs
}

func (c *fakeCollection) Find(ctx context.Context, filter any, opts *mongoOptions.FindOptions) ([]Document, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	docs := c.matching(filter)
	if opts != nil {
		if sorter, ok := opts.Sort.(bson.D); ok {
			sort.SliceStable(docs, func(i, j int) bool {
				for _, e := range sorter {
					cmp := fakeCompare(docs[i][e.Key], docs[j][e.Key])
					if cmp == 0 {
						continue
					}
					if e.Value == -1 {
						return cmp > 0
					}
					return cmp < 0
				}
				return false
			})
		}

		if opts.Skip != nil {
			skip := int(*opts.Skip)
			if skip > len(docs) {
				skip = len(docs)
			}
			docs = docs[skip:]
		}

		if opts.Limit != nil && *opts.Limit > 0 && int(*opts.Limit) < len(docs) {
			docs = docs[:*opts.Limit]
		}
	}

	return sliceMap(docs, func(d Document) Document { return d.clone() }), nil
}

func (c *fakeCollection) FindOne(ctx context.Context, filter any) (Document, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	docs := c.matching(filter)
	if len(docs) == 0 {
		return nil, ErrNotFound
	}

	return docs[0].clone(), nil
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc Document) (any, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	stored := doc.clone()
	id := primitive.NewObjectID()
	stored[FieldNativeID] = id
	c.server.collections[c.name] = append(c.server.collections[c.name], stored)
	return id, nil
}

func (c *fakeCollection) UpdateOne(ctx context.Context, filter any, update any) (int64, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	docs := c.matching(filter)
	if len(docs) == 0 {
		return 0, nil
	}

	set := update.(bson.M)["$set"].(bson.M)
	for k, v := range set {
		docs[0][k] = v
	}

	return 1, nil
}

func (c *fakeCollection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	var kept []Document
	var deleted int64
	for _, doc := range c.server.collections[c.name] {
		if fakeMatches(doc, filter) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}

	c.server.collections[c.name] = kept
	return deleted, nil
}

func (c *fakeCollection) CountDocuments(ctx context.Context, filter any, opts ...*mongoOptions.CountOptions) (int64, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()

	count := int64(len(c.matching(filter)))
	for _, opt := range opts {
		if opt != nil && opt.Limit != nil && *opt.Limit < count {
			count = *opt.Limit
		}
	}

	return count, nil
}

func fakeMatches(doc Document, filter any) bool {
	f, _ := filter.(bson.M)
	for k, want := range f {
		got, ok := doc[k]
		if op, isOp := want.(bson.M); isOp {
			in, _ := op["$in"].(primitive.A)
			found := false
			for _, v := range in {
				if reflect.DeepEqual(got, v) {
					found = true
					break
				}
			}

			if !found {
				return false
			}
			continue
		}

		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}

	return true
}

func fakeCompare(a, b any) int {
	switch av := a.(type) {
	case int:
		bv, _ := b.(int)
		return av - bv
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}

	return 0
}

type fakeTransaction struct {
	ctx       context.Context
	committed bool
	rolled    bool
}

func (tx *fakeTransaction) Context() context.Context { return tx.ctx }

func (tx *fakeTransaction) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTransaction) Rollback(ctx context.Context) error {
	tx.rolled = true
	return nil
}
