package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
)

// Find returns the documents matching query, skipping 0 and returning at most
// 100 unless told otherwise. Without a sort the store's natural order is kept.
func (m *MongoDatabase) Find(ctx context.Context, collection string, query Document, options ...FindOption) ([]Document, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}

	opt := resolveFindOptions(options)
	findOpts := mongoOptions.Find().SetSkip(opt.Skip).SetLimit(opt.Limit)
	if opt.Sort != nil {
		findOpts.SetSort(opt.Sort)
	}

	if opt.Projection != nil {
		findOpts.SetProjection(opt.Projection)
	}

	docs, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}

	return sliceMap(docs, exposeID), nil
}

// FindByID returns nil without error when no document has the id.
func (m *MongoDatabase) FindByID(ctx context.Context, collection string, id string) (Document, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	nid, err := toNativeID(id)
	if err != nil {
		return nil, err
	}

	return findOne(ctx, coll, bson.M{FieldNativeID: nid})
}

// Create inserts a copy of doc with server assigned identity, normalized
// owners and fresh timestamps. doc itself is left untouched.
func (m *MongoDatabase) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := doc.clone()
	delete(out, FieldID)
	delete(out, FieldNativeID)

	owners, err := normalizeOwners(out[FieldOwners])
	if err != nil {
		return nil, err
	}
	out[FieldOwners] = owners

	now := m.timestamp()
	out[FieldCreatedAt] = now
	out[FieldUpdatedAt] = now

	insertedID, err := coll.InsertOne(ctx, out)
	if err != nil {
		return nil, err
	}

	out[FieldNativeID] = insertedID
	out[FieldID] = idString(insertedID)
	return out, nil
}

// Read returns the first document matching query, or nil without error.
func (m *MongoDatabase) Read(ctx context.Context, collection string, query Document) (Document, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}

	return findOne(ctx, coll, filter)
}

// Update sets every field of doc on the stored document with the same
// identity. doc must carry its identifier in "_id" (native or hex) or "id";
// ErrPrecondition is returned otherwise. createdAt is never overwritten.
// When doc has no owners field the stored owners are left unchanged.
func (m *MongoDatabase) Update(ctx context.Context, collection string, doc Document) (Document, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	rawID := doc[FieldNativeID]
	if isEmptyID(rawID) {
		rawID = doc[FieldID]
	}

	if isEmptyID(rawID) {
		return nil, fmt.Errorf("%w: update requires a document with an identifier", ErrPrecondition)
	}

	nid, err := toNativeID(rawID)
	if err != nil {
		return nil, err
	}

	out := doc.clone()
	delete(out, FieldID)
	delete(out, FieldNativeID)

	if rawOwners, ok := out[FieldOwners]; ok {
		owners, err := normalizeOwners(rawOwners)
		if err != nil {
			return nil, err
		}
		out[FieldOwners] = owners
	}

	out[FieldUpdatedAt] = m.timestamp()

	set := out.clone()
	delete(set, FieldCreatedAt)

	matched, err := coll.UpdateOne(ctx, bson.M{FieldNativeID: nid}, bson.M{"$set": bson.M(set)})
	if err != nil {
		return nil, err
	}

	if matched == 0 {
		m.logger.Debug().Str("collection", collection).Str("id", nid.Hex()).Msg("update matched no document")
	}

	out[FieldNativeID] = nid
	out[FieldID] = nid.Hex()
	return out, nil
}

// Delete removes every document matching query.
func (m *MongoDatabase) Delete(ctx context.Context, collection string, query Document) error {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return err
	}

	filter, err := buildFilter(query)
	if err != nil {
		return err
	}

	return m.deleteMany(ctx, collection, coll, filter)
}

func (m *MongoDatabase) DeleteByID(ctx context.Context, collection string, id string) error {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return err
	}

	nid, err := toNativeID(id)
	if err != nil {
		return err
	}

	return m.deleteMany(ctx, collection, coll, bson.M{FieldNativeID: nid})
}

func (m *MongoDatabase) deleteMany(ctx context.Context, collection string, coll Collection, filter bson.M) error {
	deleted, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return err
	}

	m.logger.Debug().Str("collection", collection).Int64("deleted", deleted).Msg("documents deleted")
	return nil
}

// Count passes options to the store unchanged.
func (m *MongoDatabase) Count(ctx context.Context, collection string, query Document, options ...*mongoOptions.CountOptions) (int64, error) {
	ctx, cancel := withTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	coll, err := m.collection(ctx, collection)
	if err != nil {
		return 0, err
	}

	filter, err := buildFilter(query)
	if err != nil {
		return 0, err
	}

	return coll.CountDocuments(ctx, filter, options...)
}

// InitializeModel creates the collection named by WithName when it is not
// known yet, then seeds it with the InitWith values. The model itself is not
// inspected.
func (m *MongoDatabase) InitializeModel(ctx context.Context, dao any, options ...ModelOption) error {
	if err := m.ensureConnection(ctx); err != nil {
		return err
	}

	opt := &modelOption{}
	for _, op := range options {
		op(opt)
	}

	if opt.name == "" || sliceContains(m.CollectionNames(), opt.name) {
		return nil
	}

	if err := m.CreateCollection(ctx, opt.name); err != nil {
		return err
	}

	m.logger.Debug().Str("collection", opt.name).Str("model", fmt.Sprintf("%T", dao)).Msg("model initialized")

	for _, value := range opt.initValues {
		if _, err := m.Create(ctx, opt.name, value); err != nil {
			return err
		}
	}

	return m.GetCollections(ctx)
}

func findOne(ctx context.Context, coll Collection, filter any) (Document, error) {
	doc, err := coll.FindOne(ctx, filter)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return exposeID(doc), nil
}

// timestamp is truncated to the store's millisecond precision so returned
// documents match what was persisted.
func (m *MongoDatabase) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Millisecond)
}

func isEmptyID(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)
	return ok && s == ""
}
