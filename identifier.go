package store

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toNativeID coerces an identifier in string or native form into an ObjectID.
func toNativeID(value any) (primitive.ObjectID, error) {
	var hex string
	switch v := value.(type) {
	case primitive.ObjectID:
		return v, nil
	case *primitive.ObjectID:
		if v == nil {
			return primitive.NilObjectID, fmt.Errorf("%w: nil", ErrInvalidIdentifier)
		}
		return *v, nil
	case string:
		hex = v
	case fmt.Stringer:
		hex = v.String()
	default:
		return primitive.NilObjectID, fmt.Errorf("%w: unsupported type %T", ErrInvalidIdentifier, value)
	}

	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q: %w", ErrInvalidIdentifier, hex, err)
	}

	return id, nil
}

// idString is the outward form of a native identifier.
func idString(value any) string {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// normalizeOwners turns any list of identifiers into a duplicate free list of
// ObjectIDs, keeping the first occurrence of each.
func normalizeOwners(value any) (primitive.A, error) {
	owners := primitive.A{}
	if value == nil {
		return owners, nil
	}

	list := reflect.ValueOf(value)
	_, single := value.(primitive.ObjectID)
	if single || (list.Kind() != reflect.Slice && list.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: owners must be a list, got %T", ErrInvalidIdentifier, value)
	}

	var seen []primitive.ObjectID
	for i := 0; i < list.Len(); i++ {
		id, err := toNativeID(list.Index(i).Interface())
		if err != nil {
			return nil, err
		}

		if sliceContains(seen, id) {
			continue
		}

		seen = append(seen, id)
		owners = append(owners, id)
	}

	return owners, nil
}

// buildFilter copies the query, rewriting an "id" predicate onto the native
// "_id" field. A list of ids becomes an $in predicate.
func buildFilter(query Document) (bson.M, error) {
	filter := bson.M{}
	for k, v := range query {
		if k != FieldID {
			filter[k] = v
			continue
		}

		vval := reflect.ValueOf(v)
		if v != nil && vval.Kind() == reflect.Slice {
			ids := make(primitive.A, 0, vval.Len())
			for i := 0; i < vval.Len(); i++ {
				id, err := toNativeID(vval.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}

			filter[FieldNativeID] = bson.M{"$in": ids}
			continue
		}

		id, err := toNativeID(v)
		if err != nil {
			return nil, err
		}
		filter[FieldNativeID] = id
	}

	return filter, nil
}

// exposeID sets the string "id" field from the native one.
func exposeID(doc Document) Document {
	if doc == nil {
		return nil
	}

	if nid, ok := doc[FieldNativeID]; ok {
		doc[FieldID] = idString(nid)
	}

	return doc
}
