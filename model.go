package store

// Document is one record of a collection, keyed by field name.
type Document map[string]any

const (
	FieldID        = "id"
	FieldNativeID  = "_id"
	FieldOwners    = "owners"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

func (d Document) clone() Document {
	c := make(Document, len(d)+4)
	for k, v := range d {
		c[k] = v
	}

	return c
}
