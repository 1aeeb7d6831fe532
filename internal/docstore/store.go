// Package docstore provides the document store backing the three order
// collections. Documents are JSON objects keyed by order number; SetMerged
// gives the field-level merge upsert the sync cycle depends on.
package docstore

import (
	"context"
	"errors"
)

// Logical collections
const (
	CollectionOrders       = "orders"
	CollectionManualOrders = "manual_orders"
	CollectionOverrides    = "external_order_overrides"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrStore    = errors.New("store error")
)

// Document is a stored JSON object. Timestamp-valued fields are RFC3339
// strings inside the document; coercion to time.Time happens at the model
// boundary only.
type Document = map[string]interface{}

// Filter narrows a Query to documents whose field equals the given value.
// A zero Limit means no limit.
type Filter struct {
	Field string
	Value interface{}
	Limit int
}

// Store is the document store contract. All writes are upserts; SetMerged
// merges the given fields into an existing document instead of replacing it.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, doc Document) error
	SetMerged(ctx context.Context, collection, key string, partial Document) error
	Delete(ctx context.Context, collection, key string) error
	DeleteField(ctx context.Context, collection, key, field string) error
	Query(ctx context.Context, collection string, filter *Filter) ([]Document, error)
}
