// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package docstore defines the minimal document-store capability contract
// the day-end engine needs: point lookups, filtered queries with ordering
// and limits, and bounded atomic write batches over per-user collections.
// The engine never talks to a concrete database client directly; it is
// handed a Store.
package docstore

import (
	"context"
	"errors"
)

// MaxBatchOps is the per-commit write ceiling. Callers accumulating large
// maintenance passes flush and restart a batch when they reach this bound;
// each flushed group is atomic, the pass as a whole is not.
const MaxBatchOps = 500

var (
	// ErrNotFound indicates a point lookup for a document that does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrBatchTooLarge indicates a batch commit exceeding MaxBatchOps.
	ErrBatchTooLarge = errors.New("write batch exceeds maximum operation count")
)

// Op is a query filter operator.
type Op string

const (
	OpEqual        Op = "=="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpIn           Op = "in"
)

// MaxInValues bounds the value list of an OpIn filter, mirroring the
// membership-query limits of hosted document stores.
const MaxInValues = 10

// Filter is one field condition of a query. Value is compared after JSON
// normalization: numbers as float64, RFC 3339 strings as instants,
// everything else as strings.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Query describes an equality/range/membership filtered scan of one
// collection with optional ordering and limit.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where is a convenience constructor for a single-filter query.
func Where(field string, op Op, value interface{}) Query {
	return Query{Filters: []Filter{{Field: field, Op: op, Value: value}}}
}

// And appends a filter condition.
func (q Query) And(field string, op Op, value interface{}) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderedBy sets the sort field.
func (q Query) OrderedBy(field string, descending bool) Query {
	q.OrderBy = field
	q.Descending = descending
	return q
}

// WithLimit caps the result count.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Document is one stored document: its ID within the collection and the
// raw JSON payload. Callers decode into their own record types.
type Document struct {
	ID   string
	Data []byte
}

// Batch accumulates writes that commit atomically. A batch holding more
// than MaxBatchOps operations fails at Commit; callers flush earlier.
type Batch interface {
	// Set writes (creates or replaces) a document.
	Set(userID, collection, docID string, doc interface{})
	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(userID, collection, docID string)
	// Len reports the number of queued operations.
	Len() int
	// Commit applies all queued operations atomically.
	Commit(ctx context.Context) error
}

// Store is the capability contract consumed by the engine.
type Store interface {
	// Get fetches one document by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, userID, collection, docID string) (Document, error)
	// Set writes (creates or replaces) one document.
	Set(ctx context.Context, userID, collection, docID string, doc interface{}) error
	// Add writes a document under a freshly generated ID and returns the ID.
	Add(ctx context.Context, userID, collection string, doc interface{}) (string, error)
	// Delete removes one document.
	Delete(ctx context.Context, userID, collection, docID string) error
	// Query runs a filtered scan over one collection.
	Query(ctx context.Context, userID, collection string, q Query) ([]Document, error)
	// NewBatch starts an atomic write batch.
	NewBatch() Batch
	// ListUsers enumerates all user IDs known to the store.
	ListUsers(ctx context.Context) ([]string, error)
}
