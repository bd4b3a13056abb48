package store

import (
	"context"
	"errors"

	"github.com/incidenthq/triage/internal/core/model"
)

var (
	// ErrDuplicateKey is returned when inserting a record whose id already
	// exists. The storage layer's uniqueness constraint raises it even when
	// two writers race past the existence check.
	ErrDuplicateKey = errors.New("store: duplicate key")

	// ErrDimensionMismatch is returned when a record's embedding length
	// disagrees with the dimensionality pinned by the store's first insert.
	ErrDimensionMismatch = errors.New("store: embedding dimension mismatch")

	// ErrUnavailable wraps connectivity failures to the underlying database.
	ErrUnavailable = errors.New("store: unavailable")
)

// BatchResult reports the per-record outcome of an InsertBatch call.
// A failed record never aborts the rest of the batch.
type BatchResult struct {
	Inserted []string
	Failed   map[string]error // id -> cause
}

// Cursor iterates a ScanAll result set, database/sql Rows style:
//
//	for cur.Next() {
//	    rec := cur.Record()
//	    ...
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor interface {
	Next() bool
	Record() *model.IncidentRecord
	Err() error
	Close() error
}

// IncidentStore is the durable, append-only incident table. The first insert
// into an empty store establishes the embedding dimensionality for the
// store's lifetime.
type IncidentStore interface {
	// Exists reports whether a record with the given id is already stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Insert persists one record. Fails with ErrDuplicateKey or
	// ErrDimensionMismatch; once it returns nil the record survives restart.
	Insert(ctx context.Context, rec *model.IncidentRecord) error

	// InsertBatch applies Insert to each record with partial-failure
	// semantics. It returns an error only when the store itself is
	// unreachable.
	InsertBatch(ctx context.Context, recs []*model.IncidentRecord) (*BatchResult, error)

	// ExistingIDs returns a snapshot of every stored key. Ingestion takes
	// exactly one snapshot per batch.
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)

	// ScanAll iterates every record. A fresh call re-reads from the
	// beginning; snapshot-at-call-time consistency is acceptable, writes
	// that start after the scan begins may be missed.
	ScanAll(ctx context.Context) (Cursor, error)

	// Dimension returns the pinned embedding dimensionality, or 0 when the
	// store is still empty.
	Dimension(ctx context.Context) (int, error)

	Close(ctx context.Context) error
}
