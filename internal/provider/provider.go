// Package provider fetches records for the walker.
//
// Every method is a blocking call; paged methods invoke fn once per page, in
// order, and stop at the first error fn returns. Pages are never empty.
package provider

import (
	"context"

	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/types"
)

// PageFunc receives one page of records.
type PageFunc func(page []*types.Record) error

// Provider is the record source the walker reads from.
type Provider interface {
	// Find returns the record with the given primary key, or nil when absent.
	Find(ctx context.Context, table string, id interface{}) (*types.Record, error)

	// FindAll pages the records whose primary keys are in ids.
	FindAll(ctx context.Context, table string, ids []interface{}, pageSize int, fn PageFunc) error

	// Scan pages every record of table in primary key order, optionally
	// restricted by a raw SQL condition.
	Scan(ctx context.Context, table, where string, pageSize int, fn PageFunc) error

	// FindOne follows a to-one relation (BelongsTo or HasOne) from owner.
	// It returns nil when there is no related record.
	FindOne(ctx context.Context, owner *types.Record, d schema.Descriptor) (*types.Record, error)

	// FindMany pages the records reached by a HasMany or HasAndBelongsToMany
	// relation from owner.
	FindMany(ctx context.Context, owner *types.Record, d schema.Descriptor, pageSize int, fn PageFunc) error
}
