// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// Attributes is an ordered column name -> value mapping.
type Attributes = orderedmap.OrderedMap[string, interface{}]

// NewAttributes returns an empty attribute map.
func NewAttributes() *Attributes {
	return orderedmap.NewOrderedMap[string, interface{}]()
}

// Record is one row of one table, identified by (Table, value of PrimaryKey).
type Record struct {
	Table      string
	PrimaryKey string
	Attrs      *Attributes
}

// NewRecord creates an empty record for table with the given primary key column.
func NewRecord(table, primaryKey string) *Record {
	return &Record{
		Table:      table,
		PrimaryKey: primaryKey,
		Attrs:      NewAttributes(),
	}
}

// Get returns the value of an attribute and whether it is present.
func (r *Record) Get(name string) (interface{}, bool) {
	return r.Attrs.Get(name)
}

// Set assigns an attribute, appending it to the column order when new.
func (r *Record) Set(name string, value interface{}) {
	r.Attrs.Set(name, value)
}

// Has reports whether the record carries the attribute.
func (r *Record) Has(name string) bool {
	_, ok := r.Attrs.Get(name)
	return ok
}

// ID returns the primary key value.
func (r *Record) ID() interface{} {
	v, _ := r.Attrs.Get(r.PrimaryKey)
	return v
}

// Key returns the canonical string form of the primary key value.
func (r *Record) Key() string {
	return KeyString(r.ID())
}

// Columns returns attribute names in their stable order.
func (r *Record) Columns() []string {
	return r.Attrs.Keys()
}

// Clone returns a copy whose attribute map can be modified independently.
func (r *Record) Clone() *Record {
	clone := NewRecord(r.Table, r.PrimaryKey)
	for el := r.Attrs.Front(); el != nil; el = el.Next() {
		clone.Attrs.Set(el.Key, el.Value)
	}
	return clone
}

// Change is one unit of output: either an entity row or a synthesized row.
type Change interface {
	TableName() string
	isChange()
}

// EntityChange is a Change backed by a discovered record.
type EntityChange struct {
	Record *Record
}

// TableName implements Change.
func (c EntityChange) TableName() string { return c.Record.Table }

func (EntityChange) isChange() {}

// RawChange is a Change with explicit values and no backing entity, used for join rows.
type RawChange struct {
	Table  string
	Values *Attributes
}

// TableName implements Change.
func (c RawChange) TableName() string { return c.Table }

func (RawChange) isChange() {}

// NewJoinRow builds the raw row linking sourceID and targetID in a join table.
func NewJoinRow(joinTable, sourceColumn string, sourceID interface{}, targetColumn string, targetID interface{}) RawChange {
	values := NewAttributes()
	values.Set(sourceColumn, sourceID)
	values.Set(targetColumn, targetID)
	return RawChange{Table: joinTable, Values: values}
}

// Batch is an ordered group of changes emitted together.
type Batch []Change

// Records returns the records backing the entity changes of the batch.
func (b Batch) Records() []*Record {
	var records []*Record
	for _, c := range b {
		if ec, ok := c.(EntityChange); ok {
			records = append(records, ec.Record)
		}
	}
	return records
}

// Clone returns a batch whose entity changes hold copies of their records.
// Raw changes are shared.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for i, c := range b {
		if ec, ok := c.(EntityChange); ok {
			c = EntityChange{Record: ec.Record.Clone()}
		}
		out[i] = c
	}
	return out
}

// EntityBatch wraps records as entity changes.
func EntityBatch(records []*Record) Batch {
	batch := make(Batch, 0, len(records))
	for _, r := range records {
		batch = append(batch, EntityChange{Record: r})
	}
	return batch
}

// DiscoveryStats contains statistics about one traversal.
type DiscoveryStats struct {
	RecordsFound int64         // Entity records emitted
	JoinRows     int64         // Synthesized join rows emitted
	Batches      int           // Non-empty batches emitted
	MaxDepth     int           // Deepest relation level reached
	Skipped      int           // Relation names that did not resolve
	Keyless      int           // Records dropped for lacking a primary key value
	Duration     time.Duration // Time taken for the traversal
}
