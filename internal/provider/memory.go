package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/types"
)

// Memory is a Provider over records held in memory, in insertion order.
// Join tables of HasAndBelongsToMany relations are inserted like any other
// table. Returned records are copies, so callers may modify them freely.
type Memory struct {
	mu       sync.RWMutex
	resolver schema.Resolver
	tables   map[string][]*types.Record
	errs     map[string]error
	calls    int
}

// NewMemory creates an empty in-memory provider.
func NewMemory(r schema.Resolver) *Memory {
	return &Memory{
		resolver: r,
		tables:   make(map[string][]*types.Record),
		errs:     make(map[string]error),
	}
}

// Insert appends rows to table. Each row is a column -> value list given as
// alternating name, value pairs.
func (m *Memory) Insert(table string, rows ...[]interface{}) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	pk := m.resolver.PrimaryKey(table)
	for _, row := range rows {
		rec := types.NewRecord(table, pk)
		for i := 0; i+1 < len(row); i += 2 {
			rec.Set(fmt.Sprint(row[i]), row[i+1])
		}
		m.tables[table] = append(m.tables[table], rec)
	}
	return m
}

// InsertRecords appends existing records to their tables.
func (m *Memory) InsertRecords(records ...*types.Record) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.tables[r.Table] = append(m.tables[r.Table], r.Clone())
	}
	return m
}

// SetError makes every read of table fail with err. A nil err clears it.
func (m *Memory) SetError(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, table)
		return
	}
	m.errs[table] = err
}

// Calls returns the number of provider calls served so far.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Find implements Provider.
func (m *Memory) Find(ctx context.Context, table string, id interface{}) (*types.Record, error) {
	rows, err := m.rows(ctx, table)
	if err != nil {
		return nil, err
	}
	return firstMatch(rows, m.resolver.PrimaryKey(table), id), nil
}

// FindAll implements Provider. Records are returned in the order of ids.
func (m *Memory) FindAll(ctx context.Context, table string, ids []interface{}, pageSize int, fn PageFunc) error {
	rows, err := m.rows(ctx, table)
	if err != nil {
		return err
	}
	pk := m.resolver.PrimaryKey(table)

	var found []*types.Record
	for _, id := range ids {
		if rec := firstMatch(rows, pk, id); rec != nil {
			found = append(found, rec)
		}
	}
	if pageSize <= 0 {
		pageSize = len(found)
	}
	return paginate(ctx, found, pageSize, fn)
}

// Scan implements Provider. A non-empty where condition is not supported.
func (m *Memory) Scan(ctx context.Context, table, where string, pageSize int, fn PageFunc) error {
	if where != "" {
		return fmt.Errorf("memory provider cannot evaluate condition %q", where)
	}
	rows, err := m.rows(ctx, table)
	if err != nil {
		return err
	}
	return paginate(ctx, rows, pageSize, fn)
}

// FindOne implements Provider.
func (m *Memory) FindOne(ctx context.Context, owner *types.Record, d schema.Descriptor) (*types.Record, error) {
	switch rel := d.(type) {
	case schema.BelongsTo:
		fk, ok := owner.Get(rel.ForeignKey)
		if !ok || fk == nil {
			return nil, nil
		}
		rows, err := m.rows(ctx, rel.Target)
		if err != nil {
			return nil, err
		}
		return firstMatch(rows, rel.TargetKey, fk), nil
	case schema.HasOne:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil, nil
		}
		rows, err := m.rows(ctx, rel.Target)
		if err != nil {
			return nil, err
		}
		return firstMatch(rows, rel.ForeignKey, id), nil
	}
	return nil, fmt.Errorf("FindOne %s.%s (%s): %w", owner.Table, d.Relation().Name, d.Kind(), ErrUnsupportedRelation)
}

// FindMany implements Provider.
func (m *Memory) FindMany(ctx context.Context, owner *types.Record, d schema.Descriptor, pageSize int, fn PageFunc) error {
	switch rel := d.(type) {
	case schema.HasMany:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil
		}
		rows, err := m.rows(ctx, rel.Target)
		if err != nil {
			return err
		}
		return paginate(ctx, allMatches(rows, rel.ForeignKey, id), pageSize, fn)

	case schema.HasAndBelongsToMany:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil
		}
		links, err := m.rows(ctx, rel.JoinTable)
		if err != nil {
			return err
		}
		targets, err := m.rows(ctx, rel.Target)
		if err != nil {
			return err
		}
		var found []*types.Record
		for _, link := range allMatches(links, rel.ForeignKey, id) {
			tid, _ := link.Get(rel.AssociationForeignKey)
			if rec := firstMatch(targets, rel.TargetKey, tid); rec != nil {
				found = append(found, rec)
			}
		}
		return paginate(ctx, found, pageSize, fn)
	}
	return fmt.Errorf("FindMany %s.%s (%s): %w", owner.Table, d.Relation().Name, d.Kind(), ErrUnsupportedRelation)
}

// rows returns copies of every record of table.
func (m *Memory) rows(ctx context.Context, table string) ([]*types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := m.errs[table]; err != nil {
		return nil, fmt.Errorf("query failed for %s: %w", table, err)
	}
	stored := m.tables[table]
	out := make([]*types.Record, len(stored))
	for i, r := range stored {
		out[i] = r.Clone()
	}
	return out, nil
}

func firstMatch(rows []*types.Record, column string, value interface{}) *types.Record {
	want := types.KeyString(value)
	for _, r := range rows {
		if v, ok := r.Get(column); ok && v != nil && types.KeyString(v) == want {
			return r
		}
	}
	return nil
}

func allMatches(rows []*types.Record, column string, value interface{}) []*types.Record {
	want := types.KeyString(value)
	var out []*types.Record
	for _, r := range rows {
		if v, ok := r.Get(column); ok && v != nil && types.KeyString(v) == want {
			out = append(out, r)
		}
	}
	return out
}

func paginate(ctx context.Context, records []*types.Record, pageSize int, fn PageFunc) error {
	if len(records) == 0 {
		return nil
	}
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	for i := 0; i < len(records); i += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := i + pageSize
		if end > len(records) {
			end = len(records)
		}
		if err := fn(records[i:end]); err != nil {
			return err
		}
	}
	return nil
}
