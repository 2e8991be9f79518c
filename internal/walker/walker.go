// Package walker traverses record-to-record relations named by a relation
// tree and emits every newly discovered record exactly once.
//
// A walk is depth-first in the declared order of the tree: root records are
// emitted first, then, for each root, each relation name in order, descending
// into that relation's nested tree before moving on to the next name. To-many
// relations are read in pages of the walker's batch size and each page yields
// at most one batch. To-one relations always yield single-record batches.
package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/goextract/internal/logger"
	"github.com/dbsmedya/goextract/internal/provider"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/seen"
	"github.com/dbsmedya/goextract/internal/types"
)

// DefaultBatchSize is used when New is given a non-positive batch size.
const DefaultBatchSize = 1000

// ErrStop may be returned by an EmitFunc to end the walk early. Walk then
// returns a nil error.
var ErrStop = errors.New("walker: stop")

// EmitFunc receives each non-empty batch in discovery order. It may block.
type EmitFunc func(batch types.Batch) error

// Walker follows relation trees over a record provider.
type Walker struct {
	resolver  schema.Resolver
	provider  provider.Provider
	batchSize int
	logger    *logger.Logger
}

// New creates a walker. batchSize bounds the records held per to-many page.
func New(r schema.Resolver, p provider.Provider, batchSize int) (*Walker, error) {
	if r == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Walker{
		resolver:  r,
		provider:  p,
		batchSize: batchSize,
		logger:    logger.NewDefault(),
	}, nil
}

// SetLogger sets a custom logger for the walker.
func (w *Walker) SetLogger(log *logger.Logger) {
	w.logger = log
}

// BatchSize returns the page size used for roots and to-many relations.
func (w *Walker) BatchSize() int {
	return w.batchSize
}

// Walk emits the root records of table and everything tree reaches from them.
//
// ids == nil selects every record of the table, optionally restricted by the
// raw SQL condition where. A non-nil empty ids selects nothing. where is
// ignored when ids are given.
//
// set is the dedup state of the caller's top-level call; passing the same set
// to several walks guarantees nothing is emitted twice across them. A nil set
// is replaced by a fresh one.
func (w *Walker) Walk(
	ctx context.Context,
	set *seen.Set,
	table string,
	ids []interface{},
	where string,
	tree *relation.Tree,
	emit EmitFunc,
) (types.DiscoveryStats, error) {
	r := w.newRun(set, emit)

	if ids != nil && len(ids) == 0 {
		r.log.Debug("No root ids provided, nothing to walk")
		return r.stats, nil
	}

	r.log.Infof("Starting walk from %q with relations %s", table, tree)

	page := func(records []*types.Record) error {
		fresh, err := r.emitEntities(records, 0)
		if err != nil {
			return err
		}
		for _, rec := range fresh {
			if err := r.descend(ctx, rec, tree, 1); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if ids == nil {
		err = w.provider.Scan(ctx, table, where, w.batchSize, page)
	} else {
		err = w.provider.FindAll(ctx, table, ids, w.batchSize, page)
	}
	return r.finish(table, err)
}

// WalkRecord emits rec, unless set already holds it, and everything tree
// reaches from it.
func (w *Walker) WalkRecord(
	ctx context.Context,
	set *seen.Set,
	rec *types.Record,
	tree *relation.Tree,
	emit EmitFunc,
) (types.DiscoveryStats, error) {
	r := w.newRun(set, emit)

	err := func() error {
		if !r.mark(rec) {
			return nil
		}
		if err := r.emitBatch(types.EntityBatch([]*types.Record{rec}), 1, 0, 0); err != nil {
			return err
		}
		return r.descend(ctx, rec, tree, 1)
	}()
	return r.finish(rec.Table, err)
}

// run is the state of one Walk or WalkRecord call.
type run struct {
	w     *Walker
	seen  *seen.Set
	emit  EmitFunc
	log   *logger.Logger
	stats types.DiscoveryStats
	start time.Time
}

func (w *Walker) newRun(set *seen.Set, emit EmitFunc) *run {
	if set == nil {
		set = seen.New()
	}
	return &run{
		w:     w,
		seen:  set,
		emit:  emit,
		log:   w.logger,
		start: time.Now(),
	}
}

func (r *run) finish(table string, err error) (types.DiscoveryStats, error) {
	r.stats.Duration = time.Since(r.start)
	if errors.Is(err, ErrStop) {
		r.log.Infof("Walk from %q stopped by caller after %d batches", table, r.stats.Batches)
		return r.stats, nil
	}
	if err != nil {
		return r.stats, err
	}
	r.log.Infof("Walk complete: %d records, %d join rows, %d batches, depth %d, duration: %s",
		r.stats.RecordsFound,
		r.stats.JoinRows,
		r.stats.Batches,
		r.stats.MaxDepth,
		r.stats.Duration,
	)
	return r.stats, nil
}

// descend follows every relation of tree from owner, in declared order.
func (r *run) descend(ctx context.Context, owner *types.Record, tree *relation.Tree, depth int) error {
	for _, name := range tree.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}

		d, ok := r.w.resolver.Resolve(owner.Table, name)
		if !ok {
			r.stats.Skipped++
			r.log.Debugw("Skipping unknown relation", "table", owner.Table, "relation", name)
			continue
		}

		child := tree.Child(name)
		var err error
		switch rel := d.(type) {
		case schema.BelongsTo, schema.HasOne:
			err = r.walkOne(ctx, owner, d, child, depth)
		case schema.HasOneThrough:
			err = r.walkOneThrough(ctx, owner, rel, child, depth)
		case schema.HasMany:
			err = r.walkMany(ctx, owner, rel, child, depth)
		case schema.HasManyThrough:
			err = r.walkManyThrough(ctx, owner, rel, child, depth)
		case schema.HasAndBelongsToMany:
			err = r.walkJoin(ctx, owner, rel, child, depth)
		}
		if err != nil {
			return fmt.Errorf("%s.%s: %w", owner.Table, name, err)
		}
	}
	return nil
}

// walkOne follows a BelongsTo or HasOne relation.
func (r *run) walkOne(ctx context.Context, owner *types.Record, d schema.Descriptor, tree *relation.Tree, depth int) error {
	rec, err := r.w.provider.FindOne(ctx, owner, d)
	if err != nil {
		return err
	}
	return r.visitOne(ctx, rec, tree, depth)
}

// visitOne emits rec as a singleton batch and descends from it, unless it is
// nil or already seen.
func (r *run) visitOne(ctx context.Context, rec *types.Record, tree *relation.Tree, depth int) error {
	if rec == nil || !r.mark(rec) {
		return nil
	}
	if err := r.emitBatch(types.EntityBatch([]*types.Record{rec}), 1, 0, depth); err != nil {
		return err
	}
	return r.descend(ctx, rec, tree, depth+1)
}

// walkOneThrough emits the intermediate record without descending from it,
// then the final target, which is the only record tree applies to.
func (r *run) walkOneThrough(ctx context.Context, owner *types.Record, rel schema.HasOneThrough, tree *relation.Tree, depth int) error {
	via, src, ok := r.resolveThrough(owner.Table, rel.Through, rel.Source)
	if !ok || via.Kind().ToMany() || src.Kind().ToMany() {
		r.stats.Skipped++
		r.log.Debugw("Skipping through relation with missing or to-many hops",
			"table", owner.Table, "relation", rel.Name, "through", rel.Through, "source", rel.Source)
		return nil
	}

	mid, err := r.w.provider.FindOne(ctx, owner, via)
	if err != nil {
		return err
	}
	if mid == nil {
		return nil
	}
	if r.mark(mid) {
		if err := r.emitBatch(types.EntityBatch([]*types.Record{mid}), 1, 0, depth); err != nil {
			return err
		}
	}

	target, err := r.w.provider.FindOne(ctx, mid, src)
	if err != nil {
		return err
	}
	return r.visitOne(ctx, target, tree, depth)
}

// walkMany pages a HasMany relation.
func (r *run) walkMany(ctx context.Context, owner *types.Record, rel schema.HasMany, tree *relation.Tree, depth int) error {
	return r.w.provider.FindMany(ctx, owner, rel, r.w.batchSize, func(page []*types.Record) error {
		return r.visitMany(ctx, page, tree, depth)
	})
}

// visitMany emits the unseen records of page as one batch and descends from each.
func (r *run) visitMany(ctx context.Context, page []*types.Record, tree *relation.Tree, depth int) error {
	fresh, err := r.emitEntities(page, depth)
	if err != nil {
		return err
	}
	for _, rec := range fresh {
		if err := r.descend(ctx, rec, tree, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// walkJoin pages a HasAndBelongsToMany relation. Each page yields a batch of
// unseen targets followed by a separate batch of unseen join rows.
func (r *run) walkJoin(ctx context.Context, owner *types.Record, rel schema.HasAndBelongsToMany, tree *relation.Tree, depth int) error {
	return r.w.provider.FindMany(ctx, owner, rel, r.w.batchSize, func(page []*types.Record) error {
		fresh, err := r.emitEntities(page, depth)
		if err != nil {
			return err
		}
		if err := r.emitJoinRows(owner, rel, page, depth); err != nil {
			return err
		}
		for _, rec := range fresh {
			if err := r.descend(ctx, rec, tree, depth+1); err != nil {
				return err
			}
		}
		return nil
	})
}

// walkManyThrough pages the intermediate records reached by rel.Through and
// emits them without descending, then follows rel.Source from each page to
// the final targets, which are the only records tree applies to.
func (r *run) walkManyThrough(ctx context.Context, owner *types.Record, rel schema.HasManyThrough, tree *relation.Tree, depth int) error {
	via, src, ok := r.resolveThrough(owner.Table, rel.Through, rel.Source)
	if !ok {
		r.stats.Skipped++
		r.log.Debugw("Skipping through relation with missing hops",
			"table", owner.Table, "relation", rel.Name, "through", rel.Through, "source", rel.Source)
		return nil
	}

	page := func(mids []*types.Record) error {
		if _, err := r.emitEntities(mids, depth); err != nil {
			return err
		}
		if join, ok := via.(schema.HasAndBelongsToMany); ok {
			if err := r.emitJoinRows(owner, join, mids, depth); err != nil {
				return err
			}
		}
		return r.visitSources(ctx, mids, src, tree, depth)
	}

	if !via.Kind().ToMany() {
		mid, err := r.w.provider.FindOne(ctx, owner, via)
		if err != nil || mid == nil {
			return err
		}
		return page([]*types.Record{mid})
	}
	return r.w.provider.FindMany(ctx, owner, via, r.w.batchSize, page)
}

// visitSources follows src from every intermediate record of one page.
// A BelongsTo source is resolved with a single bulk fetch of the distinct
// foreign key values of the page.
func (r *run) visitSources(ctx context.Context, mids []*types.Record, src schema.Descriptor, tree *relation.Tree, depth int) error {
	visit := func(targets []*types.Record) error {
		return r.visitMany(ctx, targets, tree, depth)
	}

	switch rel := src.(type) {
	case schema.BelongsTo:
		keys := distinctValues(mids, rel.ForeignKey)
		if len(keys) == 0 {
			return nil
		}
		return r.w.provider.FindAll(ctx, rel.Target, keys, len(keys), visit)

	case schema.HasOne:
		var targets []*types.Record
		for _, mid := range mids {
			rec, err := r.w.provider.FindOne(ctx, mid, rel)
			if err != nil {
				return err
			}
			if rec != nil {
				targets = append(targets, rec)
			}
		}
		return visit(targets)

	case schema.HasMany:
		for _, mid := range mids {
			if err := r.w.provider.FindMany(ctx, mid, rel, r.w.batchSize, visit); err != nil {
				return err
			}
		}
		return nil

	case schema.HasAndBelongsToMany:
		for _, mid := range mids {
			err := r.w.provider.FindMany(ctx, mid, rel, r.w.batchSize, func(targets []*types.Record) error {
				fresh, err := r.emitEntities(targets, depth)
				if err != nil {
					return err
				}
				if err := r.emitJoinRows(mid, rel, targets, depth); err != nil {
					return err
				}
				for _, rec := range fresh {
					if err := r.descend(ctx, rec, tree, depth+1); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	r.stats.Skipped++
	r.log.Debugw("Skipping nested through relation", "relation", src.Relation().Name, "kind", src.Kind().String())
	return nil
}

// resolveThrough resolves the intermediate relation on table and the source
// relation on the intermediate table. Nested through relations are not followed.
func (r *run) resolveThrough(table, through, source string) (via, src schema.Descriptor, ok bool) {
	via, ok = r.w.resolver.Resolve(table, through)
	if !ok || isThrough(via) {
		return nil, nil, false
	}
	mid, ok := schema.TargetTable(r.w.resolver, via)
	if !ok {
		return nil, nil, false
	}
	src, ok = r.w.resolver.Resolve(mid, source)
	if !ok || isThrough(src) {
		return nil, nil, false
	}
	return via, src, true
}

func isThrough(d schema.Descriptor) bool {
	k := d.Kind()
	return k == schema.KindHasOneThrough || k == schema.KindHasManyThrough
}

// mark adds rec to the seen set and reports whether it was new. Records
// without a primary key value have no identity and are never new.
func (r *run) mark(rec *types.Record) bool {
	if rec.ID() == nil {
		r.skipKeyless(rec.Table, 1)
		return false
	}
	return r.seen.Add(seen.Entity(rec))
}

func (r *run) skipKeyless(table string, n int) {
	r.stats.Keyless += n
	r.log.Warnw("Skipping records without a primary key value", "table", table, "count", n)
}

// emitEntities marks the unseen records of page and emits them as one batch.
func (r *run) emitEntities(page []*types.Record, depth int) ([]*types.Record, error) {
	keyed := page[:0:0]
	for _, rec := range page {
		if rec.ID() != nil {
			keyed = append(keyed, rec)
		}
	}
	if n := len(page) - len(keyed); n > 0 {
		r.skipKeyless(page[0].Table, n)
	}

	fresh := r.seen.Filter(keyed)
	if len(fresh) == 0 {
		return nil, nil
	}
	if err := r.emitBatch(types.EntityBatch(fresh), len(fresh), 0, depth); err != nil {
		return nil, err
	}
	return fresh, nil
}

// emitJoinRows emits one join row for every unseen (owner, target) pair of page.
func (r *run) emitJoinRows(owner *types.Record, rel schema.HasAndBelongsToMany, page []*types.Record, depth int) error {
	ownerID, _ := owner.Get(rel.OwnerKey)

	var batch types.Batch
	for _, rec := range page {
		targetID, _ := rec.Get(rel.TargetKey)
		if !r.seen.Add(seen.Join(rel.JoinTable, ownerID, targetID)) {
			continue
		}
		batch = append(batch, types.NewJoinRow(rel.JoinTable, rel.ForeignKey, ownerID, rel.AssociationForeignKey, targetID))
	}
	return r.emitBatch(batch, 0, len(batch), depth)
}

func (r *run) emitBatch(batch types.Batch, records, joins, depth int) error {
	if len(batch) == 0 {
		return nil
	}
	r.stats.Batches++
	r.stats.RecordsFound += int64(records)
	r.stats.JoinRows += int64(joins)
	if depth > r.stats.MaxDepth {
		r.stats.MaxDepth = depth
	}
	return r.emit(batch)
}

// distinctValues returns the non-nil values of column across records, first
// occurrence first.
func distinctValues(records []*types.Record, column string) []interface{} {
	seenKeys := make(map[string]struct{}, len(records))
	var out []interface{}
	for _, rec := range records {
		v, ok := rec.Get(column)
		if !ok || v == nil {
			continue
		}
		k := types.KeyString(v)
		if _, dup := seenKeys[k]; dup {
			continue
		}
		seenKeys[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
