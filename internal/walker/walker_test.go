package walker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goextract/internal/logger"
	"github.com/dbsmedya/goextract/internal/provider"
	"github.com/dbsmedya/goextract/internal/relation"
	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/seen"
	"github.com/dbsmedya/goextract/internal/types"
)

func blogSchema() *schema.Schema {
	s := schema.New()
	for _, table := range []string{"users", "posts", "profiles", "accounts", "tags", "comments"} {
		s.AddTable(table, "id")
	}
	s.AddRelation(schema.HasMany{Header: schema.Header{Name: "posts", Owner: "users"},
		Target: "posts", ForeignKey: "user_id", OwnerKey: "id"})
	s.AddRelation(schema.HasOne{Header: schema.Header{Name: "profile", Owner: "users"},
		Target: "profiles", ForeignKey: "user_id", OwnerKey: "id"})
	s.AddRelation(schema.HasOneThrough{Header: schema.Header{Name: "account", Owner: "users"},
		Through: "profile", Source: "account"})
	s.AddRelation(schema.HasOneThrough{Header: schema.Header{Name: "broken", Owner: "users"},
		Through: "nothing", Source: "account"})
	s.AddRelation(schema.HasManyThrough{Header: schema.Header{Name: "editors", Owner: "users"},
		Through: "posts", Source: "editor"})
	s.AddRelation(schema.HasManyThrough{Header: schema.Header{Name: "tagged", Owner: "users"},
		Through: "posts", Source: "tags"})
	s.AddRelation(schema.BelongsTo{Header: schema.Header{Name: "user", Owner: "posts"},
		Target: "users", ForeignKey: "user_id", TargetKey: "id"})
	s.AddRelation(schema.BelongsTo{Header: schema.Header{Name: "editor", Owner: "posts"},
		Target: "users", ForeignKey: "editor_id", TargetKey: "id"})
	s.AddRelation(schema.HasMany{Header: schema.Header{Name: "comments", Owner: "posts"},
		Target: "comments", ForeignKey: "post_id", OwnerKey: "id"})
	s.AddRelation(schema.HasAndBelongsToMany{Header: schema.Header{Name: "tags", Owner: "posts"},
		Target: "tags", JoinTable: "posts_tags", ForeignKey: "post_id", AssociationForeignKey: "tag_id",
		OwnerKey: "id", TargetKey: "id"})
	s.AddRelation(schema.BelongsTo{Header: schema.Header{Name: "account", Owner: "profiles"},
		Target: "accounts", ForeignKey: "account_id", TargetKey: "id"})
	return s
}

func row(pairs ...interface{}) []interface{} { return pairs }

func blogData(s *schema.Schema) *provider.Memory {
	m := provider.NewMemory(s)
	m.Insert("users",
		row("id", 1, "name", "Ada"),
		row("id", 2, "name", "Grace"),
		row("id", 3, "name", "Linus"),
	)
	m.Insert("posts",
		row("id", 10, "user_id", 1, "editor_id", 2),
		row("id", 11, "user_id", 1, "editor_id", 2),
		row("id", 12, "user_id", 2, "editor_id", 1),
	)
	m.Insert("tags", row("id", 100, "name", "go"), row("id", 101, "name", "sql"))
	m.Insert("posts_tags",
		row("post_id", 10, "tag_id", 100),
		row("post_id", 11, "tag_id", 100),
		row("post_id", 11, "tag_id", 101),
	)
	m.Insert("profiles", row("id", 50, "user_id", 1, "account_id", 70))
	m.Insert("accounts", row("id", 70, "plan", "pro"))
	m.Insert("comments", row("id", 200, "post_id", 10), row("id", 201, "post_id", 10))
	return m
}

// recorder flattens emitted batches into "table#id" and "join(src->tgt)"
// labels, one string per batch.
type recorder struct {
	batches []string
}

func (r *recorder) emit(b types.Batch) error {
	labels := make([]string, len(b))
	for i, c := range b {
		switch ch := c.(type) {
		case types.EntityChange:
			labels[i] = ch.Record.Table + "#" + ch.Record.Key()
		case types.RawChange:
			var vals []string
			for _, k := range ch.Values.Keys() {
				v, _ := ch.Values.Get(k)
				vals = append(vals, types.KeyString(v))
			}
			labels[i] = ch.Table + "(" + strings.Join(vals, "->") + ")"
		}
	}
	r.batches = append(r.batches, strings.Join(labels, ","))
	return nil
}

func (r *recorder) labels() []string {
	var out []string
	for _, b := range r.batches {
		out = append(out, strings.Split(b, ",")...)
	}
	return out
}

func newWalker(t *testing.T, p provider.Provider, s schema.Resolver, batchSize int) *Walker {
	t.Helper()
	w, err := New(s, p, batchSize)
	require.NoError(t, err)
	w.SetLogger(logger.NewNop())
	return w
}

func walk(t *testing.T, w *Walker, ids []interface{}, decl interface{}) (*recorder, types.DiscoveryStats) {
	t.Helper()
	rec := &recorder{}
	stats, err := w.Walk(context.Background(), seen.New(), "users", ids, "", relation.Normalize(decl), rec.emit)
	require.NoError(t, err)
	return rec, stats
}

func TestNew_Validation(t *testing.T) {
	s := blogSchema()
	m := blogData(s)

	_, err := New(nil, m, 10)
	assert.EqualError(t, err, "resolver is nil")
	_, err = New(s, nil, 10)
	assert.EqualError(t, err, "provider is nil")

	w, err := New(s, m, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, w.BatchSize())
}

func TestWalk_DepthFirstDeclaredOrder(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 1)

	rec, stats := walk(t, w, []interface{}{1}, map[string]interface{}{
		"posts": []interface{}{"tags", "user"},
	})

	assert.Equal(t, []string{
		"users#1",
		"posts#10",
		"tags#100",
		"posts_tags(10->100)",
		"posts#11",
		"posts_tags(11->100)",
		"tags#101",
		"posts_tags(11->101)",
	}, rec.batches)
	assert.Equal(t, int64(5), stats.RecordsFound)
	assert.Equal(t, int64(3), stats.JoinRows)
	assert.Equal(t, 8, stats.Batches)
	assert.Equal(t, 2, stats.MaxDepth)
}

func TestWalk_EveryIdentityOnce(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 2)

	// user -> posts -> editor -> posts -> user loops back over the same rows.
	rec, _ := walk(t, w, []interface{}{1, 2, 1}, map[string]interface{}{
		"posts":   map[string]interface{}{"editor": map[string]interface{}{"posts": []string{"user", "tags"}}, "tags": nil},
		"profile": nil,
		"account": nil,
	})

	counts := make(map[string]int)
	for _, l := range rec.labels() {
		counts[l]++
	}
	for label, n := range counts {
		assert.Equal(t, 1, n, "%s emitted %d times", label, n)
	}
	for _, want := range []string{"users#1", "users#2", "posts#10", "posts#11", "posts#12",
		"tags#100", "tags#101", "profiles#50", "accounts#70"} {
		assert.Contains(t, counts, want)
	}
}

func TestWalk_SharedGrandchildThroughJoin(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 1)

	rec, _ := walk(t, w, []interface{}{1}, map[string]interface{}{"posts": "tags"})

	n := 0
	for _, l := range rec.labels() {
		if l == "tags#100" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestWalk_JoinRowsNeverMixWithEntities(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)

	var batches []types.Batch
	_, err := w.Walk(context.Background(), nil, "posts", []interface{}{10, 11}, "",
		relation.Normalize("tags"), func(b types.Batch) error {
			batches = append(batches, b)
			return nil
		})
	require.NoError(t, err)

	joins := make(map[seen.JoinKey]int)
	for _, b := range batches {
		raw, entity := 0, 0
		for _, c := range b {
			switch ch := c.(type) {
			case types.RawChange:
				raw++
				src, _ := ch.Values.Get("post_id")
				tgt, _ := ch.Values.Get("tag_id")
				joins[seen.Join(ch.Table, src, tgt)]++
			case types.EntityChange:
				entity++
			}
		}
		assert.False(t, raw > 0 && entity > 0, "batch mixes join rows and entities")
	}
	assert.Len(t, joins, 3)
	for k, n := range joins {
		assert.Equal(t, 1, n, "join %v emitted twice", k)
	}
}

func TestWalk_FreshCallsAndDeterministicOrder(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 1)
	decl := map[string]interface{}{"posts": []interface{}{"comments", "tags"}, "profile": nil}

	first, _ := walk(t, w, []interface{}{1}, decl)
	second, _ := walk(t, w, []interface{}{1}, decl)

	assert.NotEmpty(t, first.batches)
	assert.Equal(t, first.batches, second.batches)
}

func TestWalk_SharedSetAcrossRoots(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)
	set := seen.New()
	tree := relation.Normalize(map[string]interface{}{"posts": "editor"})

	first := &recorder{}
	_, err := w.Walk(context.Background(), set, "users", []interface{}{1}, "", tree, first.emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"users#1", "posts#10,posts#11", "users#2"}, first.batches)

	// users#2 was reached through the first root, so it is not walked again.
	second := &recorder{}
	_, err = w.Walk(context.Background(), set, "users", []interface{}{2, 3}, "", tree, second.emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"users#3"}, second.batches)
}

func TestWalk_ToOneIsAlwaysSingleton(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 100)

	rec := &recorder{}
	_, err := w.Walk(context.Background(), nil, "posts", []interface{}{12}, "",
		relation.Normalize([]string{"user", "editor"}), rec.emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts#12", "users#2", "users#1"}, rec.batches)
}

func TestWalk_RecordsWithoutPrimaryKeyAreSkipped(t *testing.T) {
	s := blogSchema()
	m := blogData(s)
	m.Insert("comments", row("id", nil, "post_id", 11), row("post_id", 11, "body", "orphan"))
	m.Insert("profiles", row("user_id", 3))
	w := newWalker(t, m, s, 10)

	rec, stats := walk(t, w, []interface{}{1}, map[string]interface{}{"posts": "comments"})
	assert.Equal(t, []string{"users#1", "posts#10,posts#11", "comments#200,comments#201"}, rec.batches)
	assert.Equal(t, 2, stats.Keyless)

	rec, stats = walk(t, w, []interface{}{3}, "profile")
	assert.Equal(t, []string{"users#3"}, rec.batches)
	assert.Equal(t, 1, stats.Keyless)
}

func TestWalk_HasOneThrough(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)

	rec, _ := walk(t, w, []interface{}{1}, "account")
	assert.Equal(t, []string{"users#1", "profiles#50", "accounts#70"}, rec.batches)

	// The intermediate is already known: only the final target is new.
	rec, _ = walk(t, w, []interface{}{1}, []string{"profile", "account"})
	assert.Equal(t, []string{"users#1", "profiles#50", "accounts#70"}, rec.batches)
}

func TestWalk_HasManyThroughBelongsToSource(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)

	rec, _ := walk(t, w, []interface{}{1}, map[string]interface{}{"editors": "posts"})
	assert.Equal(t, []string{"users#1", "posts#10,posts#11", "users#2", "posts#12"}, rec.batches)
}

func TestWalk_HasManyThroughJoinSource(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)

	rec, _ := walk(t, w, []interface{}{1}, "tagged")
	assert.Equal(t, []string{
		"users#1",
		"posts#10,posts#11",
		"tags#100",
		"posts_tags(10->100)",
		"tags#101",
		"posts_tags(11->100),posts_tags(11->101)",
	}, rec.batches)
}

func TestWalk_UnknownRelationYieldsRootOnly(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)

	rec, stats := walk(t, w, []interface{}{1}, map[string]interface{}{"postz": "tags", "broken": nil})
	assert.Equal(t, []string{"users#1"}, rec.batches)
	assert.Equal(t, 2, stats.Skipped)
}

func TestWalk_RootSelection(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 2)

	rec, stats := walk(t, w, []interface{}{}, "posts")
	assert.Empty(t, rec.batches)
	assert.Equal(t, 0, stats.Batches)

	rec, _ = walk(t, w, nil, nil)
	assert.Equal(t, []string{"users#1,users#2", "users#3"}, rec.batches)

	rec, _ = walk(t, w, []interface{}{"3", int64(3), 99}, nil)
	assert.Equal(t, []string{"users#3"}, rec.batches)
}

func TestWalk_ProviderErrorIsFatal(t *testing.T) {
	s := blogSchema()
	m := blogData(s)
	boom := errors.New("connection refused")
	m.SetError("tags", boom)
	w := newWalker(t, m, s, 1)

	rec := &recorder{}
	_, err := w.Walk(context.Background(), nil, "users", []interface{}{1}, "",
		relation.Normalize(map[string]interface{}{"posts": "tags"}), rec.emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "users.posts: posts.tags")
	assert.Equal(t, []string{"users#1", "posts#10"}, rec.batches, "batches before the failure stay delivered")
}

func TestWalk_EmitErrors(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 1)
	tree := relation.Normalize("posts")

	n := 0
	_, err := w.Walk(context.Background(), nil, "users", []interface{}{1}, "", tree, func(types.Batch) error {
		n++
		if n == 2 {
			return ErrStop
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	sink := fmt.Errorf("sink closed")
	_, err = w.Walk(context.Background(), nil, "users", []interface{}{1}, "", tree, func(types.Batch) error {
		return sink
	})
	assert.ErrorIs(t, err, sink)
}

func TestWalk_CanceledContext(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := w.Walk(ctx, nil, "users", []interface{}{1}, "", relation.Normalize("posts"), func(types.Batch) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkRecord(t *testing.T) {
	s := blogSchema()
	w := newWalker(t, blogData(s), s, 10)
	set := seen.New()

	root := types.NewRecord("users", "id")
	root.Set("id", 3)

	rec := &recorder{}
	_, err := w.WalkRecord(context.Background(), set, root, relation.Normalize("posts"), rec.emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"users#3"}, rec.batches)

	again := &recorder{}
	_, err = w.WalkRecord(context.Background(), set, root, relation.Normalize("posts"), again.emit)
	require.NoError(t, err)
	assert.Empty(t, again.batches)
}
