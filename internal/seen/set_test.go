package seen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/goextract/internal/types"
)

func record(table string, id interface{}) *types.Record {
	r := types.NewRecord(table, "id")
	r.Set("id", id)
	return r
}

func TestSet_AddOnce(t *testing.T) {
	s := New()

	assert.True(t, s.Add(EntityKey{Table: "users", ID: "1"}))
	assert.False(t, s.Add(EntityKey{Table: "users", ID: "1"}))
	assert.True(t, s.Add(EntityKey{Table: "orders", ID: "1"}))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Entities())
	assert.Equal(t, 0, s.Joins())
}

func TestSet_KeyKindsDoNotCollide(t *testing.T) {
	s := New()

	// Same strings, different identity classes.
	assert.True(t, s.Add(EntityKey{Table: "posts_tags", ID: "1"}))
	assert.True(t, s.Add(JoinKey{SourceID: "1", TargetID: "1", JoinTable: "posts_tags"}))
	assert.False(t, s.Add(Join("posts_tags", int64(1), "1")))

	assert.Equal(t, 1, s.Entities())
	assert.Equal(t, 1, s.Joins())
}

func TestSet_JoinDirectionMatters(t *testing.T) {
	s := New()
	assert.True(t, s.Add(Join("t", 1, 2)))
	assert.True(t, s.Add(Join("t", 2, 1)))
	assert.True(t, s.Has(Join("t", "1", "2")))
}

func TestSet_EntityKeyCanonicalizesIDs(t *testing.T) {
	s := New()
	assert.True(t, s.Add(Entity(record("users", int64(5)))))
	assert.False(t, s.Add(Entity(record("users", "5"))))
	assert.False(t, s.Add(Entity(record("users", []byte("5")))))
}

func TestSet_Filter(t *testing.T) {
	s := New()
	s.Add(Entity(record("tags", int64(2))))

	in := []*types.Record{
		record("tags", int64(1)),
		record("tags", int64(2)),
		record("tags", int64(3)),
		record("tags", int64(1)),
	}

	out := s.Filter(in)

	assert.Equal(t, []*types.Record{in[0], in[2]}, out)
	assert.True(t, s.Has(EntityKey{Table: "tags", ID: "3"}))
	assert.Empty(t, s.Filter(in))
}
