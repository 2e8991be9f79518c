// Package seen tracks which identities a traversal has already emitted.
package seen

import "github.com/dbsmedya/goextract/internal/types"

// Key identifies something that must be emitted at most once per traversal.
// It is implemented by EntityKey and JoinKey only.
type Key interface {
	isKey()
}

// EntityKey identifies a record by table and canonical primary key.
type EntityKey struct {
	Table string
	ID    string
}

func (EntityKey) isKey() {}

// JoinKey identifies a synthesized join row.
type JoinKey struct {
	SourceID  string
	TargetID  string
	JoinTable string
}

func (JoinKey) isKey() {}

// Entity returns the key for a record.
func Entity(r *types.Record) EntityKey {
	return EntityKey{Table: r.Table, ID: r.Key()}
}

// Join returns the key for the join row linking sourceID to targetID.
func Join(joinTable string, sourceID, targetID interface{}) JoinKey {
	return JoinKey{
		SourceID:  types.KeyString(sourceID),
		TargetID:  types.KeyString(targetID),
		JoinTable: joinTable,
	}
}

// Set is the dedup state of one traversal call. Keys are never removed.
// A Set is not safe for concurrent use.
type Set struct {
	keys     map[Key]struct{}
	entities int
	joins    int
}

// New returns an empty set.
func New() *Set {
	return &Set{keys: make(map[Key]struct{})}
}

// Add inserts k and reports whether it was not present before.
func (s *Set) Add(k Key) bool {
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	switch k.(type) {
	case EntityKey:
		s.entities++
	case JoinKey:
		s.joins++
	}
	return true
}

// Has reports whether k was added.
func (s *Set) Has(k Key) bool {
	_, ok := s.keys[k]
	return ok
}

// Len returns the number of keys of both kinds.
func (s *Set) Len() int {
	return len(s.keys)
}

// Entities returns the number of entity keys.
func (s *Set) Entities() int {
	return s.entities
}

// Joins returns the number of join keys.
func (s *Set) Joins() int {
	return s.joins
}

// Filter marks every unseen record and returns them in input order.
// Records repeated within records are returned once.
func (s *Set) Filter(records []*types.Record) []*types.Record {
	var fresh []*types.Record
	for _, r := range records {
		if s.Add(Entity(r)) {
			fresh = append(fresh, r)
		}
	}
	return fresh
}
