package schema

import (
	"sort"

	"github.com/dbsmedya/goextract/internal/relation"
)

// DefaultPrimaryKey is used for tables that do not declare one.
const DefaultPrimaryKey = "id"

// Resolver looks up relation metadata. A missing relation is reported with
// ok == false and is never an error.
type Resolver interface {
	Resolve(table, name string) (d Descriptor, ok bool)
	PrimaryKey(table string) string
}

// Table holds the primary key and named relations of one table.
type Table struct {
	Name       string
	PrimaryKey string
	Relations  map[string]Descriptor
}

// Schema is an in-memory Resolver.
type Schema struct {
	tables map[string]*Table
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{tables: make(map[string]*Table)}
}

// AddTable registers a table. An empty primary key falls back to DefaultPrimaryKey.
// Adding a table twice keeps its relations and updates the primary key.
func (s *Schema) AddTable(name, primaryKey string) *Table {
	if primaryKey == "" {
		primaryKey = DefaultPrimaryKey
	}
	if t, ok := s.tables[name]; ok {
		t.PrimaryKey = primaryKey
		return t
	}
	t := &Table{
		Name:       name,
		PrimaryKey: primaryKey,
		Relations:  make(map[string]Descriptor),
	}
	s.tables[name] = t
	return t
}

// AddRelation registers d on its owner table, creating the table when needed.
func (s *Schema) AddRelation(d Descriptor) {
	h := d.Relation()
	t, ok := s.tables[h.Owner]
	if !ok {
		t = s.AddTable(h.Owner, "")
	}
	t.Relations[h.Name] = d
}

// Resolve implements Resolver.
func (s *Schema) Resolve(table, name string) (Descriptor, bool) {
	t, ok := s.tables[table]
	if !ok {
		return nil, false
	}
	d, ok := t.Relations[name]
	return d, ok
}

// PrimaryKey implements Resolver. Unknown tables default to "id".
func (s *Schema) PrimaryKey(table string) string {
	if t, ok := s.tables[table]; ok {
		return t.PrimaryKey
	}
	return DefaultPrimaryKey
}

// HasTable reports whether the table is declared.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// TableNames returns every declared table name, sorted.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationNames returns the relation names of a table, sorted.
func (s *Schema) RelationNames(table string) []string {
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(t.Relations))
	for name := range t.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetTable returns the table a descriptor ultimately reaches. Through
// relations are followed via the resolver; ok is false when a hop is missing.
func TargetTable(r Resolver, d Descriptor) (string, bool) {
	switch rel := d.(type) {
	case BelongsTo:
		return rel.Target, true
	case HasOne:
		return rel.Target, true
	case HasMany:
		return rel.Target, true
	case HasAndBelongsToMany:
		return rel.Target, true
	case HasOneThrough:
		return throughTarget(r, rel.Owner, rel.Through, rel.Source)
	case HasManyThrough:
		return throughTarget(r, rel.Owner, rel.Through, rel.Source)
	}
	return "", false
}

func throughTarget(r Resolver, owner, through, source string) (string, bool) {
	via, ok := r.Resolve(owner, through)
	if !ok {
		return "", false
	}
	mid, ok := TargetTable(r, via)
	if !ok {
		return "", false
	}
	src, ok := r.Resolve(mid, source)
	if !ok {
		return "", false
	}
	return TargetTable(r, src)
}

// Unresolved is a relation name in a tree that the resolver does not know.
type Unresolved struct {
	Path  string // dotted path from the root, e.g. "orders.items"
	Table string // table the name was looked up on
	Name  string
}

// Check walks tree from table and reports every name that does not resolve,
// including through relations whose intermediate or source hop is missing.
// The walker skips such names silently; Check exists so tooling can warn.
func Check(r Resolver, table string, tree *relation.Tree) []Unresolved {
	var out []Unresolved
	check(r, table, tree, "", &out)
	return out
}

func check(r Resolver, table string, tree *relation.Tree, prefix string, out *[]Unresolved) {
	for _, name := range tree.Names() {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		d, ok := r.Resolve(table, name)
		if !ok {
			*out = append(*out, Unresolved{Path: path, Table: table, Name: name})
			continue
		}
		target, ok := TargetTable(r, d)
		if !ok {
			*out = append(*out, Unresolved{Path: path, Table: table, Name: name})
			continue
		}
		check(r, target, tree.Child(name), path, out)
	}
}
