// Package schema describes tables and the named relations between them, and
// resolves (table, relation name) pairs into relation descriptors.
package schema

import "fmt"

// Kind enumerates the relation shapes the walker knows how to follow.
type Kind int

const (
	KindBelongsTo           Kind = iota // to-one, foreign key on the owner
	KindHasOne                          // to-one, foreign key on the target
	KindHasOneThrough                   // to-one via an intermediate relation
	KindHasMany                         // to-many, foreign key on the target
	KindHasManyThrough                  // to-many via an intermediate relation
	KindHasAndBelongsToMany             // to-many via a join table
)

var kindNames = map[Kind]string{
	KindBelongsTo:           "belongs_to",
	KindHasOne:              "has_one",
	KindHasOneThrough:       "has_one_through",
	KindHasMany:             "has_many",
	KindHasManyThrough:      "has_many_through",
	KindHasAndBelongsToMany: "has_and_belongs_to_many",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ToMany reports whether the kind can yield more than one record.
func (k Kind) ToMany() bool {
	return k == KindHasMany || k == KindHasManyThrough || k == KindHasAndBelongsToMany
}

// ParseKind converts a configuration kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// Header carries the fields shared by every descriptor.
type Header struct {
	Name  string // Relation name as declared on the owner
	Owner string // Table that declares the relation
}

// Relation returns the shared descriptor fields.
func (h Header) Relation() Header { return h }

// Descriptor is resolved metadata for one (table, relation name) pair.
// The concrete type is one of BelongsTo, HasOne, HasOneThrough, HasMany,
// HasManyThrough or HasAndBelongsToMany.
type Descriptor interface {
	Kind() Kind
	Relation() Header
}

// BelongsTo follows a foreign key stored on the owner to the target's primary key.
type BelongsTo struct {
	Header
	Target     string
	ForeignKey string // column on the owner
	TargetKey  string // primary key of the target
}

// Kind implements Descriptor.
func (BelongsTo) Kind() Kind { return KindBelongsTo }

// HasOne finds the single target row whose foreign key references the owner.
type HasOne struct {
	Header
	Target     string
	ForeignKey string // column on the target
	OwnerKey   string // primary key of the owner
}

// Kind implements Descriptor.
func (HasOne) Kind() Kind { return KindHasOne }

// HasMany finds every target row whose foreign key references the owner.
type HasMany struct {
	Header
	Target     string
	ForeignKey string // column on the target
	OwnerKey   string // primary key of the owner
}

// Kind implements Descriptor.
func (HasMany) Kind() Kind { return KindHasMany }

// HasOneThrough reaches one target by following Through on the owner, then
// Source on the intermediate record.
type HasOneThrough struct {
	Header
	Through string
	Source  string
}

// Kind implements Descriptor.
func (HasOneThrough) Kind() Kind { return KindHasOneThrough }

// HasManyThrough reaches many targets by following Through on the owner, then
// the to-one Source relation on each intermediate record.
type HasManyThrough struct {
	Header
	Through string
	Source  string
}

// Kind implements Descriptor.
func (HasManyThrough) Kind() Kind { return KindHasManyThrough }

// HasAndBelongsToMany links owner and target rows through a join table that
// has no primary key of its own.
type HasAndBelongsToMany struct {
	Header
	Target                string
	JoinTable             string
	ForeignKey            string // join column referencing the owner
	AssociationForeignKey string // join column referencing the target
	OwnerKey              string // primary key of the owner
	TargetKey             string // primary key of the target
}

// Kind implements Descriptor.
func (HasAndBelongsToMany) Kind() Kind { return KindHasAndBelongsToMany }
