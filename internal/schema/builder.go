package schema

import (
	"fmt"
	"sort"

	"github.com/dbsmedya/goextract/internal/config"
)

// Builder constructs a Schema from the schema section of the configuration.
type Builder struct {
	cfg *config.SchemaConfig
}

// NewBuilder creates a new schema builder for the given configuration.
func NewBuilder(cfg *config.SchemaConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build registers every table first, so primary keys of targets are known,
// then turns each relation declaration into its descriptor.
func (b *Builder) Build() (*Schema, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("schema configuration is nil")
	}

	s := New()
	tables := make([]string, 0, len(b.cfg.Tables))
	for name := range b.cfg.Tables {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, name := range tables {
		s.AddTable(name, b.cfg.Tables[name].PrimaryKey)
	}

	for _, table := range tables {
		tc := b.cfg.Tables[table]
		names := make([]string, 0, len(tc.Relations))
		for name := range tc.Relations {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			d, err := b.descriptor(s, table, name, tc.Relations[name])
			if err != nil {
				return nil, fmt.Errorf("table %q: %w", table, err)
			}
			s.AddRelation(d)
		}
	}

	return s, nil
}

// descriptor converts one relation declaration.
// Missing intermediate relations of through kinds are not checked here; the
// walker skips them at traversal time.
func (b *Builder) descriptor(s *Schema, owner, name string, rc config.RelationConfig) (Descriptor, error) {
	kind, err := ParseKind(rc.Kind)
	if err != nil {
		return nil, fmt.Errorf("relation %q: %w", name, err)
	}

	h := Header{Name: name, Owner: owner}
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("relation %q: %s is required for kind %s", name, field, kind)
		}
		return nil
	}

	switch kind {
	case KindBelongsTo, KindHasOne, KindHasMany:
		if err := need("table", rc.Table); err != nil {
			return nil, err
		}
		if err := need("foreign_key", rc.ForeignKey); err != nil {
			return nil, err
		}
		switch kind {
		case KindBelongsTo:
			return BelongsTo{Header: h, Target: rc.Table, ForeignKey: rc.ForeignKey, TargetKey: s.PrimaryKey(rc.Table)}, nil
		case KindHasOne:
			return HasOne{Header: h, Target: rc.Table, ForeignKey: rc.ForeignKey, OwnerKey: s.PrimaryKey(owner)}, nil
		default:
			return HasMany{Header: h, Target: rc.Table, ForeignKey: rc.ForeignKey, OwnerKey: s.PrimaryKey(owner)}, nil
		}

	case KindHasOneThrough, KindHasManyThrough:
		if err := need("through", rc.Through); err != nil {
			return nil, err
		}
		if err := need("source", rc.Source); err != nil {
			return nil, err
		}
		if kind == KindHasOneThrough {
			return HasOneThrough{Header: h, Through: rc.Through, Source: rc.Source}, nil
		}
		return HasManyThrough{Header: h, Through: rc.Through, Source: rc.Source}, nil

	case KindHasAndBelongsToMany:
		for _, f := range [][2]string{
			{"table", rc.Table},
			{"join_table", rc.JoinTable},
			{"foreign_key", rc.ForeignKey},
			{"association_foreign_key", rc.AssociationForeignKey},
		} {
			if err := need(f[0], f[1]); err != nil {
				return nil, err
			}
		}
		return HasAndBelongsToMany{
			Header:                h,
			Target:                rc.Table,
			JoinTable:             rc.JoinTable,
			ForeignKey:            rc.ForeignKey,
			AssociationForeignKey: rc.AssociationForeignKey,
			OwnerKey:              s.PrimaryKey(owner),
			TargetKey:             s.PrimaryKey(rc.Table),
		}, nil
	}

	return nil, fmt.Errorf("relation %q: unsupported kind %s", name, kind)
}

// BuildFromConfig is a convenience function that builds a schema directly from configuration.
func BuildFromConfig(cfg *config.SchemaConfig) (*Schema, error) {
	return NewBuilder(cfg).Build()
}
