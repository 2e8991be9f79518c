// Package serializer renders batches of changes as INSERT statements.
package serializer

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/goextract/internal/dialect"
	"github.com/dbsmedya/goextract/internal/obfuscate"
	"github.com/dbsmedya/goextract/internal/types"
)

// Serializer turns changes into statements of the form
//
//	INSERT INTO <table> (<columns>) VALUES (<literals>)[ <on-duplicate clause>];
//
// Entity records are obfuscated in place before rendering.
type Serializer struct {
	dialect    dialect.Dialect
	obfuscator *obfuscate.Obfuscator
	policy     dialect.Policy
}

// New creates a serializer. o may be nil when nothing is obfuscated.
func New(d dialect.Dialect, o *obfuscate.Obfuscator, policy dialect.Policy) (*Serializer, error) {
	if d == nil {
		return nil, fmt.Errorf("dialect is nil")
	}
	return &Serializer{dialect: d, obfuscator: o, policy: policy}, nil
}

// Translate renders batch in order. Statements whose text is identical to an
// earlier statement of the same call are dropped.
func (s *Serializer) Translate(batch types.Batch) ([]string, error) {
	if err := s.obfuscator.Apply(batch.Records()); err != nil {
		return nil, err
	}

	statements := make([]string, 0, len(batch))
	rendered := make(map[string]struct{}, len(batch))
	for _, change := range batch {
		var (
			stmt string
			err  error
		)
		switch c := change.(type) {
		case types.EntityChange:
			stmt, err = s.Statement(c.Record.Table, c.Record.PrimaryKey, c.Record.Attrs)
		case types.RawChange:
			stmt, err = s.Statement(c.Table, "", c.Values)
		default:
			err = fmt.Errorf("unsupported change %T", change)
		}
		if err != nil {
			return nil, err
		}
		if _, dup := rendered[stmt]; dup {
			continue
		}
		rendered[stmt] = struct{}{}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// TranslateCopy renders batch like Translate but obfuscates copies, so the
// records of batch keep their source values.
func (s *Serializer) TranslateCopy(batch types.Batch) ([]string, error) {
	if s.obfuscator.Empty() {
		return s.Translate(batch)
	}
	return s.Translate(batch.Clone())
}

// Statement renders one INSERT. primaryKey is empty for rows without one.
func (s *Serializer) Statement(table, primaryKey string, values *types.Attributes) (string, error) {
	columns := values.Keys()
	quoted := make([]string, len(columns))
	literals := make([]string, len(columns))
	for i, col := range columns {
		v, _ := values.Get(col)
		lit, err := s.dialect.Literal(table, col, v)
		if err != nil {
			return "", err
		}
		quoted[i] = s.dialect.QuoteIdentifier(col)
		literals[i] = lit
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(literals, ", "),
	)
	if clause := s.dialect.OnDuplicate(s.policy, table, primaryKey, columns); clause != "" {
		sb.WriteString(" ")
		sb.WriteString(clause)
	}
	sb.WriteString(";")
	return sb.String(), nil
}
