package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/goextract/internal/dialect"
	"github.com/dbsmedya/goextract/internal/logger"
	"github.com/dbsmedya/goextract/internal/schema"
	"github.com/dbsmedya/goextract/internal/types"
)

// ErrUnsupportedRelation is returned when a method is given a descriptor kind it cannot follow.
var ErrUnsupportedRelation = errors.New("unsupported relation kind")

// SQLProvider reads records from a database/sql connection.
//
// Relation pages use keyset pagination on the target's primary key:
//
//	SELECT * FROM target WHERE fk = ? AND pk > ? ORDER BY pk ASC LIMIT n
//
// so every page query is an index range scan regardless of how deep the page is.
type SQLProvider struct {
	db       *sql.DB
	dialect  dialect.Dialect
	resolver schema.Resolver
	logger   *logger.Logger
}

// NewSQLProvider creates a provider over db. The resolver supplies primary key columns.
func NewSQLProvider(db *sql.DB, d dialect.Dialect, r schema.Resolver) (*SQLProvider, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if d == nil {
		return nil, fmt.Errorf("dialect is nil")
	}
	if r == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	return &SQLProvider{
		db:       db,
		dialect:  d,
		resolver: r,
		logger:   logger.NewDefault(),
	}, nil
}

// SetLogger sets a custom logger for the provider.
func (p *SQLProvider) SetLogger(log *logger.Logger) {
	p.logger = log
}

// Find implements Provider.
func (p *SQLProvider) Find(ctx context.Context, table string, id interface{}) (*types.Record, error) {
	return p.findBy(ctx, table, p.resolver.PrimaryKey(table), id)
}

// findBy returns the first record of table whose column equals value.
func (p *SQLProvider) findBy(ctx context.Context, table, column string, value interface{}) (*types.Record, error) {
	pk := p.resolver.PrimaryKey(table)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s ASC LIMIT 1",
		p.q(table), p.q(column), p.dialect.Placeholder(1), p.q(pk))

	records, err := p.query(ctx, table, query, value)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// FindAll implements Provider. ids are chunked by pageSize into IN lists.
func (p *SQLProvider) FindAll(ctx context.Context, table string, ids []interface{}, pageSize int, fn PageFunc) error {
	if pageSize <= 0 {
		pageSize = len(ids)
	}
	pk := p.resolver.PrimaryKey(table)

	for i := 0; i < len(ids); i += pageSize {
		end := i + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := make([]string, len(chunk))
		for j := range placeholders {
			placeholders[j] = p.dialect.Placeholder(j + 1)
		}

		query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s) ORDER BY %s ASC",
			p.q(table), p.q(pk), strings.Join(placeholders, ", "), p.q(pk))

		records, err := p.query(ctx, table, query, chunk...)
		if err != nil {
			return fmt.Errorf("chunk %d-%d: %w", i, end, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := fn(records); err != nil {
			return err
		}
	}
	return nil
}

// Scan implements Provider.
func (p *SQLProvider) Scan(ctx context.Context, table, where string, pageSize int, fn PageFunc) error {
	base := fmt.Sprintf("SELECT * FROM %s", p.q(table))
	var conds []condition
	if where != "" {
		conds = append(conds, condition{expr: "(" + where + ")"})
	}
	return p.pageKeyset(ctx, table, "", base, conds, pageSize, fn)
}

// FindOne implements Provider.
func (p *SQLProvider) FindOne(ctx context.Context, owner *types.Record, d schema.Descriptor) (*types.Record, error) {
	switch rel := d.(type) {
	case schema.BelongsTo:
		fk, ok := owner.Get(rel.ForeignKey)
		if !ok || fk == nil {
			return nil, nil
		}
		return p.findBy(ctx, rel.Target, rel.TargetKey, fk)
	case schema.HasOne:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil, nil
		}
		return p.findBy(ctx, rel.Target, rel.ForeignKey, id)
	}
	return nil, fmt.Errorf("FindOne %s.%s (%s): %w", owner.Table, d.Relation().Name, d.Kind(), ErrUnsupportedRelation)
}

// FindMany implements Provider.
func (p *SQLProvider) FindMany(ctx context.Context, owner *types.Record, d schema.Descriptor, pageSize int, fn PageFunc) error {
	switch rel := d.(type) {
	case schema.HasMany:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil
		}
		base := fmt.Sprintf("SELECT * FROM %s", p.q(rel.Target))
		conds := []condition{{expr: p.q(rel.ForeignKey) + " = ", arg: id, bind: true}}
		return p.pageKeyset(ctx, rel.Target, "", base, conds, pageSize, fn)

	case schema.HasAndBelongsToMany:
		id, ok := owner.Get(rel.OwnerKey)
		if !ok || id == nil {
			return nil
		}
		base := fmt.Sprintf("SELECT t.* FROM %s t INNER JOIN %s j ON j.%s = t.%s",
			p.q(rel.Target), p.q(rel.JoinTable), p.q(rel.AssociationForeignKey), p.q(rel.TargetKey))
		conds := []condition{{expr: "j." + p.q(rel.ForeignKey) + " = ", arg: id, bind: true}}
		return p.pageKeyset(ctx, rel.Target, "t.", base, conds, pageSize, fn)
	}
	return fmt.Errorf("FindMany %s.%s (%s): %w", owner.Table, d.Relation().Name, d.Kind(), ErrUnsupportedRelation)
}

// condition is one WHERE term. Bound terms end with the placeholder for arg.
type condition struct {
	expr string
	arg  interface{}
	bind bool
}

// pageKeyset runs base with conds until a short page is returned.
// alias prefixes the primary key column.
func (p *SQLProvider) pageKeyset(
	ctx context.Context,
	table, alias, base string,
	conds []condition,
	pageSize int,
	fn PageFunc,
) error {
	if pageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	pk := p.resolver.PrimaryKey(table)
	pkCol := alias + p.q(pk)

	var last interface{}
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := 0
		var where []string
		var queryArgs []interface{}
		for _, c := range conds {
			if !c.bind {
				where = append(where, c.expr)
				continue
			}
			n++
			where = append(where, c.expr+p.dialect.Placeholder(n))
			queryArgs = append(queryArgs, c.arg)
		}
		if page > 0 {
			n++
			where = append(where, pkCol+" > "+p.dialect.Placeholder(n))
			queryArgs = append(queryArgs, last)
		}

		query := base
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		query += fmt.Sprintf(" ORDER BY %s ASC LIMIT %d", pkCol, pageSize)

		records, err := p.query(ctx, table, query, queryArgs...)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := fn(records); err != nil {
			return err
		}
		if len(records) < pageSize {
			return nil
		}
		last = records[len(records)-1].ID()
	}
}

// query runs a SELECT and maps every row to a record of table.
func (p *SQLProvider) query(ctx context.Context, table, query string, args ...interface{}) ([]*types.Record, error) {
	p.logger.Debugw("Fetching records", "table", table, "query", query, "args", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed for %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get column names for %s: %w", table, err)
	}

	pk := p.resolver.PrimaryKey(table)
	var records []*types.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}

		rec := types.NewRecord(table, pk)
		for i, col := range columns {
			rec.Set(col, types.NormalizeValue(values[i]))
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}

	return records, nil
}

func (p *SQLProvider) q(name string) string {
	return p.dialect.QuoteIdentifier(name)
}
