package dialect

import (
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Postgres renders statements for PostgreSQL.
type Postgres struct{}

var postgresStyle = literalStyle{
	quote: pq.QuoteLiteral,
	bytes: func(b []byte) string { return "decode('" + hexString(b) + "', 'hex')" },
}

// Name implements Dialect.
func (Postgres) Name() string { return "postgres" }

// QuoteIdentifier implements Dialect.
func (Postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

// Placeholder implements Dialect.
func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// Literal implements Dialect.
func (Postgres) Literal(table, column string, v interface{}) (string, error) {
	return postgresStyle.render(table, column, v)
}

// OnDuplicate implements Dialect.
//
// ignore:   ON CONFLICT DO NOTHING
// override: ON CONFLICT ("id") DO UPDATE SET "a" = EXCLUDED."a"
//
// Rows without a primary key, or whose only column is the key, fall back to DO NOTHING.
func (Postgres) OnDuplicate(p Policy, table, primaryKey string, columns []string) string {
	switch p {
	case PolicyIgnore:
		return "ON CONFLICT DO NOTHING"
	case PolicyOverride:
		if primaryKey == "" {
			return "ON CONFLICT DO NOTHING"
		}
		var sets []string
		for _, c := range columns {
			if c == primaryKey {
				continue
			}
			q := pq.QuoteIdentifier(c)
			sets = append(sets, q+" = EXCLUDED."+q)
		}
		if len(sets) == 0 {
			return "ON CONFLICT DO NOTHING"
		}
		return "ON CONFLICT (" + pq.QuoteIdentifier(primaryKey) + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return ""
}
