package dialect

import (
	"strings"

	"github.com/dbsmedya/goextract/internal/sqlutil"
)

// MySQL renders statements for MySQL and MariaDB.
type MySQL struct{}

var mysqlStyle = literalStyle{
	quote: sqlutil.QuoteString,
	bytes: func(b []byte) string { return "X'" + hexString(b) + "'" },
}

// Name implements Dialect.
func (MySQL) Name() string { return "mysql" }

// QuoteIdentifier implements Dialect.
func (MySQL) QuoteIdentifier(name string) string { return sqlutil.QuoteIdentifier(name) }

// Placeholder implements Dialect.
func (MySQL) Placeholder(int) string { return "?" }

// Literal implements Dialect.
func (MySQL) Literal(table, column string, v interface{}) (string, error) {
	return mysqlStyle.render(table, column, v)
}

// OnDuplicate implements Dialect.
//
// ignore:   ON DUPLICATE KEY UPDATE `id` = `id`
// override: ON DUPLICATE KEY UPDATE `a` = VALUES(`a`), `b` = VALUES(`b`)
func (MySQL) OnDuplicate(p Policy, table, primaryKey string, columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	switch p {
	case PolicyIgnore:
		key := primaryKey
		if key == "" {
			key = columns[0]
		}
		q := sqlutil.QuoteIdentifier(key)
		return "ON DUPLICATE KEY UPDATE " + q + " = " + q
	case PolicyOverride:
		sets := make([]string, len(columns))
		for i, c := range columns {
			q := sqlutil.QuoteIdentifier(c)
			sets[i] = q + " = VALUES(" + q + ")"
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return ""
}
