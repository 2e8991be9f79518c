// Package dialect renders identifiers, literals and on-duplicate clauses for a
// target SQL dialect.
package dialect

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// Policy decides what an INSERT does when the row already exists.
type Policy string

const (
	PolicyFail     Policy = "fail"     // plain INSERT, duplicates raise an error on replay
	PolicyIgnore   Policy = "ignore"   // keep the existing row
	PolicyOverride Policy = "override" // replace the existing row's values
)

// ParsePolicy converts a configuration value; empty means PolicyFail.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicyIgnore:
		return PolicyIgnore, nil
	case PolicyOverride:
		return PolicyOverride, nil
	}
	return "", fmt.Errorf("unknown on-duplicate policy %q (must be fail, ignore or override)", s)
}

// Dialect is the literal renderer collaborator for one SQL flavour.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter marker for the n-th argument, starting at 1.
	Placeholder(n int) string
	// Literal renders v as literal text for the given table column.
	Literal(table, column string, v interface{}) (string, error)
	// OnDuplicate returns the clause appended to every INSERT, or "" for none.
	// primaryKey is empty for rows without a key of their own, such as join rows.
	OnDuplicate(p Policy, table, primaryKey string, columns []string) string
}

// ByName returns the dialect registered under name.
func ByName(name string) (Dialect, error) {
	switch name {
	case "mysql", "":
		return MySQL{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

// timestampLayout keeps microseconds, the finest precision both targets store.
const timestampLayout = "2006-01-02 15:04:05.999999"

// literalStyle holds the dialect specific pieces of literal rendering.
type literalStyle struct {
	quote func(string) string
	bytes func([]byte) string
}

// render formats the value kinds database/sql drivers produce.
func (s literalStyle) render(table, column string, v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return s.quote(x), nil
	case []byte:
		if utf8.Valid(x) {
			return s.quote(string(x)), nil
		}
		return s.bytes(x), nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%s.%s: cannot render non-finite float %v", table, column, x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%s.%s: cannot render non-finite float %v", table, column, x)
		}
		return strconv.FormatFloat(f, 'g', -1, 32), nil
	case time.Time:
		return s.quote(x.Format(timestampLayout)), nil
	case fmt.Stringer:
		// Decimal types print their exact value.
		return s.quote(x.String()), nil
	default:
		return s.quote(fmt.Sprint(x)), nil
	}
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
