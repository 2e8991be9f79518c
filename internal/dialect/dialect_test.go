package dialect

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimal string

func (d decimal) String() string { return string(d) }

func TestLiteral_MySQL(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)

	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "nil", value: nil, expected: "NULL"},
		{name: "string", value: "O'Brien", expected: `'O\'Brien'`},
		{name: "utf8 bytes", value: []byte("abc"), expected: "'abc'"},
		{name: "binary bytes", value: []byte{0xde, 0xad, 0xff}, expected: "X'deadff'"},
		{name: "true", value: true, expected: "TRUE"},
		{name: "false", value: false, expected: "FALSE"},
		{name: "int64", value: int64(-42), expected: "-42"},
		{name: "uint64", value: uint64(18446744073709551615), expected: "18446744073709551615"},
		{name: "float64", value: 3.25, expected: "3.25"},
		{name: "float32", value: float32(0.5), expected: "0.5"},
		{name: "decimal text keeps precision", value: "12345678901234567890.123456789", expected: "'12345678901234567890.123456789'"},
		{name: "decimal stringer", value: decimal("0.10000000000000000001"), expected: "'0.10000000000000000001'"},
		{name: "time", value: ts, expected: "'2024-03-01 12:30:45.123456'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MySQL{}.Literal("t", "c", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLiteral_Postgres(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "nil", value: nil, expected: "NULL"},
		{name: "string", value: "O'Brien", expected: "'O''Brien'"},
		{name: "binary bytes", value: []byte{0x00, 0xff}, expected: "decode('00ff', 'hex')"},
		{name: "bool", value: true, expected: "TRUE"},
		{name: "int", value: 7, expected: "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Postgres{}.Literal("t", "c", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLiteral_NonFiniteFloat(t *testing.T) {
	_, err := MySQL{}.Literal("prices", "amount", math.Inf(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prices.amount")

	_, err = Postgres{}.Literal("prices", "amount", math.NaN())
	assert.Error(t, err)
}

func TestQuoteIdentifierAndPlaceholder(t *testing.T) {
	assert.Equal(t, "`order items`", MySQL{}.QuoteIdentifier("order items"))
	assert.Equal(t, `"order items"`, Postgres{}.QuoteIdentifier("order items"))
	assert.Equal(t, "?", MySQL{}.Placeholder(3))
	assert.Equal(t, "$3", Postgres{}.Placeholder(3))
}

func TestOnDuplicate_MySQL(t *testing.T) {
	cols := []string{"id", "name"}
	d := MySQL{}

	assert.Equal(t, "", d.OnDuplicate(PolicyFail, "users", "id", cols))
	assert.Equal(t, "ON DUPLICATE KEY UPDATE `id` = `id`", d.OnDuplicate(PolicyIgnore, "users", "id", cols))
	assert.Equal(t, "ON DUPLICATE KEY UPDATE `post_id` = `post_id`",
		d.OnDuplicate(PolicyIgnore, "posts_tags", "", []string{"post_id", "tag_id"}))
	assert.Equal(t, "ON DUPLICATE KEY UPDATE `id` = VALUES(`id`), `name` = VALUES(`name`)",
		d.OnDuplicate(PolicyOverride, "users", "id", cols))
	assert.Equal(t, "", d.OnDuplicate(PolicyOverride, "users", "id", nil))
}

func TestOnDuplicate_Postgres(t *testing.T) {
	cols := []string{"id", "name"}
	d := Postgres{}

	assert.Equal(t, "", d.OnDuplicate(PolicyFail, "users", "id", cols))
	assert.Equal(t, "ON CONFLICT DO NOTHING", d.OnDuplicate(PolicyIgnore, "users", "id", cols))
	assert.Equal(t, `ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name"`,
		d.OnDuplicate(PolicyOverride, "users", "id", cols))
	assert.Equal(t, "ON CONFLICT DO NOTHING", d.OnDuplicate(PolicyOverride, "posts_tags", "", []string{"a", "b"}))
	assert.Equal(t, "ON CONFLICT DO NOTHING", d.OnDuplicate(PolicyOverride, "tags", "id", []string{"id"}))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyFail, "fail": PolicyFail, "ignore": PolicyIgnore, "override": PolicyOverride} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("replace")
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	d, err := ByName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = ByName("oracle")
	assert.Error(t, err)
}
