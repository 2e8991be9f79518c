package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyString_IntTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{name: "int64", input: int64(42), expected: "42"},
		{name: "int", input: int(100), expected: "100"},
		{name: "int32", input: int32(200), expected: "200"},
		{name: "int16", input: int16(300), expected: "300"},
		{name: "int8", input: int8(-128), expected: "-128"},
		{name: "uint", input: uint(500), expected: "500"},
		{name: "uint64", input: uint64(1000), expected: "1000"},
		{name: "uint32", input: uint32(2000), expected: "2000"},
		{name: "uint16", input: uint16(3000), expected: "3000"},
		{name: "uint8", input: uint8(255), expected: "255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeyString(tt.input))
		})
	}
}

func TestKeyString_MixedRepresentationsCollide(t *testing.T) {
	want := KeyString(int64(7))
	assert.Equal(t, want, KeyString("7"))
	assert.Equal(t, want, KeyString([]byte("7")))
	assert.Equal(t, want, KeyString(float64(7)))
	assert.Equal(t, want, KeyString(7))
}

func TestKeyString_Other(t *testing.T) {
	assert.Equal(t, "", KeyString(nil))
	assert.Equal(t, "1.5", KeyString(float64(1.5)))
	assert.Equal(t, "abc-123", KeyString("abc-123"))
	assert.Equal(t, "true", KeyString(true))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "12.3400", NormalizeValue([]byte("12.3400")))
	assert.Equal(t, int64(3), NormalizeValue(int64(3)))
	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t, "žluťoučký", NormalizeValue([]byte("žluťoučký")))
	assert.Equal(t, []byte{0xde, 0xad, 0xff, 0x27}, NormalizeValue([]byte{0xde, 0xad, 0xff, 0x27}))
}
