package types

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// KeyString converts a primary key value to its canonical string form.
// Integer kinds, integral floats, strings and []byte holding the same digits
// all produce the same key, so ids typed on the command line match ids
// scanned from the driver.
func KeyString(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.FormatInt(int64(k), 10)
	case int32:
		return strconv.FormatInt(int64(k), 10)
	case int16:
		return strconv.FormatInt(int64(k), 10)
	case int8:
		return strconv.FormatInt(int64(k), 10)
	case uint:
		return strconv.FormatUint(uint64(k), 10)
	case uint64:
		return strconv.FormatUint(k, 10)
	case uint32:
		return strconv.FormatUint(uint64(k), 10)
	case uint16:
		return strconv.FormatUint(uint64(k), 10)
	case uint8:
		return strconv.FormatUint(uint64(k), 10)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'g', -1, 64)
	case float32:
		if k == float32(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(float64(k), 'g', -1, 32)
	default:
		return fmt.Sprint(k)
	}
}

// NormalizeValue converts driver values into the forms the rest of the
// pipeline expects. The MySQL driver returns []byte for text and DECIMAL
// columns; those become strings so decimals keep their full textual precision.
// Bytes that are not valid UTF-8 stay []byte and render as binary literals.
func NormalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}
