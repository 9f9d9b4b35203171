package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one result row keyed by column name.  Values are whatever the
// driver produced; the accessors below normalise the differences between
// MySQL ([]byte text, TINYINT booleans) and SQLite (string text, bool for
// BOOLEAN columns).
type Row map[string]any

// String returns the column as text ("" for NULL or a missing column).
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer (0 when NULL or unparseable).
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Uint64 returns the column as an unsigned id.
func (r Row) Uint64(col string) uint64 {
	if n := r.Int64(col); n > 0 {
		return uint64(n)
	}
	return 0
}

// Bool returns the column as a boolean; NULL is false.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case []byte:
		return truthy(string(v))
	case string:
		return truthy(v)
	}
	return r.Int64(col) != 0
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f":
		return false
	}
	return true
}

// timeLayouts covers DATETIME text as produced by both drivers when the
// value was not already decoded into time.Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

// Time returns the column as a UTC time (zero when NULL or unparseable).
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v.UTC()
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	return time.Time{}
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Has reports whether the column is present and non-NULL.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}
