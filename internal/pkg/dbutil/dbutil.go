package dbutil

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Finalize rebinds a gendry-built query for the sqlite driver. The builder
// emits '?' placeholders which sqlite accepts as-is; the rebind keeps the
// placeholder policy in one place should the driver change.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.QUESTION, query), args
}

// IsConflict reports whether err is a sqlite unique-constraint violation.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
