package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// InsertResult is the outcome of an insert guarded by a unique key.  Either
// the row was inserted (Conflict is false and Row carries the stored
// values) or a concurrent writer won the race (Conflict is true and Row is
// the zero value).  Conflicts are not errors: callers recover by reading
// the row that already exists.
type InsertResult[T any] struct {
	Row      T
	Conflict bool
}

// Inserted wraps a freshly stored row.
func Inserted[T any](row T) InsertResult[T] { return InsertResult[T]{Row: row} }

// Conflicted reports a uniqueness conflict.
func Conflicted[T any]() InsertResult[T] { return InsertResult[T]{Conflict: true} }

// isDuplicate reports whether err is a MySQL duplicate-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	// some proxies flatten the driver error into text
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") || strings.Contains(msg, "Duplicate entry")
}

// inClause returns "?,?,?" for n placeholders and the values as []any.
func inClause(ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "NULL", nil
	}
	var b strings.Builder
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('?')
		args = append(args, id)
	}
	return b.String(), args
}
