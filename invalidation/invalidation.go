// Package invalidation decides which cache keys a write makes stale.
//
// Matching is plain substring containment, not glob or regex: a key is
// removed when it contains the pattern anywhere. "departments" therefore
// drops every read cached under the departments table.
package invalidation

import "strings"

// Mutation is a write operation on a table.
type Mutation string

const (
	Create Mutation = "create"
	Update Mutation = "update"
	Delete Mutation = "delete"
)

// Read operation names as they appear in cache keys.
const (
	OpGetAll  = "getAll"
	OpGetByID = "getById"
	OpSearch  = "search"
	OpFilter  = "filter"
)

// Matches reports whether key contains pattern. The empty pattern matches nothing,
// so a caller bug cannot silently wipe the whole cache.
func Matches(key, pattern string) bool {
	return pattern != "" && strings.Contains(key, pattern)
}

// Namespace joins a table and a read operation: "departments:getAll".
func Namespace(table, op string) string {
	return table + ":" + op
}

// RecordNamespace is the namespace of a single-record read: "departments:getById:7".
func RecordNamespace(table, id string) string {
	return table + ":" + OpGetByID + ":" + id
}

/*
MutationPatterns lists the patterns to invalidate after m on table.

  - every mutation: table, table:getAll, table:search, table:filter
  - update/delete of a known record: also table:getById:<id>

The table pattern already covers the others; they are listed so each pattern
can be observed and counted on its own, the way callers report them.
Because matching is containment, table:getById:7 also hits table:getById:70,
and a bare table name can also appear inside another table's base64 query
segment, so a write to jobs may drop a machines:getAll:<query> entry. Both
only cost an extra miss, never a stale read.
*/
func MutationPatterns(table string, m Mutation, id string) []string {
	if table == "" {
		return nil
	}
	patterns := []string{
		table,
		Namespace(table, OpGetAll),
		Namespace(table, OpSearch),
		Namespace(table, OpFilter),
	}
	if (m == Update || m == Delete) && id != "" {
		patterns = append(patterns, RecordNamespace(table, id))
	}
	return patterns
}
