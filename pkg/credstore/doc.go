// Package credstore persists the tenant credential document.
//
// Two implementations of tenants.Store live here. FileStore keeps the whole
// document in a single JSON file guarded by a process-wide RW mutex, with a
// backup copy taken before every rewrite and an atomic temp-then-rename
// replacement. PostgresStore keeps the document in a single jsonb row and
// uses a row lock for the read-modify-write cycle, which makes it safe when
// several gateway processes share one database.
//
// Both stores fail loud on corruption: a primary that cannot be parsed is
// recovered from the backup when possible, and when it cannot be the store
// returns an error wrapping ErrCorrupt rather than silently serving an
// empty document.
package credstore
