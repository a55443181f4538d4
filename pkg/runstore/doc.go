// Package runstore persists the traces of finished runs so they can be listed and
// inspected later. Only results are stored; agents keep no conversation state here.
//
// Two implementations are provided: FileStore writes one JSON file per run and
// SQLiteStore keeps runs in a SQLite database in WAL mode. Open picks one by driver name.
//
// History is bounded by a Retention policy: Prune applies it once and a Janitor
// applies it periodically.
package runstore
