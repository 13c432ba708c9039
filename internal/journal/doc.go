// Package journal persists committed exchange events.
//
// The Writer is registered as an exchange publisher. Publish only appends to
// an in-memory Queue; a background loop drains the queue in batches into a
// Sink (PostgreSQL or an embedded badger database). Sinks skip events whose
// id is already stored, so a batch retried after a partial failure does not
// produce duplicates.
package journal
