// Package storage persists study blocks and owner contacts.
//
// The SQLite backend is the only driver. It opens a single-connection pool so
// write transactions serialize, which is what makes the overlap re-check
// inside CreateBlock/UpdateBlock a real correctness backstop rather than a
// best-effort read.
package storage
