// Package sqlite provides a single-file SQL backend built on the pure-Go
// modernc.org/sqlite driver. It shares the slot and guard schema with the
// PostgreSQL backend and detects writes from other processes by polling
// the slot version.
package sqlite
