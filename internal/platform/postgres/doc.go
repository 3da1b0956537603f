// Package postgres provides the PostgreSQL backend: a versioned task slot
// row, an applied-artifact table used as the idempotency guard, and a
// LISTEN/NOTIFY watcher that reports writes made by other processes.
//
// Queries go through store.DBTX so the slot and guard work with either a
// *sql.DB or a *sql.Tx. The schema lives in the migrations package.
package postgres
