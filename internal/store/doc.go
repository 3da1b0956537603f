// Package store defines the persistence contracts shared by every storage
// backend: the versioned Slot that holds the serialized task collection,
// the common store errors, and transaction helpers for SQL backends.
package store
