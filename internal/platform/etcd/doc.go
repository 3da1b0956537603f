// Package etcd provides the etcd backend. The slot version is the key's
// mod revision, compare-and-swap is a Txn on that revision, markers are
// created only when absent, and the watcher uses the native Watch API.
package etcd
