// Package redis provides the Redis backend. The slot is a hash updated by a
// compare-and-swap Lua script that also publishes a change message, the
// guard uses SETNX markers, and the watcher subscribes to the change channel.
package redis
