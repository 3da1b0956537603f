// Package task implements the task engine: the TaskStore that owns the
// collection, the Scheduler that promotes and executes pending tasks, the
// Bridge that applies completed artifacts exactly once, the watcher that
// follows changes made by other processes, and the Service facade over all
// of them.
package task
