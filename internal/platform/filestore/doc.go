// Package filestore keeps the task slot in a JSON file on local disk, with
// one marker file per applied artifact and an fsnotify watcher that reports
// writes made by other processes sharing the same file.
package filestore
