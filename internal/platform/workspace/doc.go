// Package workspace applies generated artifacts to the target application.
// Client delegates file writes and route registration to a workspace
// service over HTTP; LogWriter only records what would have been applied.
package workspace
