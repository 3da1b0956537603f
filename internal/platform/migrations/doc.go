// Package migrations embeds the SQL schema for the PostgreSQL and SQLite
// backends and runs it with goose.
package migrations
