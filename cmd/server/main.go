// Package main implements the autobuild server and its command-line
// client. The server runs the task scheduler, applies generated artifacts
// and serves the HTTP API; the other commands operate directly on the
// configured storage.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
