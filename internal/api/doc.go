// Package api exposes the task engine over HTTP. It translates requests
// into Service operations, maps engine errors onto status codes and streams
// collection snapshots and notices to websocket clients.
package api
