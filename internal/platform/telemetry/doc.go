// Package telemetry configures tracing and exposes Prometheus metrics for
// task notices and the task collection.
package telemetry
