// Package ciutil provides utilities for CI and environment-specific functionality.
//
// It centralizes detection of CI environments and access to the environment
// variables that point integration tests at real PostgreSQL, Redis and etcd
// instances, including masking of credentials before they are logged.
package ciutil
