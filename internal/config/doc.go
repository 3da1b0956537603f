// Package config handles configuration loading, parsing, and validation
// from a YAML file and AUTOBUILD_* environment variables. It provides
// type-safe access to the settings of the scheduler, the storage backends
// and the external collaborators while keeping configuration details
// separate from business logic.
package config
