// Package testutils holds helpers shared by tests across packages: the
// behavioural contracts every Slot and Guard backend must satisfy, and
// lookup of the environment that points integration tests at real
// services.
package testutils
