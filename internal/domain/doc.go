// Package domain contains the core task entity, its value objects, and the
// rules that govern its lifecycle. It is independent of any storage,
// scheduling or delivery mechanism.
package domain
