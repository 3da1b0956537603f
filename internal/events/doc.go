// Package events provides the two fan-out channels of the engine: the Bus,
// which delivers a fresh snapshot of the task collection after every
// mutation, and Notifiers, which receive user-visible notices about task
// execution and artifact application.
package events
