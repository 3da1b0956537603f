// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change would move a task
	// backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Validation errors. All of them wrap ErrValidation so callers can check
// the category with errors.Is.
var (
	// ErrEmptyDescription is returned when a task description is blank.
	ErrEmptyDescription = fmt.Errorf("%w: description cannot be empty", ErrValidation)

	// ErrEmptyCode is returned when an empty artifact is attached to a task.
	ErrEmptyCode = fmt.Errorf("%w: code cannot be empty", ErrValidation)

	// ErrInvalidStatus is returned when a status value is not recognized.
	ErrInvalidStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidPriority is returned when a priority value is not recognized.
	ErrInvalidPriority = fmt.Errorf("%w: invalid task priority", ErrValidation)

	// ErrInvalidType is returned when a task type is not recognized.
	ErrInvalidType = fmt.Errorf("%w: invalid task type", ErrValidation)
)
