package task

import "errors"

var (
	// ErrSimulatedFailure is returned by SimulatedExecutor for the share of
	// executions that are meant to fail.
	ErrSimulatedFailure = errors.New("simulated execution failure")

	// ErrAnalysis is returned when no exported symbol can be found in an artifact.
	ErrAnalysis = errors.New("artifact analysis failed")

	// ErrWrite is returned when an artifact could not be written.
	ErrWrite = errors.New("artifact write failed")

	// ErrNotRequeueable is returned when re-queueing a task that has not failed.
	ErrNotRequeueable = errors.New("only failed tasks can be requeued")

	// ErrExecutionCancelled is the cancellation cause for executions
	// interrupted by Scheduler.Stop.
	ErrExecutionCancelled = errors.New("execution cancelled")
)
