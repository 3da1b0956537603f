package task

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/generation"
)

// Result is the outcome of a successful execution.
type Result struct {
	// Code is the generated artifact, empty when none was produced.
	Code string
}

// Executor turns an in-progress task into an outcome. A nil error completes
// the task; any error fails it with the error text as the reason.
type Executor interface {
	Execute(ctx context.Context, task domain.Task) (Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task domain.Task) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task domain.Task) (Result, error) {
	return f(ctx, task)
}

// SimulatedConfig configures a SimulatedExecutor.
type SimulatedConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	SuccessRate float64
}

// DefaultSimulatedConfig returns the stock simulation: 5-15s, 80% success.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		MinDelay:    5 * time.Second,
		MaxDelay:    15 * time.Second,
		SuccessRate: 0.8,
	}
}

// SimulatedExecutor stands in for real work: it waits a random delay and
// then succeeds or fails at random. Successful runs ask the optional
// generator for an artifact.
type SimulatedExecutor struct {
	config    SimulatedConfig
	generator generation.CodeGenerator
	// Rand returns a value in [0, 1). Replace it for deterministic tests.
	Rand func() float64
	// After waits for a duration; replace it to avoid real sleeps in tests.
	After func(time.Duration) <-chan time.Time
}

// NewSimulatedExecutor creates a SimulatedExecutor. generator may be nil.
func NewSimulatedExecutor(config SimulatedConfig, generator generation.CodeGenerator) *SimulatedExecutor {
	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}
	return &SimulatedExecutor{
		config:    config,
		generator: generator,
		Rand:      rand.Float64,
		After:     time.After,
	}
}

// Execute implements Executor.
func (e *SimulatedExecutor) Execute(ctx context.Context, task domain.Task) (Result, error) {
	delay := e.config.MinDelay + time.Duration(e.Rand()*float64(e.config.MaxDelay-e.config.MinDelay))

	select {
	case <-e.After(delay):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if e.Rand() >= e.config.SuccessRate {
		return Result{}, ErrSimulatedFailure
	}

	if e.generator == nil {
		return Result{}, nil
	}

	code, err := e.generator.GenerateCode(ctx, generation.RequestFor(task))
	if err != nil {
		return Result{}, fmt.Errorf("artifact generation failed: %w", err)
	}
	return Result{Code: code}, nil
}

// GeneratingExecutor completes a task by generating its artifact.
type GeneratingExecutor struct {
	generator generation.CodeGenerator
}

// NewGeneratingExecutor creates a GeneratingExecutor.
func NewGeneratingExecutor(generator generation.CodeGenerator) *GeneratingExecutor {
	return &GeneratingExecutor{generator: generator}
}

// Execute implements Executor.
func (e *GeneratingExecutor) Execute(ctx context.Context, task domain.Task) (Result, error) {
	code, err := e.generator.GenerateCode(ctx, generation.RequestFor(task))
	if err != nil {
		return Result{}, err
	}
	return Result{Code: code}, nil
}
