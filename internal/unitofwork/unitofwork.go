// Package unitofwork runs a sequence of writes against stores without shared
// transactions. Each step may register an undo; when a later step fails the
// undos of the completed steps run in reverse order.
package unitofwork

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Step is one write of a unit of work.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	// Undo compensates Do. Nil means nothing to roll back.
	Undo func(ctx context.Context) error
}

// CompensationError reports that rolling back a failed unit left state behind.
type CompensationError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensate %s: %v", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// Unit executes steps in order.
type Unit struct {
	logger *zap.Logger
	steps  []Step
}

// New starts an empty unit.
func New(logger *zap.Logger) *Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Unit{logger: logger}
}

// Add appends a step.
func (u *Unit) Add(step Step) *Unit {
	u.steps = append(u.steps, step)
	return u
}

// Run executes every step. On failure the completed steps are compensated in
// reverse order and the returned error joins the original failure with any
// compensation failure.
func (u *Unit) Run(ctx context.Context) error {
	done := make([]Step, 0, len(u.steps))
	for _, step := range u.steps {
		if err := step.Do(ctx); err != nil {
			failure := fmt.Errorf("%s: %w", step.Name, err)
			return errors.Join(failure, u.compensate(ctx, done))
		}
		done = append(done, step)
	}
	return nil
}

func (u *Unit) compensate(ctx context.Context, done []Step) error {
	// Undo must run even when the request context is already cancelled.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(ctx); err != nil {
			u.logger.Error("compensation failed",
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, &CompensationError{Step: step.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}
