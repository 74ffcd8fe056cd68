// Package conductor is the Smart City governance primitive for saga
// orchestration: it runs an execution's steps in order and, on failure,
// unwinds everything that already succeeded by running their compensations
// in reverse, leaving the system in the state it was in before the saga
// began.
package conductor

import (
	"context"
	"fmt"

	core "github.com/cityos/runtime/internal/app/core/service"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// Step is one unit of saga work: Do performs it, Compensate undoes it.
// Compensate is only called for steps whose Do already succeeded.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	Retry      core.RetryPolicy
}

// Run executes steps in order. If a step's Do fails, Run compensates every
// already-completed step in reverse order and returns a wrapped
// ErrSagaCompensated; callers use runtimeerr to distinguish this from an
// outright unrecoverable failure. If a compensation itself fails, the
// returned error wraps the step failure but not ErrSagaCompensated.
func Run(ctx context.Context, tenantID, executionID string, steps []Step) error {
	completed := make([]Step, 0, len(steps))

	for _, step := range steps {
		policy := step.Retry
		if policy.Attempts == 0 {
			policy = core.DefaultRetryPolicy
		}

		err := core.Retry(ctx, policy, func() error { return step.Do(ctx) })
		if err != nil {
			compErr := compensate(ctx, completed)
			wrapped := runtimeerr.NewExecutionError(tenantID, executionID, step.Name, err)
			if compErr != nil {
				return fmt.Errorf("%w (compensation also failed: %v)", wrapped, compErr)
			}
			return fmt.Errorf("%w: %w", runtimeerr.ErrSagaCompensated, wrapped)
		}
		completed = append(completed, step)
	}
	return nil
}

func compensate(ctx context.Context, completed []Step) error {
	var firstErr error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("compensate %s: %w", step.Name, err)
		}
	}
	return firstErr
}
