package knowledge

import (
	"context"
	"log/slog"
)

// saga records the steps of a multi-backend write that have already
// committed, each with a compensating undo action. On failure the undo
// actions run in reverse commit order.
//
// Compensation is best-effort: an undo that itself fails is logged as a
// consistency violation and left for an operator, never retried
// automatically. A visible inconsistency beats masked data loss.
type saga struct {
	steps []sagaStep
}

type sagaStep struct {
	name string
	undo func(context.Context) error
}

// committed registers a completed step and the action that reverses it.
func (s *saga) committed(name string, undo func(context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, undo: undo})
}

// rollback runs all undo actions in reverse order.
func (s *saga) rollback(ctx context.Context, logger *slog.Logger) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Warn("consistency violation: compensating action failed, manual cleanup required",
				"step", step.name,
				"error", err)
		}
	}
	s.steps = nil
}
