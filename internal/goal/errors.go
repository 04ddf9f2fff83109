package goal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a mutation is requested that the
	// goal's current state does not allow, e.g. confirming a checkpoint on a
	// completed goal. The UI is expected to have disabled the action, so
	// hitting this usually means a client/state desync.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrDataIntegrity is returned when a goal's stored shape contradicts
	// itself, e.g. the deadline resolver produces a different checkpoint
	// count than the goal carries.
	ErrDataIntegrity = errors.New("goal data integrity")

	// ErrNoDailyTask is returned when a daily-task operation is called on a
	// goal that has no active task.
	ErrNoDailyTask = fmt.Errorf("%w: no active daily task", ErrInvalidTransition)

	// ErrSkipTooEarly is returned when a skip is attempted while more than
	// five minutes remain in the task window.
	ErrSkipTooEarly = fmt.Errorf("%w: task can only be skipped in the last five minutes", ErrInvalidTransition)
)
