package orchestrator

import (
	"errors"
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
)

var (
	// ErrCancelled is returned when the operator cancels at a decision point.
	ErrCancelled = domain.ErrCancelled
	// ErrNoProgress is returned when a mutating dispatch left every probed axis unchanged.
	ErrNoProgress = errors.New("reconcile made no progress")
	// ErrPassLimit is returned when the passes run out before the state settles.
	ErrPassLimit = errors.New("reconcile did not settle")
	// ErrAuth is returned when the hosting platform rejects or lacks credentials.
	ErrAuth = errors.New("hosting platform authentication failed")
	// ErrUnsafeTag is returned when a tag would be recreated while its old copy is still public.
	ErrUnsafeTag = errors.New("tag or release still exists on the remote")
)

// ActionError reports a failed script step and how to finish it by hand.
type ActionError struct {
	Step     string
	Action   domain.ActionType
	Target   string
	Recovery string
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("step %q (%s %s) failed: %v", e.Step, e.Action, e.Target, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Recovery returns the manual command attached to err, if any
func Recovery(err error) string {
	var action *ActionError
	if errors.As(err, &action) && action.Recovery != "" {
		return action.Recovery
	}
	var r *recoverable
	if errors.As(err, &r) {
		return r.command
	}
	return ""
}
