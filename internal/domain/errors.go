package domain

import "errors"

var (
	// ErrOperationStuck is returned by classification while a rebase, merge or cherry-pick is in progress.
	ErrOperationStuck = errors.New("a git operation is in progress")
	// ErrCancelled is returned when the operator cancels at a decision point.
	ErrCancelled = errors.New("cancelled by operator")
)
