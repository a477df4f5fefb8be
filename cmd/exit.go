package cmd

import (
	"context"
	"errors"

	"github.com/compozy/releasesync/internal/conflict"
	"github.com/compozy/releasesync/internal/orchestrator"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 130
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, orchestrator.ErrCancelled),
		errors.Is(err, conflict.ErrAborted),
		errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return exitFailure
	}
}
