package service

import (
	"context"

	"github.com/compozy/releasesync/internal/domain"
)

// GitCLIService runs the git binary. A non-zero exit status is reported in
// the result; the error is reserved for failures to run git at all.
type GitCLIService interface {
	// Query runs a short read-only command under the query timeout.
	Query(ctx context.Context, args ...string) (*domain.CommandResult, error)
	// Run runs a command under the mutation timeout, if any.
	Run(ctx context.Context, args ...string) (*domain.CommandResult, error)
	// Dir is the working directory commands run in.
	Dir() string
}
