package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
)

// ErrNeedsOperator is returned in non-interactive mode when a conflict needs a human
var ErrNeedsOperator = errors.New("conflict needs a manual resolution")

// Operator picks one option of a plan. Returning ErrCancelled stops the run.
type Operator interface {
	Choose(ctx context.Context, plan *Plan) (string, error)
}

// AutoOperator selects the recommended option, or exit when nothing is recommended
type AutoOperator struct{}

// Choose implements Operator
func (AutoOperator) Choose(_ context.Context, plan *Plan) (string, error) {
	if option, ok := plan.Recommended(); ok {
		return option.Key, nil
	}
	return ChoiceExit, nil
}

// AutoResolver refuses to pick a side for a non-regenerable file
type AutoResolver struct{}

// ResolvePath implements conflict.Resolver
func (AutoResolver) ResolvePath(_ context.Context, kind domain.OperationKind, path string) (domain.Resolution, error) {
	return "", withRecovery(fmt.Errorf("%w: %s", ErrNeedsOperator, path),
		fmt.Sprintf("git status  # resolve %s, git add it, then: git %s --continue", path, kind.GitVerb()))
}
