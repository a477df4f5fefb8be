package usecase

import (
	"context"
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ProbeRemoteUseCase looks up one tag on the remote and the hosting platform.

type ProbeRemoteUseCase struct {
	WorkingCopy repository.WorkingCopyRepository
	Github      repository.GithubRepository
	Remote      string
	Workflow    string
}

// Execute queries the remote tag, release and workflow run concurrently.
func (uc *ProbeRemoteUseCase) Execute(ctx context.Context, tag string) (domain.RemoteState, error) {
	state := domain.RemoteState{Tag: tag}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := uc.WorkingCopy.RemoteTagExists(gctx, uc.Remote, tag)
		if err != nil {
			return fmt.Errorf("failed to check remote tag %s: %w", tag, err)
		}
		state.TagOnRemote = ok
		return nil
	})
	g.Go(func() error {
		rel, err := uc.Github.FindRelease(gctx, tag)
		if err != nil {
			return fmt.Errorf("failed to look up release %s: %w", tag, err)
		}
		state.Release = rel
		return nil
	})
	g.Go(func() error {
		run, err := uc.Github.LatestWorkflowRun(gctx, uc.Workflow, tag)
		if err != nil {
			return fmt.Errorf("failed to look up workflow runs for %s: %w", tag, err)
		}
		state.WorkflowRun = run
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RemoteState{Tag: tag}, err
	}
	return state, nil
}
