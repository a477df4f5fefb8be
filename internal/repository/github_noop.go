package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
)

var ErrGithubTokenRequired = errors.New("github token is required for GitHub operations")

// githubNoopRepository stands in when no token is configured. Reads report
// nothing so a pass can still classify local state; writes fail.
type githubNoopRepository struct {
	owner string
	repo  string
}

func NewGithubNoopRepository(owner, repo string) GithubRepository {
	return &githubNoopRepository{owner: owner, repo: repo}
}

func (r *githubNoopRepository) CheckAuth(_ context.Context) error {
	return r.operationError("authenticate")
}

func (r *githubNoopRepository) FindRelease(_ context.Context, _ string) (*domain.ReleaseRecord, error) {
	return nil, nil
}

func (r *githubNoopRepository) CreateRelease(_ context.Context, _ *domain.Release) (*domain.ReleaseRecord, error) {
	return nil, r.operationError("create release")
}

func (r *githubNoopRepository) PublishRelease(_ context.Context, _ int64) (*domain.ReleaseRecord, error) {
	return nil, r.operationError("publish release")
}

func (r *githubNoopRepository) DeleteRelease(_ context.Context, _ int64) error {
	return r.operationError("delete release")
}

func (r *githubNoopRepository) LatestWorkflowRun(_ context.Context, _, _ string) (*domain.WorkflowRun, error) {
	return nil, nil
}

func (r *githubNoopRepository) DispatchWorkflow(_ context.Context, _, _ string) error {
	return r.operationError("dispatch workflow")
}

func (r *githubNoopRepository) operationError(action string) error {
	return fmt.Errorf("%w: unable to %s for %s/%s", ErrGithubTokenRequired, action, r.owner, r.repo)
}
