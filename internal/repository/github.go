package repository

import (
	"context"

	"github.com/compozy/releasesync/internal/domain"
)

// GithubRepository defines the interface for GitHub API operations.

type GithubRepository interface {
	CheckAuth(ctx context.Context) error
	// FindRelease returns nil when tag has no release, drafts included.
	FindRelease(ctx context.Context, tag string) (*domain.ReleaseRecord, error)
	CreateRelease(ctx context.Context, release *domain.Release) (*domain.ReleaseRecord, error)
	PublishRelease(ctx context.Context, id int64) (*domain.ReleaseRecord, error)
	DeleteRelease(ctx context.Context, id int64) error
	// LatestWorkflowRun returns nil when no run of workflow mentions tag.
	LatestWorkflowRun(ctx context.Context, workflow, tag string) (*domain.WorkflowRun, error)
	DispatchWorkflow(ctx context.Context, workflow, tag string) error
}
