package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/releasesync/internal/config"
	"github.com/compozy/releasesync/internal/domain"
	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

const (
	releasesPerPage = 100
	runsPerPage     = 30
)

// githubRepository is the implementation of the GithubRepository interface.
type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
}

// Note: GitHub token and owner/repo validation functions have been consolidated
// in the config package to avoid duplication and ensure consistency.

// NewGithubRepository creates a new GithubRepository with validation.
func NewGithubRepository(token, owner, repo string) (GithubRepository, error) {
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return newGithubRepositoryWithClient(github.NewClient(tc), owner, repo), nil
}

func newGithubRepositoryWithClient(client *github.Client, owner, repo string) *githubRepository {
	return &githubRepository{client: client, owner: owner, repo: repo}
}

// CheckAuth fails fast when the token is rejected.
func (r *githubRepository) CheckAuth(ctx context.Context) error {
	if _, _, err := r.client.Users.Get(ctx, ""); err != nil {
		return fmt.Errorf("github authentication failed: %w", err)
	}
	return nil
}

// FindRelease walks the release list; the by-tag endpoint hides drafts.
func (r *githubRepository) FindRelease(ctx context.Context, tag string) (*domain.ReleaseRecord, error) {
	opts := &github.ListOptions{PerPage: releasesPerPage}
	for {
		releases, resp, err := r.client.Repositories.ListReleases(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases: %w", err)
		}
		for _, rel := range releases {
			if rel.GetTagName() == tag {
				return toReleaseRecord(rel), nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *githubRepository) CreateRelease(ctx context.Context, release *domain.Release) (*domain.ReleaseRecord, error) {
	req := &github.RepositoryRelease{
		TagName:    github.Ptr(release.Version.Tag()),
		Name:       github.Ptr(release.Title),
		Body:       github.Ptr(release.Notes),
		Draft:      github.Ptr(release.Draft),
		Prerelease: github.Ptr(release.Version.Prerelease()),
	}
	if release.Target != "" {
		req.TargetCommitish = github.Ptr(release.Target)
	}
	rel, _, err := r.client.Repositories.CreateRelease(ctx, r.owner, r.repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", release.Version.Tag(), err)
	}
	return toReleaseRecord(rel), nil
}

func (r *githubRepository) PublishRelease(ctx context.Context, id int64) (*domain.ReleaseRecord, error) {
	rel, _, err := r.client.Repositories.EditRelease(ctx, r.owner, r.repo, id, &github.RepositoryRelease{
		Draft: github.Ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish release %d: %w", id, err)
	}
	return toReleaseRecord(rel), nil
}

func (r *githubRepository) DeleteRelease(ctx context.Context, id int64) error {
	if _, err := r.client.Repositories.DeleteRelease(ctx, r.owner, r.repo, id); err != nil {
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}

// LatestWorkflowRun finds the newest run whose title or ref mentions tag.
func (r *githubRepository) LatestWorkflowRun(ctx context.Context, workflow, tag string) (*domain.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: runsPerPage}}
	var (
		runs *github.WorkflowRuns
		err  error
	)
	if workflow != "" {
		runs, _, err = r.client.Actions.ListWorkflowRunsByFileName(ctx, r.owner, r.repo, workflow, opts)
	} else {
		runs, _, err = r.client.Actions.ListRepositoryWorkflowRuns(ctx, r.owner, r.repo, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	for _, run := range runs.WorkflowRuns {
		if strings.Contains(run.GetDisplayTitle(), tag) || run.GetHeadBranch() == tag {
			return toWorkflowRun(run), nil
		}
	}
	return nil, nil
}

func (r *githubRepository) DispatchWorkflow(ctx context.Context, workflow, tag string) error {
	if workflow == "" {
		return fmt.Errorf("no publish workflow configured")
	}
	_, err := r.client.Actions.CreateWorkflowDispatchEventByFileName(ctx, r.owner, r.repo, workflow,
		github.CreateWorkflowDispatchEventRequest{Ref: tag})
	if err != nil {
		return fmt.Errorf("failed to dispatch %s for %s: %w", workflow, tag, err)
	}
	return nil
}

func toReleaseRecord(rel *github.RepositoryRelease) *domain.ReleaseRecord {
	return &domain.ReleaseRecord{
		ID:      rel.GetID(),
		Tag:     rel.GetTagName(),
		IsDraft: rel.GetDraft(),
		Title:   rel.GetName(),
		Body:    rel.GetBody(),
		URL:     rel.GetHTMLURL(),
	}
}

func toWorkflowRun(run *github.WorkflowRun) *domain.WorkflowRun {
	status := domain.WorkflowRunning
	switch run.GetStatus() {
	case "queued", "requested", "waiting", "pending":
		status = domain.WorkflowQueued
	case "completed":
		status = domain.WorkflowCompleted
	}
	return &domain.WorkflowRun{
		ID:         run.GetID(),
		Status:     status,
		Conclusion: run.GetConclusion(),
		Title:      run.GetDisplayTitle(),
		URL:        run.GetHTMLURL(),
	}
}
