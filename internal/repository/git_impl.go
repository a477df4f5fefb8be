package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// gitRepository is the implementation of the GitRepository interface.

type gitRepository struct {
	repo *git.Repository
	root string
}

// NewGitRepository opens the repository containing dir.
func NewGitRepository(dir string) (GitRepository, error) {
	// linked worktrees keep refs in the common dir
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	return &gitRepository{repo: repo, root: wt.Filesystem.Root()}, nil
}

func (r *gitRepository) Root() string {
	return r.root
}

// CurrentBranch returns the short name of HEAD, or "HEAD" when detached.
func (r *gitRepository) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "HEAD", nil
	}
	return head.Name().Short(), nil
}

// HeadCommit returns the SHA of the current HEAD commit.
func (r *gitRepository) HeadCommit(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// LocalTags returns every local tag name, sorted.
func (r *gitRepository) LocalTags(_ context.Context) ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	var tags []string
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	sort.Strings(tags)
	return tags, nil
}

// TagExists checks if a tag exists.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// CreateTag creates an annotated tag on HEAD, signed with the configured user.
func (r *gitRepository) CreateTag(_ context.Context, tag, msg string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	_, err = r.repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{
		Message: msg,
		Tagger:  r.tagger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tag %s: %w", tag, err)
	}
	return nil
}

// DeleteTag removes a local tag. A missing tag is not an error.
func (r *gitRepository) DeleteTag(_ context.Context, tag string) error {
	err := r.repo.DeleteTag(tag)
	if err != nil && !errors.Is(err, git.ErrTagNotFound) {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

// tagger reads user.name/user.email from the merged git config.
func (r *gitRepository) tagger() *object.Signature {
	sig := &object.Signature{Name: "releasesync", Email: "releasesync@localhost", When: time.Now()}
	cfg, err := r.repo.ConfigScoped(gitconfig.SystemScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}
