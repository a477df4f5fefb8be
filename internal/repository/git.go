package repository

import "context"

// GitRepository covers the local reads and tag writes done through go-git.

type GitRepository interface {
	CurrentBranch(ctx context.Context) (string, error)
	HeadCommit(ctx context.Context) (string, error)
	LocalTags(ctx context.Context) ([]string, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag, msg string) error
	DeleteTag(ctx context.Context, tag string) error
	// Root is the working tree root; GitDir is the repository metadata directory.
	Root() string
}
