package repository

import (
	"context"

	"github.com/compozy/releasesync/internal/domain"
)

// WorkingCopyRepository wraps the git operations go-git cannot do faithfully:
// stash, rebase, merge, cherry-pick and plain-transport pushes. Mutating methods
// return the raw result so callers can classify the exit status.

type WorkingCopyRepository interface {
	Status(ctx context.Context) ([]domain.FileStatus, error)
	LastTag(ctx context.Context) (string, error)
	Fetch(ctx context.Context, remote string) (*domain.CommandResult, error)
	RemoteTagExists(ctx context.Context, remote, tag string) (bool, error)
	CountAhead(ctx context.Context, remote, branch string) (int, error)
	CommitSubjects(ctx context.Context, since string) ([]string, error)
	ConflictedFiles(ctx context.Context) ([]string, error)
	IsBinary(ctx context.Context, path string) (bool, error)
	GitDir(ctx context.Context) (string, error)

	PushBranch(ctx context.Context, remote, branch string) (*domain.CommandResult, error)
	PushTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error)
	DeleteRemoteTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error)
	PullRebase(ctx context.Context, remote, branch string) (*domain.CommandResult, error)
	Commit(ctx context.Context, message string, paths ...string) (*domain.CommandResult, error)
	Checkout(ctx context.Context, side domain.Resolution, path string) (*domain.CommandResult, error)
	Add(ctx context.Context, paths ...string) (*domain.CommandResult, error)

	Continue(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)
	Skip(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)
	Abort(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)

	StashPush(ctx context.Context, message string, includeUntracked bool, pathspecs []string) (*domain.CommandResult, error)
	StashList(ctx context.Context) ([]domain.StashEntry, error)
	StashPop(ctx context.Context, ref string) (*domain.CommandResult, error)
}
