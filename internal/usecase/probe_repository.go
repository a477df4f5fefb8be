package usecase

import (
	"context"
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"go.uber.org/zap"
)

// ProbeRepositoryUseCase snapshots the local working copy.

type ProbeRepositoryUseCase struct {
	GitRepo     repository.GitRepository
	WorkingCopy repository.WorkingCopyRepository
	Manifest    repository.ManifestRepository
	Operations  repository.OperationStateRepository
	Patterns    domain.IgnoreSet
	Remote      string
	Branch      string
	// PackageName overrides the manifest name when set.
	PackageName string
	// Fetch refreshes the remote-tracking branch before counting unpushed commits.
	Fetch  bool
	Logger *zap.Logger
}

// Execute runs the use case.
func (uc *ProbeRepositoryUseCase) Execute(ctx context.Context) (domain.RepositoryState, error) {
	var state domain.RepositoryState
	manifest, err := uc.Manifest.Read()
	if err != nil {
		return state, fmt.Errorf("failed to read declared version: %w", err)
	}
	state.DeclaredVersion = manifest.Version
	state.PackageName = manifest.Name
	if uc.PackageName != "" {
		state.PackageName = uc.PackageName
	}
	if state.CurrentBranch, err = uc.GitRepo.CurrentBranch(ctx); err != nil {
		return state, fmt.Errorf("failed to get current branch: %w", err)
	}
	if state.LocalTags, err = uc.GitRepo.LocalTags(ctx); err != nil {
		return state, fmt.Errorf("failed to list local tags: %w", err)
	}
	if state.LastTag, err = uc.WorkingCopy.LastTag(ctx); err != nil {
		return state, fmt.Errorf("failed to get last tag: %w", err)
	}
	if uc.Fetch {
		res, err := uc.WorkingCopy.Fetch(ctx, uc.Remote)
		if err != nil || !res.Succeeded() {
			uc.logger().Warn("fetch failed; unpushed count may be stale",
				zap.String("remote", uc.Remote), zap.String("output", res.Output()), zap.Error(err))
		}
	}
	if state.UnpushedCommitCount, err = uc.WorkingCopy.CountAhead(ctx, uc.Remote, uc.branch(state)); err != nil {
		return state, fmt.Errorf("failed to count unpushed commits: %w", err)
	}
	entries, err := uc.WorkingCopy.Status(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to read working tree: %w", err)
	}
	for _, e := range entries {
		if !uc.Patterns.Match(e.Path) {
			state.DirtyPaths = append(state.DirtyPaths, e.Path)
		}
	}
	state.WorkingTreeDirty = len(state.DirtyPaths) > 0
	if state.OperationStuck, err = uc.Operations.Detect(); err != nil {
		return state, fmt.Errorf("failed to detect in-progress operation: %w", err)
	}
	return state, nil
}

func (uc *ProbeRepositoryUseCase) branch(state domain.RepositoryState) string {
	if uc.Branch != "" {
		return uc.Branch
	}
	return state.CurrentBranch
}

func (uc *ProbeRepositoryUseCase) logger() *zap.Logger {
	if uc.Logger == nil {
		return zap.NewNop()
	}
	return uc.Logger
}
