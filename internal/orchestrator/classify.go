package orchestrator

import (
	"fmt"

	"github.com/compozy/releasesync/internal/domain"
)

// Classify maps one snapshot to exactly one scenario, first match wins. It
// returns domain.ErrOperationStuck while a rebase, merge or cherry-pick is in
// progress; that must be resolved before anything else is decided.
func Classify(snap domain.Snapshot) (domain.Scenario, error) {
	repo, remote := snap.Repo, snap.Remote
	if repo.OperationStuck != "" && repo.OperationStuck != domain.OperationNone {
		return nil, fmt.Errorf("%w: %s", domain.ErrOperationStuck, repo.OperationStuck.GitVerb())
	}
	declared, err := domain.NewVersion(repo.DeclaredVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid declared version %q: %w", repo.DeclaredVersion, err)
	}
	last, err := domain.NewVersion(repo.LastPublishedVersion())
	if err != nil {
		last = domain.MustVersion("0.0.0")
	}
	tag := declared.Tag()
	published := !snap.Registry.Checked || snap.Registry.VersionPublished

	switch {
	case declared.Equal(last) && repo.UnpushedCommitCount > 0 && remote.TagOnRemote:
		return domain.OrphanedTag{Tag: tag, Unpushed: repo.UnpushedCommitCount, Release: remote.Release}, nil
	case declared.GreaterThan(last) && !repo.HasLocalTag(tag):
		return domain.ReleaseInProgress{
			Version:     declared.String(),
			Tag:         tag,
			PreviousTag: repo.LastTag,
			LastVersion: last.String(),
			DirtyPaths:  repo.DirtyPaths,
		}, nil
	case repo.HasLocalTag(tag) && !remote.TagOnRemote:
		return domain.UnpushedTag{Tag: tag, Unpushed: repo.UnpushedCommitCount}, nil
	case remote.TagOnRemote && (repo.WorkingTreeDirty || repo.UnpushedCommitCount > 0):
		return domain.IncompleteRelease{
			Version:    declared.String(),
			Tag:        tag,
			DirtyPaths: repo.DirtyPaths,
			Unpushed:   repo.UnpushedCommitCount,
			Release:    remote.Release,
			OnRegistry: snap.Registry.Checked && snap.Registry.VersionPublished,
		}, nil
	case remote.Release != nil && remote.Release.IsDraft:
		return domain.DraftReleasePending{Tag: tag, Release: *remote.Release}, nil
	case remote.Release != nil && !published && !remote.WorkflowRun.Active():
		return domain.FailedPublish{Version: declared.String(), Tag: tag, Release: *remote.Release, LastRun: remote.WorkflowRun}, nil
	case remote.TagOnRemote && remote.Release == nil:
		return domain.NoReleaseForTag{Version: declared.String(), Tag: tag}, nil
	}
	clean := domain.CleanSlate{Version: declared.String()}
	if remote.WorkflowRun.Active() {
		clean.PublishRun = remote.WorkflowRun
	}
	return clean, nil
}
