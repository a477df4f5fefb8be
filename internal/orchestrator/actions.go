package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/guard"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/compozy/releasesync/internal/usecase"
)

// Every scenario script is built only from the steps in this file.

func (e *ReconcileEngine) deleteLocalTag(tag string) Step {
	return Step{
		Name:     "delete local tag",
		Action:   domain.ActionDeleteLocalTag,
		Target:   "tag " + tag,
		Recovery: "git tag -d " + tag,
		Execute: func(ctx context.Context) (string, error) {
			if err := e.deps.GitRepo.DeleteTag(ctx, tag); err != nil {
				return "", fmt.Errorf("failed to delete local tag %s: %w", tag, err)
			}
			return "tag " + tag, nil
		},
	}
}

func (e *ReconcileEngine) deleteRemoteTag(tag string) Step {
	target := fmt.Sprintf("refs/tags/%s on %s", tag, e.cfg.Remote)
	return Step{
		Name:     "delete remote tag",
		Action:   domain.ActionDeleteRemoteTag,
		Target:   target,
		Recovery: fmt.Sprintf("git push %s :refs/tags/%s", e.cfg.Remote, tag),
		Execute: func(ctx context.Context) (string, error) {
			res, err := e.deps.WorkingCopy.DeleteRemoteTag(ctx, e.cfg.Remote, tag)
			if err != nil {
				return "", err
			}
			if !res.Succeeded() && !strings.Contains(res.Output(), "remote ref does not exist") {
				return "", commandError(res)
			}
			return target, nil
		},
	}
}

func (e *ReconcileEngine) deleteRelease(release *domain.ReleaseRecord) Step {
	target := fmt.Sprintf("release %d (%s)", release.ID, release.Tag)
	return Step{
		Name:     "delete release",
		Action:   domain.ActionDeleteRelease,
		Target:   target,
		Recovery: "gh release delete " + release.Tag,
		Execute: func(ctx context.Context) (string, error) {
			if err := e.deps.Github.DeleteRelease(ctx, release.ID); err != nil {
				return "", fmt.Errorf("failed to delete release %d: %w", release.ID, err)
			}
			return target, nil
		},
	}
}

// pushCommits pushes the branch, rebasing once onto the remote when the push is rejected
func (e *ReconcileEngine) pushCommits(count int, branch string) Step {
	remote := e.cfg.Remote
	target := fmt.Sprintf("%s/%s", remote, branch)
	if count > 0 {
		target = fmt.Sprintf("%d commit(s) to %s/%s", count, remote, branch)
	}
	return Step{
		Name:     "push commits",
		Action:   domain.ActionPushCommits,
		Target:   target,
		Recovery: fmt.Sprintf("git pull --rebase %s %s && git push %s %s", remote, branch, remote, branch),
		Execute: func(ctx context.Context) (string, error) {
			if err := ValidateBranchName(branch); err != nil {
				return "", err
			}
			push := func(ctx context.Context) (*domain.CommandResult, error) {
				return e.deps.WorkingCopy.PushBranch(ctx, remote, branch)
			}
			res, err := e.guarded(ctx, "push "+branch, push)
			if err != nil {
				return "", err
			}
			if res.Command.Succeeded() {
				return target, nil
			}
			if !rejected(res.Command) {
				return "", guardedError(res)
			}
			e.printer.Warn("push to %s/%s was rejected; rebasing onto the remote", remote, branch)
			pull, err := e.guarded(ctx, "pull --rebase "+branch, func(ctx context.Context) (*domain.CommandResult, error) {
				return e.deps.WorkingCopy.PullRebase(ctx, remote, branch)
			})
			if err != nil {
				return "", err
			}
			switch pull.Command.Class() {
			case domain.ExitSuccess:
			case domain.ExitConflict:
				if err := e.ResolveConflicts(ctx); err != nil {
					return "", err
				}
			default:
				return "", guardedError(pull)
			}
			res, err = e.guarded(ctx, "push "+branch, push)
			if err != nil {
				return "", err
			}
			if !res.Command.Succeeded() {
				return "", guardedError(res)
			}
			return target, nil
		},
	}
}

// createTag refuses to run while the old copy of the tag or its release is still public
func (e *ReconcileEngine) createTag(tag string) Step {
	return Step{
		Name:     "create tag",
		Action:   domain.ActionCreateTag,
		Target:   "tag " + tag,
		Recovery: fmt.Sprintf("git tag -a %s -m %q", tag, "Release "+tag),
		Execute: func(ctx context.Context) (string, error) {
			if err := ValidateTag(tag); err != nil {
				return "", err
			}
			onRemote, err := e.deps.WorkingCopy.RemoteTagExists(ctx, e.cfg.Remote, tag)
			if err != nil {
				return "", err
			}
			if onRemote {
				return "", withRecovery(fmt.Errorf("%w: %s is still on %s", ErrUnsafeTag, tag, e.cfg.Remote),
					fmt.Sprintf("git push %s :refs/tags/%s", e.cfg.Remote, tag))
			}
			release, err := e.deps.Github.FindRelease(ctx, tag)
			if err != nil {
				return "", err
			}
			if release != nil {
				return "", withRecovery(fmt.Errorf("%w: release %d still points at %s", ErrUnsafeTag, release.ID, tag),
					"gh release delete "+tag)
			}
			if err := e.deps.GitRepo.CreateTag(ctx, tag, "Release "+tag); err != nil {
				return "", fmt.Errorf("failed to create tag %s: %w", tag, err)
			}
			head, err := e.deps.GitRepo.HeadCommit(ctx)
			if err != nil || len(head) < 7 {
				return "tag " + tag, nil
			}
			return fmt.Sprintf("tag %s at %s", tag, head[:7]), nil
		},
	}
}

// pushTag re-checks the local tag, since the script may have been planned before it was deleted
func (e *ReconcileEngine) pushTag(tag string) Step {
	target := fmt.Sprintf("refs/tags/%s on %s", tag, e.cfg.Remote)
	return Step{
		Name:     "push tag",
		Action:   domain.ActionPushTag,
		Target:   target,
		Recovery: fmt.Sprintf("git push %s refs/tags/%s", e.cfg.Remote, tag),
		Execute: func(ctx context.Context) (string, error) {
			exists, err := e.deps.GitRepo.TagExists(ctx, tag)
			if err != nil {
				return "", err
			}
			if !exists {
				return "", withRecovery(fmt.Errorf("tag %s no longer exists locally", tag),
					fmt.Sprintf("git tag -a %s -m %q && git push %s refs/tags/%s", tag, "Release "+tag, e.cfg.Remote, tag))
			}
			res, err := e.guarded(ctx, "push tag "+tag, func(ctx context.Context) (*domain.CommandResult, error) {
				return e.deps.WorkingCopy.PushTag(ctx, e.cfg.Remote, tag)
			})
			if err != nil {
				return "", err
			}
			if !res.Command.Succeeded() {
				return "", guardedError(res)
			}
			return target, nil
		},
	}
}

// createRelease drafts notes from the changelog section, falling back to commit subjects
func (e *ReconcileEngine) createRelease(version *domain.Version, pkg, previousTag, branch string, draft bool) Step {
	kind := "release"
	if draft {
		kind = "draft release"
	}
	return Step{
		Name:      "create " + kind,
		Action:    domain.ActionCreateRelease,
		Target:    kind + " " + version.Tag(),
		Recovery:  fmt.Sprintf("gh release create %s --notes-file %s", version.Tag(), e.deps.Changelog.Path()),
		Retryable: true,
		Execute: func(ctx context.Context) (string, error) {
			section, err := e.deps.Changelog.Section(version.String())
			if err != nil {
				return "", fmt.Errorf("failed to read changelog: %w", err)
			}
			if strings.TrimSpace(section) == "" {
				drafter := &usecase.DraftNotesUseCase{WorkingCopy: e.deps.WorkingCopy}
				if section, err = drafter.Execute(ctx, previousTag); err != nil {
					return "", err
				}
			}
			release := &domain.Release{Version: version, Package: pkg, Draft: draft, Target: branch}
			if err := e.notes.Execute(ctx, release, section); err != nil {
				return "", fmt.Errorf("failed to prepare release notes: %w", err)
			}
			record, err := e.deps.Github.CreateRelease(ctx, release)
			if err != nil {
				return "", fmt.Errorf("failed to create release %s: %w", version.Tag(), err)
			}
			return releaseIdentifier(record), nil
		},
	}
}

func (e *ReconcileEngine) publishRelease(release domain.ReleaseRecord) Step {
	return Step{
		Name:      "publish release",
		Action:    domain.ActionPublishRelease,
		Target:    fmt.Sprintf("release %d (%s)", release.ID, release.Tag),
		Recovery:  fmt.Sprintf("gh release edit %s --draft=false", release.Tag),
		Retryable: true,
		Execute: func(ctx context.Context) (string, error) {
			record, err := e.deps.Github.PublishRelease(ctx, release.ID)
			if err != nil {
				return "", fmt.Errorf("failed to publish release %d: %w", release.ID, err)
			}
			return releaseIdentifier(record), nil
		},
	}
}

func (e *ReconcileEngine) triggerPublish(tag string) Step {
	target := fmt.Sprintf("workflow %s@%s", e.cfg.Workflow, tag)
	return Step{
		Name:      "trigger publish",
		Action:    domain.ActionTriggerPublish,
		Target:    target,
		Recovery:  fmt.Sprintf("gh workflow run %s --ref %s", e.cfg.Workflow, tag),
		Retryable: true,
		Execute: func(ctx context.Context) (string, error) {
			if e.cfg.Workflow == "" {
				return "", errors.New("no publish workflow configured")
			}
			if err := e.deps.Github.DispatchWorkflow(ctx, e.cfg.Workflow, tag); err != nil {
				return "", fmt.Errorf("failed to dispatch %s: %w", e.cfg.Workflow, err)
			}
			return target, nil
		},
	}
}

// writeChangelog keeps an existing entry for version unless overwrite is set
func (e *ReconcileEngine) writeChangelog(version, previousTag string, overwrite bool) Step {
	path := e.deps.Changelog.Path()
	return Step{
		Name:     "write changelog entry",
		Action:   domain.ActionWriteChangelog,
		Target:   fmt.Sprintf("%s [%s]", path, version),
		Recovery: "$EDITOR " + path,
		Execute: func(ctx context.Context) (string, error) {
			if !overwrite {
				section, err := e.deps.Changelog.Section(version)
				if err != nil {
					return "", fmt.Errorf("failed to read changelog: %w", err)
				}
				if strings.TrimSpace(section) != "" {
					return fmt.Sprintf("%s [%s] (existing entry kept)", path, version), nil
				}
			}
			drafter := &usecase.DraftNotesUseCase{WorkingCopy: e.deps.WorkingCopy}
			body, err := drafter.Execute(ctx, previousTag)
			if err != nil {
				return "", err
			}
			if err := e.deps.Changelog.WriteEntry(version, body, e.deps.Now()); err != nil {
				return "", fmt.Errorf("failed to write changelog entry: %w", err)
			}
			return fmt.Sprintf("%s [%s]", path, version), nil
		},
	}
}

// commitRelease commits the manifest, the changelog and any extra paths
func (e *ReconcileEngine) commitRelease(tag string, extra []string) Step {
	paths := []string{e.repoPath(e.deps.Manifest.Path()), e.repoPath(e.deps.Changelog.Path())}
	for _, p := range extra {
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	message := usecase.ReleaseCommitPrefix + tag
	return Step{
		Name:     "commit release",
		Action:   domain.ActionCommitRelease,
		Target:   fmt.Sprintf("%q (%s)", message, strings.Join(paths, ", ")),
		Recovery: fmt.Sprintf("git add %s && git commit -m %q", strings.Join(paths, " "), message),
		Execute: func(ctx context.Context) (string, error) {
			res, err := e.deps.WorkingCopy.Commit(ctx, message, paths...)
			if err != nil {
				return "", err
			}
			if repository.NothingToCommit(res) {
				return "nothing to commit", nil
			}
			if !res.Succeeded() {
				return "", commandError(res)
			}
			head, err := e.deps.GitRepo.HeadCommit(ctx)
			if err != nil || len(head) < 7 {
				return "commit " + message, nil
			}
			return "commit " + head[:7], nil
		},
	}
}

func (e *ReconcileEngine) bumpVersion(current, next *domain.Version) Step {
	path := e.deps.Manifest.Path()
	return Step{
		Name:     "bump version",
		Action:   domain.ActionBumpVersion,
		Target:   fmt.Sprintf("%s %s -> %s", path, current, next),
		Recovery: fmt.Sprintf("set version = %q in %s", next.String(), path),
		Execute: func(_ context.Context) (string, error) {
			if err := e.deps.Manifest.WriteVersion(next.String()); err != nil {
				return "", fmt.Errorf("failed to write version %s: %w", next, err)
			}
			return fmt.Sprintf("%s version %s", path, next), nil
		},
	}
}

func (e *ReconcileEngine) revertManifest(version string) Step {
	path := e.deps.Manifest.Path()
	return Step{
		Name:     "revert manifest",
		Action:   domain.ActionRevertManifest,
		Target:   fmt.Sprintf("%s version %s", path, version),
		Recovery: fmt.Sprintf("set version = %q in %s", version, path),
		Execute: func(_ context.Context) (string, error) {
			if err := e.deps.Manifest.WriteVersion(version); err != nil {
				return "", fmt.Errorf("failed to revert version to %s: %w", version, err)
			}
			return fmt.Sprintf("%s version %s", path, version), nil
		},
	}
}

// guarded runs op inside the stash envelope and journals stashes it could not restore
func (e *ReconcileEngine) guarded(ctx context.Context, description string, op guard.Operation) (*guard.Result, error) {
	res, err := e.deps.Guard.Guarded(ctx, op, e.cfg.Patterns, description)
	if res != nil && res.LeftStashed() {
		e.recordKept(res)
	}
	if err != nil {
		return res, err
	}
	if res == nil || res.Command == nil {
		return res, fmt.Errorf("%s produced no result", description)
	}
	return res, nil
}

func rejected(res *domain.CommandResult) bool {
	out := res.Output()
	return res.Class() == domain.ExitFailed &&
		(strings.Contains(out, "[rejected]") || strings.Contains(out, "non-fast-forward") ||
			strings.Contains(out, "fetch first"))
}

func commandError(res *domain.CommandResult) error {
	return fmt.Errorf("%s exited %d: %s", res.CommandLine(), res.ExitCode, res.Output())
}

// guardedError points the operator at a stash the guard kept, when there is one
func guardedError(res *guard.Result) error {
	err := commandError(res.Command)
	if res.LeftStashed() {
		return withRecovery(err, res.Recovery)
	}
	return err
}

func releaseIdentifier(record *domain.ReleaseRecord) string {
	if record == nil {
		return "release"
	}
	if record.URL != "" {
		return fmt.Sprintf("release %d (%s)", record.ID, record.URL)
	}
	return fmt.Sprintf("release %d", record.ID)
}
