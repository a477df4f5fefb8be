package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/service"
)

// ErrSkipUnsupported is returned when skip is requested for a merge.
var ErrSkipUnsupported = errors.New("merge has no skip; resolve or abort")

// binaryProbeSize mirrors git's own NUL-byte heuristic window.
const binaryProbeSize = 8000

type workingCopyRepository struct {
	git service.GitCLIService
}

// NewWorkingCopyRepository creates a WorkingCopyRepository on top of the git binary.
func NewWorkingCopyRepository(git service.GitCLIService) WorkingCopyRepository {
	return &workingCopyRepository{git: git}
}

// NothingToCommit reports a commit that failed only because the index matched HEAD.
func NothingToCommit(r *domain.CommandResult) bool {
	out := r.Output()
	return r != nil && r.ExitCode == 1 &&
		(strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit"))
}

func (r *workingCopyRepository) query(ctx context.Context, args ...string) (*domain.CommandResult, error) {
	res, err := r.git.Query(ctx, args...)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() {
		return res, fmt.Errorf("%s: exit %d: %s", res.CommandLine(), res.ExitCode, res.Output())
	}
	return res, nil
}

// Status parses `git status --porcelain=v1 -z`.
func (r *workingCopyRepository) Status(ctx context.Context) ([]domain.FileStatus, error) {
	res, err := r.query(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	return parsePorcelain(res.Stdout), nil
}

func parsePorcelain(out string) []domain.FileStatus {
	var entries []domain.FileStatus
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if len(f) < 4 {
			continue
		}
		entry := domain.FileStatus{Index: f[0], Worktree: f[1], Path: f[3:]}
		entries = append(entries, entry)
		// renames and copies carry the source path as the next field
		if entry.Index == 'R' || entry.Index == 'C' {
			i++
		}
	}
	return entries
}

// LastTag returns the nearest reachable tag, or "" when there is none.
func (r *workingCopyRepository) LastTag(ctx context.Context) (string, error) {
	res, err := r.git.Query(ctx, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", err
	}
	if res.ExitCode == 128 {
		return "", nil
	}
	if !res.Succeeded() {
		return "", fmt.Errorf("failed to describe tags: %s", res.Output())
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *workingCopyRepository) Fetch(ctx context.Context, remote string) (*domain.CommandResult, error) {
	return r.git.Query(ctx, "fetch", "--no-tags", "--quiet", remote)
}

func (r *workingCopyRepository) RemoteTagExists(ctx context.Context, remote, tag string) (bool, error) {
	res, err := r.query(ctx, "ls-remote", "--tags", remote, "refs/tags/"+tag)
	if err != nil {
		return false, fmt.Errorf("failed to list remote tags: %w", err)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// CountAhead counts commits on HEAD missing from remote/branch. A branch that
// was never pushed counts every commit.
func (r *workingCopyRepository) CountAhead(ctx context.Context, remote, branch string) (int, error) {
	res, err := r.git.Query(ctx, "rev-list", "--count", remote+"/"+branch+"..HEAD")
	if err != nil {
		return 0, err
	}
	if !res.Succeeded() {
		res, err = r.query(ctx, "rev-list", "--count", "HEAD")
		if err != nil {
			return 0, fmt.Errorf("failed to count commits: %w", err)
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("failed to parse commit count %q: %w", res.Stdout, err)
	}
	return n, nil
}

// CommitSubjects lists subjects of commits after since, newest first.
func (r *workingCopyRepository) CommitSubjects(ctx context.Context, since string) ([]string, error) {
	args := []string{"log", "--pretty=format:%s", "--no-merges"}
	if since != "" {
		args = append(args, since+"..HEAD")
	}
	res, err := r.query(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return splitLines(res.Stdout), nil
}

func (r *workingCopyRepository) ConflictedFiles(ctx context.Context) ([]string, error) {
	res, err := r.query(ctx, "diff", "--name-only", "--diff-filter=U", "-z")
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	var files []string
	for _, f := range strings.Split(res.Stdout, "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// IsBinary checks the incoming stage of a conflicted path, then ours, for NUL bytes.
func (r *workingCopyRepository) IsBinary(ctx context.Context, path string) (bool, error) {
	for _, stage := range []string{":3:", ":2:"} {
		res, err := r.git.Query(ctx, "cat-file", "-p", stage+path)
		if err != nil {
			return false, err
		}
		if !res.Succeeded() {
			continue
		}
		probe := res.Stdout
		if len(probe) > binaryProbeSize {
			probe = probe[:binaryProbeSize]
		}
		return strings.IndexByte(probe, 0) >= 0, nil
	}
	return false, nil
}

func (r *workingCopyRepository) GitDir(ctx context.Context) (string, error) {
	res, err := r.query(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("failed to locate git dir: %w", err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *workingCopyRepository) PushBranch(ctx context.Context, remote, branch string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, "push", remote, branch)
}

func (r *workingCopyRepository) PushTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, "push", remote, "refs/tags/"+tag)
}

func (r *workingCopyRepository) DeleteRemoteTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, "push", remote, ":refs/tags/"+tag)
}

func (r *workingCopyRepository) PullRebase(ctx context.Context, remote, branch string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, "pull", "--rebase", remote, branch)
}

// Commit stages paths (if any) and commits them.
func (r *workingCopyRepository) Commit(ctx context.Context, message string, paths ...string) (*domain.CommandResult, error) {
	if len(paths) > 0 {
		res, err := r.Add(ctx, paths...)
		if err != nil || !res.Succeeded() {
			return res, err
		}
	}
	return r.git.Run(ctx, "commit", "-m", message)
}

// Checkout takes one side of a conflicted path. A side that deleted the file becomes a removal.
func (r *workingCopyRepository) Checkout(ctx context.Context, side domain.Resolution, path string) (*domain.CommandResult, error) {
	flag := "--theirs"
	if side == domain.ResolveKeepOurs {
		flag = "--ours"
	}
	res, err := r.git.Run(ctx, "checkout", flag, "--", path)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded() && strings.Contains(res.Output(), "does not have") {
		return r.git.Run(ctx, "rm", "--quiet", "--", path)
	}
	return res, nil
}

func (r *workingCopyRepository) Add(ctx context.Context, paths ...string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, append([]string{"add", "--"}, paths...)...)
}

// Continue advances the in-progress operation without opening an editor.
func (r *workingCopyRepository) Continue(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	switch kind {
	case domain.OperationRebase:
		return r.git.Run(ctx, "-c", "core.editor=true", "rebase", "--continue")
	case domain.OperationMerge:
		return r.git.Run(ctx, "-c", "core.editor=true", "commit", "--no-edit")
	case domain.OperationCherryPick:
		return r.git.Run(ctx, "-c", "core.editor=true", "cherry-pick", "--continue")
	}
	return nil, fmt.Errorf("no operation to continue: %s", kind)
}

func (r *workingCopyRepository) Skip(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	switch kind {
	case domain.OperationRebase, domain.OperationCherryPick:
		return r.git.Run(ctx, kind.GitVerb(), "--skip")
	case domain.OperationMerge:
		return nil, ErrSkipUnsupported
	}
	return nil, fmt.Errorf("no operation to skip: %s", kind)
}

func (r *workingCopyRepository) Abort(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	if kind == domain.OperationNone || kind == "" {
		return nil, fmt.Errorf("no operation to abort")
	}
	return r.git.Run(ctx, kind.GitVerb(), "--abort")
}

func (r *workingCopyRepository) StashPush(ctx context.Context, message string, includeUntracked bool, pathspecs []string) (*domain.CommandResult, error) {
	args := []string{"stash", "push"}
	if includeUntracked {
		args = append(args, "--include-untracked")
	}
	args = append(args, "-m", message, "--")
	args = append(args, pathspecs...)
	return r.git.Run(ctx, args...)
}

// StashList returns stash entries, newest first.
func (r *workingCopyRepository) StashList(ctx context.Context) ([]domain.StashEntry, error) {
	res, err := r.query(ctx, "stash", "list", "--format=%gd%x09%gs")
	if err != nil {
		return nil, fmt.Errorf("failed to list stashes: %w", err)
	}
	var entries []domain.StashEntry
	for _, line := range splitLines(res.Stdout) {
		ref, subject, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		entries = append(entries, domain.StashEntry{Ref: ref, Subject: subject})
	}
	return entries, nil
}

func (r *workingCopyRepository) StashPop(ctx context.Context, ref string) (*domain.CommandResult, error) {
	return r.git.Run(ctx, "stash", "pop", ref)
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
