package domain

import (
	"strings"
	"time"
)

// ExitClass buckets a git exit status.
type ExitClass int

const (
	// ExitSuccess is exit status 0.
	ExitSuccess ExitClass = iota
	// ExitConflict is exit status 1 with CONFLICT in the output.
	ExitConflict
	// ExitFailed is any other exit status 1; the repository is intact.
	ExitFailed
	// ExitHard is every other non-zero status (128 fatal, killed, ...).
	ExitHard
)

func (c ExitClass) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitConflict:
		return "conflict"
	case ExitFailed:
		return "failed"
	}
	return "hard-failure"
}

// CommandResult is the captured outcome of one git invocation.
// A non-zero ExitCode is a result, not an error.
type CommandResult struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Succeeded reports exit status 0.
func (r *CommandResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Output returns stdout and stderr joined.
func (r *CommandResult) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// HasConflict reports whether git printed a CONFLICT marker.
func (r *CommandResult) HasConflict() bool {
	return r != nil && strings.Contains(r.Stdout+r.Stderr, "CONFLICT")
}

// Class buckets the exit status. A nil result counts as a hard failure.
func (r *CommandResult) Class() ExitClass {
	switch {
	case r == nil:
		return ExitHard
	case r.ExitCode == 0:
		return ExitSuccess
	case r.ExitCode == 1 && r.HasConflict():
		return ExitConflict
	case r.ExitCode == 1:
		return ExitFailed
	}
	return ExitHard
}

// CommandLine renders the invocation for messages.
func (r *CommandResult) CommandLine() string {
	if r == nil {
		return ""
	}
	return "git " + strings.Join(r.Args, " ")
}

// FileStatus is one entry from `git status --porcelain`.
type FileStatus struct {
	Path     string
	Index    byte
	Worktree byte
}

// Untracked reports a "??" entry.
func (f FileStatus) Untracked() bool {
	return f.Index == '?' && f.Worktree == '?'
}

// Unmerged reports an entry git considers conflicted.
func (f FileStatus) Unmerged() bool {
	switch string([]byte{f.Index, f.Worktree}) {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// StashEntry is one line from `git stash list`.
type StashEntry struct {
	Ref     string
	Subject string
}

// Resolution is the operator's choice for one conflicting path.
type Resolution string

const (
	ResolveKeepOurs   Resolution = "keep-ours"
	ResolveKeepTheirs Resolution = "keep-theirs"
	ResolveManualEdit Resolution = "manual-edit"
	ResolveSkip       Resolution = "skip"
	ResolveAbort      Resolution = "abort"
)
