package domain

import (
	"fmt"
	"slices"
	"strings"
)

// OperationKind names a multi-step git operation that can be left in progress.
type OperationKind string

const (
	OperationNone       OperationKind = "none"
	OperationRebase     OperationKind = "rebase"
	OperationMerge      OperationKind = "merge"
	OperationCherryPick OperationKind = "cherry_pick"
)

// GitVerb returns the git subcommand that drives the operation.
func (k OperationKind) GitVerb() string {
	if k == OperationCherryPick {
		return "cherry-pick"
	}
	return string(k)
}

// RepositoryState is a read-only snapshot of the local working copy.
// Probe again for fresh values.
type RepositoryState struct {
	DeclaredVersion     string
	PackageName         string
	CurrentBranch       string
	LocalTags           []string
	LastTag             string
	UnpushedCommitCount int
	WorkingTreeDirty    bool
	DirtyPaths          []string
	OperationStuck      OperationKind
}

// HasLocalTag reports whether tag exists in the local repository.
func (s RepositoryState) HasLocalTag(tag string) bool {
	return slices.Contains(s.LocalTags, tag)
}

// LastPublishedVersion is the version of the nearest reachable tag, or 0.0.0.
func (s RepositoryState) LastPublishedVersion() string {
	if s.LastTag == "" {
		return "0.0.0"
	}
	return strings.TrimPrefix(s.LastTag, "v")
}

// DeclaredTag is the tag name the declared version would be released under.
func (s RepositoryState) DeclaredTag() string {
	return "v" + strings.TrimPrefix(s.DeclaredVersion, "v")
}

// ReleaseRecord mirrors a hosting-platform release.
type ReleaseRecord struct {
	ID      int64
	Tag     string
	IsDraft bool
	Title   string
	Body    string
	URL     string
}

// WorkflowStatus is the coarse state of a CI run.
type WorkflowStatus string

const (
	WorkflowQueued    WorkflowStatus = "queued"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
)

// WorkflowRun is the most recent publish run associated with a tag.
type WorkflowRun struct {
	ID         int64
	Status     WorkflowStatus
	Conclusion string
	Title      string
	URL        string
}

// Active reports whether the run is queued or still running.
func (w *WorkflowRun) Active() bool {
	return w != nil && (w.Status == WorkflowQueued || w.Status == WorkflowRunning)
}

// RemoteState describes one tag on the remote and hosting platform.
type RemoteState struct {
	Tag         string
	TagOnRemote bool
	Release     *ReleaseRecord
	WorkflowRun *WorkflowRun
}

// RegistryState is the package registry view of the declared version.
// Checked is false when no package name is known; VersionPublished is then meaningless.
type RegistryState struct {
	Package          string
	Version          string
	Checked          bool
	VersionPublished bool
	AnyPublished     bool
}

// Snapshot is everything one reconcile pass probed.
type Snapshot struct {
	Repo     RepositoryState
	Remote   RemoteState
	Registry RegistryState
}

// Fingerprint summarizes the probed axes so two passes can be compared for progress.
func (s Snapshot) Fingerprint() string {
	release := "none"
	if r := s.Remote.Release; r != nil {
		release = fmt.Sprintf("%d:draft=%t", r.ID, r.IsDraft)
	}
	run := "none"
	if w := s.Remote.WorkflowRun; w != nil {
		run = fmt.Sprintf("%d:%s:%s", w.ID, w.Status, w.Conclusion)
	}
	return fmt.Sprintf("v=%s last=%s tags=%d ahead=%d dirty=%t stuck=%s remote=%t release=%s run=%s published=%t",
		s.Repo.DeclaredVersion, s.Repo.LastTag, len(s.Repo.LocalTags), s.Repo.UnpushedCommitCount,
		s.Repo.WorkingTreeDirty, s.Repo.OperationStuck, s.Remote.TagOnRemote, release, run,
		s.Registry.VersionPublished)
}
