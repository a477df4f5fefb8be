package domain

// ScenarioKind is the stable name of a divergence scenario.
type ScenarioKind string

const (
	ScenarioCleanSlate          ScenarioKind = "clean_slate"
	ScenarioOrphanedTag         ScenarioKind = "orphaned_tag"
	ScenarioReleaseInProgress   ScenarioKind = "release_in_progress"
	ScenarioUnpushedTag         ScenarioKind = "unpushed_tag"
	ScenarioIncompleteRelease   ScenarioKind = "incomplete_release"
	ScenarioDraftReleasePending ScenarioKind = "draft_release_pending"
	ScenarioFailedPublish       ScenarioKind = "failed_publish"
	ScenarioNoReleaseForTag     ScenarioKind = "no_release_for_tag"
)

// Scenario is the closed set of classifications. Only types in this
// package can implement it.
type Scenario interface {
	Kind() ScenarioKind
	isScenario()
}

// CleanSlate means every source agrees; a version bump may be offered.
// PublishRun is set when a publish workflow for the declared tag is still active.
type CleanSlate struct {
	Version    string
	PublishRun *WorkflowRun
}

// OrphanedTag means the remote tag exists but the commits it should cover were never pushed.
type OrphanedTag struct {
	Tag      string
	Unpushed int
	Release  *ReleaseRecord
}

// ReleaseInProgress means the manifest was bumped but the release was never tagged.
type ReleaseInProgress struct {
	Version     string
	Tag         string
	PreviousTag string
	LastVersion string
	DirtyPaths  []string
}

// UnpushedTag means the release tag exists only locally.
type UnpushedTag struct {
	Tag      string
	Unpushed int
}

// IncompleteRelease means the tag is public but HEAD or the working tree moved on.
type IncompleteRelease struct {
	Version    string
	Tag        string
	DirtyPaths []string
	Unpushed   int
	Release    *ReleaseRecord
	OnRegistry bool
}

// DraftReleasePending means a draft release waits to be published.
type DraftReleasePending struct {
	Tag     string
	Release ReleaseRecord
}

// FailedPublish means the release is public but the package never reached the registry.
type FailedPublish struct {
	Version string
	Tag     string
	Release ReleaseRecord
	LastRun *WorkflowRun
}

// NoReleaseForTag means the tag is public but has no release record.
type NoReleaseForTag struct {
	Version string
	Tag     string
}

func (CleanSlate) Kind() ScenarioKind          { return ScenarioCleanSlate }
func (OrphanedTag) Kind() ScenarioKind         { return ScenarioOrphanedTag }
func (ReleaseInProgress) Kind() ScenarioKind   { return ScenarioReleaseInProgress }
func (UnpushedTag) Kind() ScenarioKind         { return ScenarioUnpushedTag }
func (IncompleteRelease) Kind() ScenarioKind   { return ScenarioIncompleteRelease }
func (DraftReleasePending) Kind() ScenarioKind { return ScenarioDraftReleasePending }
func (FailedPublish) Kind() ScenarioKind       { return ScenarioFailedPublish }
func (NoReleaseForTag) Kind() ScenarioKind     { return ScenarioNoReleaseForTag }

func (CleanSlate) isScenario()          {}
func (OrphanedTag) isScenario()         {}
func (ReleaseInProgress) isScenario()   {}
func (UnpushedTag) isScenario()         {}
func (IncompleteRelease) isScenario()   {}
func (DraftReleasePending) isScenario() {}
func (FailedPublish) isScenario()       {}
func (NoReleaseForTag) isScenario()     {}
