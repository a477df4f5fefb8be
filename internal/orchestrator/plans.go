package orchestrator

import (
	"fmt"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
)

// Option is one recovery the operator can pick for a scenario
type Option struct {
	Key         string
	Label       string
	Recommended bool
	Steps       []Step
	// Reprobe asks the engine to classify again after the steps succeed
	Reprobe bool
}

// Plan is the set of options offered for one classified scenario
type Plan struct {
	Scenario domain.Scenario
	Title    string
	Summary  string
	Options  []Option
}

// Option finds an option by key
func (p *Plan) Option(key string) (Option, bool) {
	for _, o := range p.Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// Recommended returns the first recommended option
func (p *Plan) Recommended() (Option, bool) {
	for _, o := range p.Options {
		if o.Recommended {
			return o, true
		}
	}
	return Option{}, false
}

var exitOption = Option{Key: ChoiceExit, Label: "Leave everything as it is"}

// Plan builds the fixed recovery scripts for scenario
func (e *ReconcileEngine) Plan(snap domain.Snapshot, scenario domain.Scenario) (*Plan, error) {
	branch := e.cfg.Branch
	if branch == "" {
		branch = snap.Repo.CurrentBranch
	}
	pkg := snap.Repo.PackageName
	plan := &Plan{Scenario: scenario}
	switch s := scenario.(type) {
	case domain.OrphanedTag:
		plan.Title = "Orphaned tag " + s.Tag
		plan.Summary = fmt.Sprintf("%s is on %s but %d commit(s) it should cover were never pushed.",
			s.Tag, e.cfg.Remote, s.Unpushed)
		var steps []Step
		if s.Release != nil {
			steps = append(steps, e.deleteRelease(s.Release))
		}
		steps = append(steps,
			e.deleteRemoteTag(s.Tag),
			e.deleteLocalTag(s.Tag),
			e.pushCommits(s.Unpushed, branch),
			e.createTag(s.Tag),
			e.pushTag(s.Tag),
		)
		plan.Options = []Option{
			{Key: "fix", Label: "Move the tag onto the pushed commits", Recommended: true, Steps: steps, Reprobe: true},
			exitOption,
		}

	case domain.ReleaseInProgress:
		version, err := domain.NewVersion(s.Version)
		if err != nil {
			return nil, err
		}
		previous := e.previousTag(snap.Repo, version)
		plan.Title = fmt.Sprintf("Release %s in progress", s.Tag)
		plan.Summary = fmt.Sprintf("The manifest declares %s but the last release is %s.", s.Version, s.LastVersion)
		resume := func(overwrite bool) []Step {
			return []Step{
				e.writeChangelog(s.Version, previous, overwrite),
				e.commitRelease(s.Tag, s.DirtyPaths),
				e.pushCommits(0, branch),
				e.createTag(s.Tag),
				e.pushTag(s.Tag),
				e.createRelease(version, pkg, previous, branch, e.cfg.ReleaseDraft),
			}
		}
		plan.Options = []Option{
			{Key: "resume", Label: "Finish the release", Recommended: true, Steps: resume(false), Reprobe: e.cfg.ReleaseDraft},
			{Key: "refresh", Label: "Rewrite the changelog entry, then finish", Steps: resume(true), Reprobe: e.cfg.ReleaseDraft},
			{Key: "abort", Label: "Revert the manifest to " + s.LastVersion,
				Steps: []Step{e.revertManifest(s.LastVersion)}, Reprobe: true},
			exitOption,
		}

	case domain.UnpushedTag:
		plan.Title = "Unpushed tag " + s.Tag
		plan.Summary = fmt.Sprintf("%s exists locally but not on %s.", s.Tag, e.cfg.Remote)
		var steps []Step
		if s.Unpushed > 0 {
			steps = append(steps, e.pushCommits(s.Unpushed, branch))
		}
		steps = append(steps, e.pushTag(s.Tag))
		plan.Options = []Option{
			{Key: "push", Label: "Push the tag", Recommended: true, Steps: steps, Reprobe: true},
			exitOption,
		}

	case domain.IncompleteRelease:
		version, err := domain.NewVersion(s.Version)
		if err != nil {
			return nil, err
		}
		plan.Title = "Incomplete release " + s.Tag
		plan.Summary = incompleteSummary(s, snap.Registry)
		if !s.OnRegistry {
			previous := e.previousTag(snap.Repo, version)
			var steps []Step
			if s.Release != nil {
				steps = append(steps, e.deleteRelease(s.Release))
			}
			steps = append(steps, e.deleteRemoteTag(s.Tag), e.deleteLocalTag(s.Tag))
			if len(s.DirtyPaths) > 0 {
				steps = append(steps, e.commitRelease(s.Tag, s.DirtyPaths))
			}
			steps = append(steps,
				e.pushCommits(s.Unpushed, branch),
				e.createTag(s.Tag),
				e.pushTag(s.Tag),
				e.createRelease(version, pkg, previous, branch, e.cfg.ReleaseDraft),
			)
			plan.Options = append(plan.Options, Option{
				Key: "fix", Label: "Re-release " + s.Tag + " at the current commit",
				Recommended: true, Steps: steps, Reprobe: e.cfg.ReleaseDraft,
			})
		}
		bump, err := e.bumpOption(version, domain.BumpPatch, s.OnRegistry)
		if err != nil {
			return nil, err
		}
		plan.Options = append(plan.Options, bump, exitOption)

	case domain.DraftReleasePending:
		plan.Title = "Draft release " + s.Tag
		plan.Summary = fmt.Sprintf("Release %d is still a draft.", s.Release.ID)
		plan.Options = []Option{
			{Key: "publish", Label: "Publish the release", Recommended: !e.cfg.ReleaseDraft,
				Steps: []Step{e.publishRelease(s.Release)}},
			exitOption,
		}

	case domain.FailedPublish:
		version, err := domain.NewVersion(s.Version)
		if err != nil {
			return nil, err
		}
		plan.Title = "Publish failed for " + s.Tag
		plan.Summary = fmt.Sprintf("Release %d is public but %s.", s.Release.ID, registryGap(snap.Registry, s.Version))
		if s.LastRun != nil {
			plan.Summary += fmt.Sprintf(" Last run %d concluded %q.", s.LastRun.ID, s.LastRun.Conclusion)
		}
		bump, err := e.bumpOption(version, domain.BumpPatch, false)
		if err != nil {
			return nil, err
		}
		plan.Options = []Option{
			{Key: "retry", Label: "Run the publish workflow again", Recommended: true,
				Steps: []Step{e.triggerPublish(s.Tag)}},
			bump,
			exitOption,
		}

	case domain.NoReleaseForTag:
		version, err := domain.NewVersion(s.Version)
		if err != nil {
			return nil, err
		}
		previous := e.previousTag(snap.Repo, version)
		plan.Title = "No release for " + s.Tag
		plan.Summary = fmt.Sprintf("%s is on %s but has no release.", s.Tag, e.cfg.Remote)
		plan.Options = []Option{
			{Key: "create-release", Label: "Create the release from the changelog", Recommended: true,
				Steps:   []Step{e.createRelease(version, pkg, previous, branch, e.cfg.ReleaseDraft)},
				Reprobe: e.cfg.ReleaseDraft},
			{Key: "reset", Label: "Delete the tag and start over",
				Steps: []Step{e.deleteRemoteTag(s.Tag), e.deleteLocalTag(s.Tag)}, Reprobe: true},
			exitOption,
		}

	case domain.CleanSlate:
		version, err := domain.NewVersion(s.Version)
		if err != nil {
			return nil, err
		}
		plan.Title = "Everything is consistent at " + version.Tag()
		if s.PublishRun.Active() {
			plan.Summary = fmt.Sprintf("Publish run %d is %s.", s.PublishRun.ID, s.PublishRun.Status)
		}
		for _, kind := range []domain.BumpKind{domain.BumpPatch, domain.BumpMinor, domain.BumpMajor} {
			bump, err := e.bumpOption(version, kind, e.cfg.Bump == kind)
			if err != nil {
				return nil, err
			}
			plan.Options = append(plan.Options, bump)
		}
		exit := exitOption
		exit.Recommended = e.cfg.Bump == ""
		plan.Options = append(plan.Options, exit)

	default:
		return nil, fmt.Errorf("no plan for scenario %s", scenario.Kind())
	}
	return plan, nil
}

func (e *ReconcileEngine) bumpOption(current *domain.Version, kind domain.BumpKind, recommended bool) (Option, error) {
	next, err := current.Bump(kind, e.deps.Now())
	if err != nil {
		return Option{}, err
	}
	return Option{
		Key:         "bump-" + string(kind),
		Label:       fmt.Sprintf("Bump %s to %s", kind, next),
		Recommended: recommended,
		Steps:       []Step{e.bumpVersion(current, next)},
		Reprobe:     true,
	}, nil
}

// previousTag is the highest local tag ordered below version
func (e *ReconcileEngine) previousTag(repo domain.RepositoryState, version *domain.Version) string {
	var (
		best    string
		bestVer *domain.Version
	)
	for _, tag := range repo.LocalTags {
		v, err := domain.NewVersion(tag)
		if err != nil || !version.GreaterThan(v) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = tag, v
		}
	}
	if best == "" && repo.LastTag != "" && repo.LastTag != version.Tag() {
		return repo.LastTag
	}
	return best
}

// registryGap says whether the package is missing entirely or only this version is
func registryGap(reg domain.RegistryState, version string) string {
	if reg.Checked && !reg.AnyPublished {
		return fmt.Sprintf("package %s has never been published", reg.Package)
	}
	return version + " is not on the registry"
}

func incompleteSummary(s domain.IncompleteRelease, reg domain.RegistryState) string {
	var parts []string
	if len(s.DirtyPaths) > 0 {
		parts = append(parts, fmt.Sprintf("%d uncommitted file(s)", len(s.DirtyPaths)))
	}
	if s.Unpushed > 0 {
		parts = append(parts, fmt.Sprintf("%d unpushed commit(s)", s.Unpushed))
	}
	summary := fmt.Sprintf("%s is public but HEAD has %s.", s.Tag, strings.Join(parts, " and "))
	switch {
	case s.OnRegistry:
		summary += " The version is already on the registry, so it cannot be re-released."
	case reg.Checked && !reg.AnyPublished:
		summary += fmt.Sprintf(" Package %s has never been published.", reg.Package)
	}
	return summary
}
