package orchestrator

import (
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(declared string, mutate func(*domain.Snapshot)) domain.Snapshot {
	snap := domain.Snapshot{
		Repo: domain.RepositoryState{
			DeclaredVersion: declared,
			CurrentBranch:   "main",
			LocalTags:       []string{"v1.1.0", "v1.2.0"},
			LastTag:         "v1.2.0",
			OperationStuck:  domain.OperationNone,
		},
		Remote:   domain.RemoteState{Tag: "v" + declared, TagOnRemote: true, Release: &domain.ReleaseRecord{ID: 1, Tag: "v" + declared}},
		Registry: domain.RegistryState{Checked: true, VersionPublished: true},
	}
	if mutate != nil {
		mutate(&snap)
	}
	return snap
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		snap   domain.Snapshot
		expect domain.ScenarioKind
	}{
		{"Should report a clean slate when every source agrees", snapshot("1.2.0", nil), domain.ScenarioCleanSlate},
		{"Should detect an orphaned tag", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Repo.UnpushedCommitCount = 3
		}), domain.ScenarioOrphanedTag},
		{"Should detect a release in progress", snapshot("1.3.0", func(s *domain.Snapshot) {
			s.Remote = domain.RemoteState{Tag: "v1.3.0"}
		}), domain.ScenarioReleaseInProgress},
		{"Should detect an unpushed tag", snapshot("1.3.0", func(s *domain.Snapshot) {
			s.Repo.LocalTags = append(s.Repo.LocalTags, "v1.3.0")
			s.Repo.LastTag = "v1.3.0"
			s.Remote = domain.RemoteState{Tag: "v1.3.0"}
		}), domain.ScenarioUnpushedTag},
		{"Should detect an incomplete release from dirty files", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Repo.WorkingTreeDirty = true
			s.Repo.DirtyPaths = []string{"src/app.py"}
		}), domain.ScenarioIncompleteRelease},
		{"Should detect a pending draft", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Remote.Release.IsDraft = true
			s.Registry.VersionPublished = false
		}), domain.ScenarioDraftReleasePending},
		{"Should detect a failed publish", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Registry.VersionPublished = false
			s.Remote.WorkflowRun = &domain.WorkflowRun{ID: 9, Status: domain.WorkflowCompleted, Conclusion: "failure"}
		}), domain.ScenarioFailedPublish},
		{"Should not call a publish failed while its run is active", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Registry.VersionPublished = false
			s.Remote.WorkflowRun = &domain.WorkflowRun{ID: 9, Status: domain.WorkflowRunning}
		}), domain.ScenarioCleanSlate},
		{"Should not call a publish failed when the registry was not checked", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Registry = domain.RegistryState{}
		}), domain.ScenarioCleanSlate},
		{"Should detect a tag without release", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Remote.Release = nil
		}), domain.ScenarioNoReleaseForTag},
		{"Should prefer orphaned tag over incomplete release", snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Repo.UnpushedCommitCount = 1
			s.Repo.WorkingTreeDirty = true
		}), domain.ScenarioOrphanedTag},
		{"Should treat an unparsable last tag as 0.0.0", snapshot("0.1.0", func(s *domain.Snapshot) {
			s.Repo.LocalTags = []string{"nightly"}
			s.Repo.LastTag = "nightly"
			s.Remote = domain.RemoteState{Tag: "v0.1.0"}
		}), domain.ScenarioReleaseInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scenario, err := Classify(tc.snap)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, scenario.Kind())
		})
	}

	t.Run("Should refuse to classify while an operation is stuck", func(t *testing.T) {
		_, err := Classify(snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Repo.OperationStuck = domain.OperationRebase
		}))
		assert.ErrorIs(t, err, domain.ErrOperationStuck)
	})

	t.Run("Should carry the registry state into incomplete releases", func(t *testing.T) {
		scenario, err := Classify(snapshot("1.2.0", func(s *domain.Snapshot) {
			s.Repo.WorkingTreeDirty = true
		}))
		require.NoError(t, err)
		incomplete, ok := scenario.(domain.IncompleteRelease)
		require.True(t, ok)
		assert.True(t, incomplete.OnRegistry)
	})
}

// Every combination of the probe axes maps to exactly one scenario.
func TestClassify_Completeness(t *testing.T) {
	declared := []string{"1.1.0", "1.2.0", "1.3.0"}
	releases := []*domain.ReleaseRecord{nil, {ID: 1, IsDraft: true}, {ID: 2}}
	runs := []*domain.WorkflowRun{nil, {Status: domain.WorkflowRunning}, {Status: domain.WorkflowCompleted}}
	bools := []bool{false, true}
	seen := map[domain.ScenarioKind]int{}
	total := 0
	for _, version := range declared {
		for _, localTag := range bools {
			for _, remoteTag := range bools {
				for _, ahead := range []int{0, 2} {
					for _, dirty := range bools {
						for _, release := range releases {
							for _, run := range runs {
								for _, checked := range bools {
									for _, published := range bools {
										tags := []string{"v1.2.0"}
										if localTag && version != "1.2.0" {
											tags = append(tags, "v"+version)
										}
										last := "v1.2.0"
										if localTag && version == "1.3.0" {
											last = "v1.3.0"
										}
										snap := domain.Snapshot{
											Repo: domain.RepositoryState{
												DeclaredVersion:     version,
												LocalTags:           tags,
												LastTag:             last,
												UnpushedCommitCount: ahead,
												WorkingTreeDirty:    dirty,
												OperationStuck:      domain.OperationNone,
											},
											Remote:   domain.RemoteState{TagOnRemote: remoteTag, Release: release, WorkflowRun: run},
											Registry: domain.RegistryState{Checked: checked, VersionPublished: checked && published},
										}
										scenario, err := Classify(snap)
										require.NoError(t, err)
										require.NotNil(t, scenario)
										seen[scenario.Kind()]++
										total++
									}
								}
							}
						}
					}
				}
			}
		}
	}
	sum := 0
	for _, n := range seen {
		sum += n
	}
	assert.Equal(t, total, sum)
	for _, kind := range []domain.ScenarioKind{
		domain.ScenarioCleanSlate, domain.ScenarioOrphanedTag, domain.ScenarioReleaseInProgress,
		domain.ScenarioUnpushedTag, domain.ScenarioIncompleteRelease, domain.ScenarioDraftReleasePending,
		domain.ScenarioFailedPublish, domain.ScenarioNoReleaseForTag,
	} {
		assert.Positive(t, seen[kind], "scenario %s is unreachable", kind)
	}
}
