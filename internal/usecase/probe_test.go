package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProbeRepositoryUseCase_Execute(t *testing.T) {
	t.Run("Should snapshot the working copy excluding generated files", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		wc := new(mockWorkingCopy)
		manifest := new(mockManifest)
		ops := new(mockOperations)
		ctx := context.Background()
		manifest.On("Read").Return(repository.Manifest{Name: "widgets", Version: "1.3.0"}, nil)
		gitRepo.On("CurrentBranch", ctx).Return("main", nil)
		gitRepo.On("LocalTags", ctx).Return([]string{"v1.2.0"}, nil)
		wc.On("LastTag", ctx).Return("v1.2.0", nil)
		wc.On("Fetch", ctx, "origin").Return(&domain.CommandResult{}, nil)
		wc.On("CountAhead", ctx, "origin", "main").Return(2, nil)
		wc.On("Status", ctx).Return([]domain.FileStatus{
			{Path: "locale/de.po", Index: ' ', Worktree: 'M'},
			{Path: "CHANGELOG.md", Index: 'M', Worktree: ' '},
		}, nil)
		ops.On("Detect").Return(domain.OperationNone, nil)
		uc := &ProbeRepositoryUseCase{
			GitRepo: gitRepo, WorkingCopy: wc, Manifest: manifest, Operations: ops,
			Patterns: domain.IgnoreSet{"*.po"}, Remote: "origin", Branch: "main", Fetch: true,
		}
		state, err := uc.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1.3.0", state.DeclaredVersion)
		assert.Equal(t, "widgets", state.PackageName)
		assert.Equal(t, 2, state.UnpushedCommitCount)
		assert.True(t, state.WorkingTreeDirty)
		assert.Equal(t, []string{"CHANGELOG.md"}, state.DirtyPaths)
		assert.Equal(t, domain.OperationNone, state.OperationStuck)
		mock.AssertExpectationsForObjects(t, gitRepo, wc, manifest, ops)
	})
	t.Run("Should keep probing when fetch fails", func(t *testing.T) {
		gitRepo := new(mockGitRepository)
		wc := new(mockWorkingCopy)
		manifest := new(mockManifest)
		ops := new(mockOperations)
		ctx := context.Background()
		manifest.On("Read").Return(repository.Manifest{Name: "widgets", Version: "1.3.0"}, nil)
		gitRepo.On("CurrentBranch", ctx).Return("feature", nil)
		gitRepo.On("LocalTags", ctx).Return([]string(nil), nil)
		wc.On("LastTag", ctx).Return("", nil)
		wc.On("Fetch", ctx, "origin").Return(&domain.CommandResult{ExitCode: 128, Stderr: "could not resolve host"}, nil)
		wc.On("CountAhead", ctx, "origin", "feature").Return(0, nil)
		wc.On("Status", ctx).Return([]domain.FileStatus(nil), nil)
		ops.On("Detect").Return(domain.OperationRebase, nil)
		uc := &ProbeRepositoryUseCase{
			GitRepo: gitRepo, WorkingCopy: wc, Manifest: manifest, Operations: ops,
			Remote: "origin", PackageName: "override", Fetch: true,
		}
		state, err := uc.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, "override", state.PackageName)
		assert.False(t, state.WorkingTreeDirty)
		assert.Equal(t, domain.OperationRebase, state.OperationStuck)
	})
	t.Run("Should fail when the manifest cannot be read", func(t *testing.T) {
		manifest := new(mockManifest)
		manifest.On("Read").Return(repository.Manifest{}, errors.New("missing"))
		uc := &ProbeRepositoryUseCase{Manifest: manifest}
		_, err := uc.Execute(context.Background())
		assert.ErrorContains(t, err, "declared version")
	})
}

func TestProbeRemoteUseCase_Execute(t *testing.T) {
	t.Run("Should combine tag, release and workflow run", func(t *testing.T) {
		wc := new(mockWorkingCopy)
		gh := new(mockGithub)
		wc.On("RemoteTagExists", mock.Anything, "origin", "v1.3.0").Return(true, nil)
		gh.On("FindRelease", mock.Anything, "v1.3.0").Return(&domain.ReleaseRecord{ID: 9, IsDraft: true}, nil)
		gh.On("LatestWorkflowRun", mock.Anything, "publish.yml", "v1.3.0").Return(nil, nil)
		uc := &ProbeRemoteUseCase{WorkingCopy: wc, Github: gh, Remote: "origin", Workflow: "publish.yml"}
		state, err := uc.Execute(context.Background(), "v1.3.0")
		require.NoError(t, err)
		assert.True(t, state.TagOnRemote)
		require.NotNil(t, state.Release)
		assert.True(t, state.Release.IsDraft)
		assert.Nil(t, state.WorkflowRun)
	})
	t.Run("Should fail when any lookup fails", func(t *testing.T) {
		wc := new(mockWorkingCopy)
		gh := new(mockGithub)
		wc.On("RemoteTagExists", mock.Anything, "origin", "v1.3.0").Return(false, nil)
		gh.On("FindRelease", mock.Anything, "v1.3.0").Return(nil, errors.New("rate limited"))
		gh.On("LatestWorkflowRun", mock.Anything, "", "v1.3.0").Return(nil, nil).Maybe()
		uc := &ProbeRemoteUseCase{WorkingCopy: wc, Github: gh, Remote: "origin"}
		_, err := uc.Execute(context.Background(), "v1.3.0")
		assert.ErrorContains(t, err, "rate limited")
	})
}

func TestProbeRegistryUseCase_Execute(t *testing.T) {
	t.Run("Should report the published version", func(t *testing.T) {
		reg := new(mockRegistry)
		reg.On("Package", mock.Anything, "widgets").Return(repository.PackageInfo{Exists: true, Versions: []string{"1.2.0"}}, nil)
		state := (&ProbeRegistryUseCase{Registry: reg}).Execute(context.Background(), "widgets", "1.2.0")
		assert.True(t, state.Checked)
		assert.True(t, state.VersionPublished)
	})
	t.Run("Should stay unchecked without a package or on errors", func(t *testing.T) {
		reg := new(mockRegistry)
		reg.On("Package", mock.Anything, "widgets").Return(repository.PackageInfo{}, errors.New("timeout"))
		uc := &ProbeRegistryUseCase{Registry: reg}
		assert.False(t, uc.Execute(context.Background(), "", "1.0.0").Checked)
		assert.False(t, uc.Execute(context.Background(), "widgets", "1.0.0").Checked)
	})
}

func TestDraftNotesUseCase_Execute(t *testing.T) {
	t.Run("Should list subjects and drop release commits", func(t *testing.T) {
		wc := new(mockWorkingCopy)
		wc.On("CommitSubjects", mock.Anything, "v1.2.0").Return([]string{"fix: crash on save", "release: v1.2.1", "feat: export"}, nil)
		notes, err := (&DraftNotesUseCase{WorkingCopy: wc}).Execute(context.Background(), "v1.2.0")
		require.NoError(t, err)
		assert.Equal(t, "- fix: crash on save\n- feat: export", notes)
	})
	t.Run("Should fall back when nothing changed", func(t *testing.T) {
		wc := new(mockWorkingCopy)
		wc.On("CommitSubjects", mock.Anything, "").Return([]string(nil), nil)
		notes, err := (&DraftNotesUseCase{WorkingCopy: wc}).Execute(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "- Maintenance release", notes)
	})
}
