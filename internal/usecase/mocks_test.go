package usecase

import (
	"context"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/stretchr/testify/mock"
)

type mockGitRepository struct {
	mock.Mock
}

func (m *mockGitRepository) CurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) HeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) LocalTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]string)
	return tags, args.Error(1)
}

func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockGitRepository) CreateTag(ctx context.Context, tag, msg string) error {
	return m.Called(ctx, tag, msg).Error(0)
}

func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) Root() string { return "/repo" }

type mockWorkingCopy struct {
	mock.Mock
}

func (m *mockWorkingCopy) result(args mock.Arguments) (*domain.CommandResult, error) {
	res, _ := args.Get(0).(*domain.CommandResult)
	return res, args.Error(1)
}

func (m *mockWorkingCopy) Status(ctx context.Context) ([]domain.FileStatus, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]domain.FileStatus)
	return entries, args.Error(1)
}

func (m *mockWorkingCopy) LastTag(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockWorkingCopy) Fetch(ctx context.Context, remote string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, remote))
}

func (m *mockWorkingCopy) RemoteTagExists(ctx context.Context, remote, tag string) (bool, error) {
	args := m.Called(ctx, remote, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockWorkingCopy) CountAhead(ctx context.Context, remote, branch string) (int, error) {
	args := m.Called(ctx, remote, branch)
	return args.Int(0), args.Error(1)
}

func (m *mockWorkingCopy) CommitSubjects(ctx context.Context, since string) ([]string, error) {
	args := m.Called(ctx, since)
	subjects, _ := args.Get(0).([]string)
	return subjects, args.Error(1)
}

func (m *mockWorkingCopy) ConflictedFiles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	files, _ := args.Get(0).([]string)
	return files, args.Error(1)
}

func (m *mockWorkingCopy) IsBinary(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *mockWorkingCopy) GitDir(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockWorkingCopy) PushBranch(ctx context.Context, remote, branch string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, remote, branch))
}

func (m *mockWorkingCopy) PushTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, remote, tag))
}

func (m *mockWorkingCopy) DeleteRemoteTag(ctx context.Context, remote, tag string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, remote, tag))
}

func (m *mockWorkingCopy) PullRebase(ctx context.Context, remote, branch string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, remote, branch))
}

func (m *mockWorkingCopy) Commit(ctx context.Context, message string, paths ...string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, message, paths))
}

func (m *mockWorkingCopy) Checkout(ctx context.Context, side domain.Resolution, path string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, side, path))
}

func (m *mockWorkingCopy) Add(ctx context.Context, paths ...string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, paths))
}

func (m *mockWorkingCopy) Continue(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, kind))
}

func (m *mockWorkingCopy) Skip(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, kind))
}

func (m *mockWorkingCopy) Abort(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, kind))
}

func (m *mockWorkingCopy) StashPush(ctx context.Context, message string, includeUntracked bool, pathspecs []string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, message, includeUntracked, pathspecs))
}

func (m *mockWorkingCopy) StashList(ctx context.Context) ([]domain.StashEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]domain.StashEntry)
	return entries, args.Error(1)
}

func (m *mockWorkingCopy) StashPop(ctx context.Context, ref string) (*domain.CommandResult, error) {
	return m.result(m.Called(ctx, ref))
}

type mockManifest struct {
	mock.Mock
}

func (m *mockManifest) Read() (repository.Manifest, error) {
	args := m.Called()
	return args.Get(0).(repository.Manifest), args.Error(1)
}

func (m *mockManifest) WriteVersion(version string) error {
	return m.Called(version).Error(0)
}

func (m *mockManifest) Path() string { return "pyproject.toml" }

type mockOperations struct {
	mock.Mock
}

func (m *mockOperations) Detect() (domain.OperationKind, error) {
	args := m.Called()
	return args.Get(0).(domain.OperationKind), args.Error(1)
}

func (m *mockOperations) RangeSize(kind domain.OperationKind) (int, error) {
	args := m.Called(kind)
	return args.Int(0), args.Error(1)
}

type mockGithub struct {
	mock.Mock
}

func (m *mockGithub) CheckAuth(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGithub) FindRelease(ctx context.Context, tag string) (*domain.ReleaseRecord, error) {
	args := m.Called(ctx, tag)
	rel, _ := args.Get(0).(*domain.ReleaseRecord)
	return rel, args.Error(1)
}

func (m *mockGithub) CreateRelease(ctx context.Context, release *domain.Release) (*domain.ReleaseRecord, error) {
	args := m.Called(ctx, release)
	rel, _ := args.Get(0).(*domain.ReleaseRecord)
	return rel, args.Error(1)
}

func (m *mockGithub) PublishRelease(ctx context.Context, id int64) (*domain.ReleaseRecord, error) {
	args := m.Called(ctx, id)
	rel, _ := args.Get(0).(*domain.ReleaseRecord)
	return rel, args.Error(1)
}

func (m *mockGithub) DeleteRelease(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockGithub) LatestWorkflowRun(ctx context.Context, workflow, tag string) (*domain.WorkflowRun, error) {
	args := m.Called(ctx, workflow, tag)
	run, _ := args.Get(0).(*domain.WorkflowRun)
	return run, args.Error(1)
}

func (m *mockGithub) DispatchWorkflow(ctx context.Context, workflow, tag string) error {
	return m.Called(ctx, workflow, tag).Error(0)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Package(ctx context.Context, name string) (repository.PackageInfo, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(repository.PackageInfo), args.Error(1)
}
