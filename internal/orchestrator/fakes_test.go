package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/guard"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	manifestPath  = "/repo/pyproject.toml"
	changelogPath = "/repo/CHANGELOG.md"
)

// world simulates the local repository, the remote and the hosting platform at
// once, so a multi-pass run sees the effects of its own mutations. Every
// mutation is appended to log in the order it happened.
type world struct {
	mu         sync.Mutex
	branch     string
	localTags  map[string]bool
	remoteTags map[string]bool
	ahead      int
	dirty      []domain.FileStatus
	releases   map[string]*domain.ReleaseRecord
	runs       map[string]*domain.WorkflowRun
	published  map[string]bool
	stuck      domain.OperationKind
	subjects   []string
	nextID     int64
	// pushTagNoop makes tag pushes succeed without reaching the remote
	pushTagNoop bool
	// failRelease fails CreateRelease this many times
	failRelease int
	authErr     error
	log         []string
}

func newWorld() *world {
	return &world{
		branch:     "main",
		localTags:  map[string]bool{},
		remoteTags: map[string]bool{},
		releases:   map[string]*domain.ReleaseRecord{},
		runs:       map[string]*domain.WorkflowRun{},
		published:  map[string]bool{},
		stuck:      domain.OperationNone,
		nextID:     100,
	}
}

func (w *world) record(format string, args ...any) {
	w.log = append(w.log, fmt.Sprintf(format, args...))
}

func (w *world) mutations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.log...)
}

func okResult() *domain.CommandResult { return &domain.CommandResult{} }

// GitRepository

func (w *world) CurrentBranch(context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.branch, nil
}

func (w *world) HeadCommit(context.Context) (string, error) {
	return "0123456789abcdef0123456789abcdef01234567", nil
}

func (w *world) LocalTags(context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var tags []string
	for t := range w.localTags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func (w *world) TagExists(_ context.Context, tag string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.localTags[tag], nil
}

func (w *world) CreateTag(_ context.Context, tag, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.localTags[tag] {
		return fmt.Errorf("tag %s already exists", tag)
	}
	w.localTags[tag] = true
	w.record("create_tag %s", tag)
	return nil
}

func (w *world) DeleteTag(_ context.Context, tag string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.localTags, tag)
	w.record("delete_local_tag %s", tag)
	return nil
}

// gitView is the go-git side of the world
type gitView struct {
	*world
}

func (g gitView) Root() string { return "/repo" }

// WorkingCopyRepository

func (w *world) Status(context.Context) ([]domain.FileStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.FileStatus(nil), w.dirty...), nil
}

// LastTag approximates describe with the highest local tag
func (w *world) LastTag(context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var best string
	var bestVer *domain.Version
	for t := range w.localTags {
		v := domain.MustVersion(t)
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = t, v
		}
	}
	return best, nil
}

func (w *world) Fetch(context.Context, string) (*domain.CommandResult, error) { return okResult(), nil }

func (w *world) RemoteTagExists(_ context.Context, _, tag string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remoteTags[tag], nil
}

func (w *world) CountAhead(context.Context, string, string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ahead, nil
}

func (w *world) CommitSubjects(context.Context, string) ([]string, error) {
	return w.subjects, nil
}

func (w *world) ConflictedFiles(context.Context) ([]string, error) { return nil, nil }
func (w *world) IsBinary(context.Context, string) (bool, error)    { return false, nil }
func (w *world) GitDir(context.Context) (string, error)            { return "/repo/.git", nil }

func (w *world) PushBranch(_ context.Context, remote, branch string) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ahead = 0
	w.record("push_commits %s/%s", remote, branch)
	return okResult(), nil
}

func (w *world) PushTag(_ context.Context, _, tag string) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pushTagNoop {
		w.remoteTags[tag] = true
	}
	w.record("push_tag %s", tag)
	return okResult(), nil
}

func (w *world) DeleteRemoteTag(_ context.Context, _, tag string) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.remoteTags, tag)
	w.record("delete_remote_tag %s", tag)
	return okResult(), nil
}

func (w *world) PullRebase(context.Context, string, string) (*domain.CommandResult, error) {
	return okResult(), nil
}

func (w *world) Commit(_ context.Context, message string, _ ...string) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ahead++
	w.dirty = nil
	w.record("commit %s", message)
	return okResult(), nil
}

func (w *world) Checkout(context.Context, domain.Resolution, string) (*domain.CommandResult, error) {
	return okResult(), nil
}
func (w *world) Add(context.Context, ...string) (*domain.CommandResult, error)          { return okResult(), nil }
func (w *world) Continue(context.Context, domain.OperationKind) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stuck = domain.OperationNone
	w.record("continue")
	return okResult(), nil
}
func (w *world) Skip(context.Context, domain.OperationKind) (*domain.CommandResult, error) {
	return okResult(), nil
}
func (w *world) Abort(context.Context, domain.OperationKind) (*domain.CommandResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stuck = domain.OperationNone
	w.record("abort")
	return okResult(), nil
}
func (w *world) StashPush(context.Context, string, bool, []string) (*domain.CommandResult, error) {
	return okResult(), nil
}
func (w *world) StashList(context.Context) ([]domain.StashEntry, error)         { return nil, nil }
func (w *world) StashPop(context.Context, string) (*domain.CommandResult, error) { return okResult(), nil }

// OperationStateRepository

func (w *world) Detect() (domain.OperationKind, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stuck, nil
}

func (w *world) RangeSize(domain.OperationKind) (int, error) { return 1, nil }

// GithubRepository

func (w *world) CheckAuth(context.Context) error { return w.authErr }

func (w *world) FindRelease(_ context.Context, tag string) (*domain.ReleaseRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, found := w.releases[tag]; found {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (w *world) CreateRelease(_ context.Context, release *domain.Release) (*domain.ReleaseRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failRelease > 0 {
		w.failRelease--
		return nil, errors.New("502 bad gateway")
	}
	w.nextID++
	tag := release.Version.Tag()
	rec := &domain.ReleaseRecord{ID: w.nextID, Tag: tag, IsDraft: release.Draft, Title: release.Title, Body: release.Notes}
	w.releases[tag] = rec
	w.record("create_release %s draft=%t", tag, release.Draft)
	return rec, nil
}

func (w *world) release(id int64) *domain.ReleaseRecord {
	for _, r := range w.releases {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (w *world) PublishRelease(_ context.Context, id int64) (*domain.ReleaseRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.release(id)
	if r == nil {
		return nil, fmt.Errorf("release %d not found", id)
	}
	r.IsDraft = false
	w.record("publish_release %d", id)
	copied := *r
	return &copied, nil
}

func (w *world) DeleteRelease(_ context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.release(id)
	if r == nil {
		return fmt.Errorf("release %d not found", id)
	}
	delete(w.releases, r.Tag)
	w.record("delete_release %d", id)
	return nil
}

func (w *world) LatestWorkflowRun(_ context.Context, _, tag string) (*domain.WorkflowRun, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs[tag], nil
}

func (w *world) DispatchWorkflow(_ context.Context, workflow, tag string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs[tag] = &domain.WorkflowRun{ID: 7, Status: domain.WorkflowQueued}
	w.record("trigger_publish %s@%s", workflow, tag)
	return nil
}

// RegistryRepository

func (w *world) Package(_ context.Context, _ string) (repository.PackageInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := repository.PackageInfo{Exists: len(w.published) > 0}
	for v := range w.published {
		info.Versions = append(info.Versions, v)
	}
	return info, nil
}

// passthroughGuard runs operations directly; stash behavior has its own tests
type passthroughGuard struct {
	orphans []domain.StashEntry
	ran     []string
	// keep reports every stash as left in place
	keep bool
}

func (g *passthroughGuard) Guarded(ctx context.Context, op guard.Operation, _ domain.IgnoreSet, description string) (*guard.Result, error) {
	g.ran = append(g.ran, description)
	cmd, err := op(ctx)
	res := &guard.Result{Command: cmd, Description: description}
	if g.keep {
		res.Stashed = true
		res.StashRef = "stash@{0}"
		res.StashMessage = "releasesync-guard [" + description + " #n1]: a.po"
		res.Recovery = "git stash pop stash@{0}"
	}
	return res, err
}

func (g *passthroughGuard) FindOrphans(context.Context) ([]domain.StashEntry, error) {
	return g.orphans, nil
}

// mockOperator answers plans with scripted choices
type mockOperator struct {
	mock.Mock
}

func (m *mockOperator) Choose(ctx context.Context, plan *Plan) (string, error) {
	args := m.Called(ctx, plan.Scenario.Kind())
	return args.String(0), args.Error(1)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Save(ctx context.Context, session *domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockJournal) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*domain.Session)
	return s, args.Error(1)
}

func (m *mockJournal) LoadLatest(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*domain.Session)
	return s, args.Error(1)
}

// harness wires an engine to a world with a real manifest and changelog on a memory filesystem
type harness struct {
	world   *world
	fs      afero.Fs
	guard   *passthroughGuard
	out     *bytes.Buffer
	cfg     Config
	journal repository.JournalRepository
}

func newHarness(t *testing.T, version string) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	manifest := fmt.Sprintf("[project]\nname = \"demo\"\nversion = %q\n", version)
	require.NoError(t, afero.WriteFile(fs, manifestPath, []byte(manifest), 0o644))
	return &harness{
		world:   newWorld(),
		fs:      fs,
		guard:   &passthroughGuard{},
		out:     &bytes.Buffer{},
		journal: repository.NewJSONJournalRepository(afero.NewOsFs(), t.TempDir()),
		cfg: Config{
			Remote:       "origin",
			Branch:       "main",
			Workflow:     "publish.yml",
			Patterns:     domain.IgnoreSet{"*.po"},
			ReleaseDraft: true,
		},
	}
}

func (h *harness) engine(operator Operator) *ReconcileEngine {
	manifest := repository.NewManifestRepository(h.fs, manifestPath)
	return NewReconcileEngine(h.cfg, Dependencies{
		GitRepo:     gitView{h.world},
		WorkingCopy: h.world,
		Github:      h.world,
		Registry:    h.world,
		Manifest:    manifest,
		Changelog:   repository.NewChangelogRepository(h.fs, changelogPath),
		Operations:  h.world,
		Journal:     h.journal,
		Guard:       h.guard,
		Operator:    operator,
		FS:          h.fs,
		Printer:     NewPrinter(h.out, true),
		Now:         func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func (h *harness) declared(t *testing.T) string {
	t.Helper()
	m, err := repository.NewManifestRepository(h.fs, manifestPath).Read()
	require.NoError(t, err)
	return m.Version
}
