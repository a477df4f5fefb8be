package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/compozy/releasesync/internal/conflict"
	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/guard"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/compozy/releasesync/internal/usecase"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// scenarioStuck is journaled for passes spent in the conflict loop
const scenarioStuck domain.ScenarioKind = "operation_stuck"

const authRecovery = "export GITHUB_TOKEN=<token>  # or: gh auth login"

// Config contains configuration for the reconcile run.
type Config struct {
	Remote       string
	Branch       string
	Workflow     string
	PackageName  string
	Patterns     domain.IgnoreSet
	Bump         domain.BumpKind
	ReleaseDraft bool
	DryRun       bool
	// Fetch refreshes remote-tracking refs at the start of every probe
	Fetch           bool
	MaxPasses       int
	ProbeTimeout    time.Duration
	MutationTimeout time.Duration
}

// Guard is the mutation envelope every push and operation step goes through
type Guard interface {
	Guarded(ctx context.Context, op guard.Operation, patterns domain.IgnoreSet, description string) (*guard.Result, error)
	FindOrphans(ctx context.Context) ([]domain.StashEntry, error)
}

// Dependencies wires the engine to its collaborators
type Dependencies struct {
	GitRepo     repository.GitRepository
	WorkingCopy repository.WorkingCopyRepository
	Github      repository.GithubRepository
	Registry    repository.RegistryRepository
	Manifest    repository.ManifestRepository
	Changelog   repository.ChangelogRepository
	Operations  repository.OperationStateRepository
	Journal     repository.JournalRepository
	Guard       Guard
	Operator    Operator
	Resolver    conflict.Resolver
	FS          afero.Fs
	Printer     *Printer
	Logger      *zap.Logger
	Now         func() time.Time
}

// Report summarizes a finished run
type Report struct {
	SessionID string
	Passes    []domain.PassRecord
	Final     domain.ScenarioKind
	Mutations int
	Stashes   []domain.StashRecord
}

// DispatchResult describes what one dispatch did
type DispatchResult struct {
	Choice    string
	Mutations int
	Reprobe   bool
}

// ReconcileEngine probes, classifies and repairs release state
type ReconcileEngine struct {
	cfg     Config
	deps    Dependencies
	printer *Printer
	logger  *zap.Logger
	notes   *usecase.PrepareReleaseNotesUseCase
	session *domain.Session
	runner  *StepRunner
}

// NewReconcileEngine creates a reconcile engine
func NewReconcileEngine(cfg Config, deps Dependencies) *ReconcileEngine {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Printer == nil {
		deps.Printer = NewPrinter(io.Discard, true)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Operator == nil {
		deps.Operator = AutoOperator{}
	}
	if deps.Resolver == nil {
		deps.Resolver = AutoResolver{}
	}
	return &ReconcileEngine{
		cfg:     cfg,
		deps:    deps,
		printer: deps.Printer,
		logger:  deps.Logger,
		notes:   &usecase.PrepareReleaseNotesUseCase{},
	}
}

// Session returns the journal of the current run
func (e *ReconcileEngine) Session() *domain.Session {
	e.ensureSession()
	return e.session
}

func (e *ReconcileEngine) ensureSession() {
	if e.session != nil {
		return
	}
	e.session = domain.NewSession(uuid.New().String())
	e.runner = NewStepRunner(e.session, e.deps.Journal, e.printer, e.logger, e.cfg.DryRun, e.cfg.MutationTimeout)
}

// Probe snapshots every state axis. Probes are read-only.
func (e *ReconcileEngine) Probe(ctx context.Context) (domain.Snapshot, error) {
	if e.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ProbeTimeout)
		defer cancel()
	}
	var snap domain.Snapshot
	repoUC := &usecase.ProbeRepositoryUseCase{
		GitRepo:     e.deps.GitRepo,
		WorkingCopy: e.deps.WorkingCopy,
		Manifest:    e.deps.Manifest,
		Operations:  e.deps.Operations,
		Patterns:    e.cfg.Patterns,
		Remote:      e.cfg.Remote,
		Branch:      e.cfg.Branch,
		PackageName: e.cfg.PackageName,
		Fetch:       e.cfg.Fetch,
		Logger:      e.logger,
	}
	state, err := repoUC.Execute(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to probe repository: %w", err)
	}
	snap.Repo = state
	remoteUC := &usecase.ProbeRemoteUseCase{
		WorkingCopy: e.deps.WorkingCopy,
		Github:      e.deps.Github,
		Remote:      e.cfg.Remote,
		Workflow:    e.cfg.Workflow,
	}
	registryUC := &usecase.ProbeRegistryUseCase{Registry: e.deps.Registry, Logger: e.logger}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		remote, err := remoteUC.Execute(gctx, state.DeclaredTag())
		if err != nil {
			return fmt.Errorf("failed to probe remote: %w", err)
		}
		snap.Remote = remote
		return nil
	})
	g.Go(func() error {
		snap.Registry = registryUC.Execute(gctx, state.PackageName, state.DeclaredVersion)
		return nil
	})
	if err := g.Wait(); err != nil {
		return snap, err
	}
	return snap, nil
}

// Reconcile probes and classifies once
func (e *ReconcileEngine) Reconcile(ctx context.Context) (domain.Scenario, domain.Snapshot, error) {
	snap, err := e.Probe(ctx)
	if err != nil {
		return nil, snap, err
	}
	scenario, err := Classify(snap)
	if err != nil {
		return nil, snap, err
	}
	e.logger.Info("classified repository state",
		zap.String("scenario", string(scenario.Kind())),
		zap.String("fingerprint", snap.Fingerprint()))
	return scenario, snap, nil
}

// Dispatch asks the operator for an option and runs its script
func (e *ReconcileEngine) Dispatch(ctx context.Context, snap domain.Snapshot, scenario domain.Scenario) (DispatchResult, error) {
	e.ensureSession()
	pass := e.session.AddPass(scenario.Kind(), snap.Fingerprint())
	number := pass.Number
	plan, err := e.Plan(snap, scenario)
	if err != nil {
		return DispatchResult{}, err
	}
	e.printer.Scenario(number, plan)
	option, err := e.choose(ctx, plan)
	if err != nil {
		return DispatchResult{}, err
	}
	e.session.Passes[number-1].Choice = option.Key
	e.printer.Choice(option)
	result := DispatchResult{Choice: option.Key, Reprobe: option.Reprobe}
	if option.Key == ChoiceExit {
		return result, nil
	}
	if e.cfg.DryRun {
		e.previewStash(ctx)
	}
	before := e.runner.Mutations()
	err = e.runner.Run(ctx, option.Steps)
	result.Mutations = e.runner.Mutations() - before
	return result, err
}

func (e *ReconcileEngine) choose(ctx context.Context, plan *Plan) (Option, error) {
	if err := ctx.Err(); err != nil {
		return Option{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	key, err := e.deps.Operator.Choose(ctx, plan)
	if err != nil {
		return Option{}, err
	}
	option, ok := plan.Option(key)
	if !ok {
		return Option{}, fmt.Errorf("unknown option %q for %s", key, plan.Scenario.Kind())
	}
	return option, nil
}

// Run reconciles until the state settles, the operator exits, or a step fails
func (e *ReconcileEngine) Run(ctx context.Context) (*Report, error) {
	e.ensureSession()
	e.save(ctx)
	e.reportOrphans(ctx)
	if err := e.deps.Github.CheckAuth(ctx); err != nil {
		if !e.cfg.DryRun {
			return e.finish(ctx, withRecovery(fmt.Errorf("%w: %v", ErrAuth, err), authRecovery))
		}
		e.printer.Warn("hosting platform not authenticated (%v); continuing dry-run", err)
	}
	var lastFingerprint string
	dispatched := false
	for pass := 1; pass <= e.cfg.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, fmt.Errorf("%w: %v", ErrCancelled, err))
		}
		snap, err := e.Probe(ctx)
		if err != nil {
			return e.finish(ctx, err)
		}
		fingerprint := snap.Fingerprint()
		if dispatched && fingerprint == lastFingerprint {
			return e.finish(ctx, withRecovery(
				fmt.Errorf("%w: state unchanged after pass %d", ErrNoProgress, pass-1),
				"git status && git log --oneline -5"))
		}
		scenario, err := Classify(snap)
		if errors.Is(err, domain.ErrOperationStuck) {
			e.session.AddPass(scenarioStuck, fingerprint)
			if e.cfg.DryRun {
				e.printer.DryRun("resolve", snap.Repo.OperationStuck.GitVerb())
				return e.finish(ctx, nil)
			}
			if err := e.ResolveConflicts(ctx); err != nil {
				return e.finish(ctx, err)
			}
			dispatched, lastFingerprint = true, fingerprint
			continue
		}
		if err != nil {
			return e.finish(ctx, err)
		}
		e.logger.Info("classified repository state",
			zap.Int("pass", pass),
			zap.String("scenario", string(scenario.Kind())),
			zap.String("fingerprint", fingerprint))
		if pass > 1 && scenario.Kind() == domain.ScenarioCleanSlate {
			e.session.AddPass(scenario.Kind(), fingerprint)
			return e.finish(ctx, nil)
		}
		result, err := e.Dispatch(ctx, snap, scenario)
		if err != nil {
			return e.finish(ctx, err)
		}
		if result.Choice == ChoiceExit || e.cfg.DryRun || !result.Reprobe {
			return e.finish(ctx, nil)
		}
		dispatched, lastFingerprint = true, fingerprint
	}
	return e.finish(ctx, fmt.Errorf("%w after %d passes", ErrPassLimit, e.cfg.MaxPasses))
}

// ResolveConflicts drives a stuck rebase, merge or cherry-pick to completion
func (e *ReconcileEngine) ResolveConflicts(ctx context.Context) error {
	e.ensureSession()
	loop := conflict.NewLoop(conflict.Dependencies{
		Worktree:  e.deps.WorkingCopy,
		Inspector: e.deps.Operations,
		Resolver:  e.deps.Resolver,
		Guard:     e.deps.Guard,
		Patterns:  e.cfg.Patterns,
		FS:        e.deps.FS,
		Root:      e.deps.GitRepo.Root(),
		Logger:    e.logger,
		Out:       e.printer.Writer(),
	})
	outcome, err := loop.Run(ctx)
	if outcome != nil {
		for _, kept := range outcome.Kept {
			e.recordKept(kept)
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, conflict.ErrAborted) {
		return err
	}
	verb := "rebase"
	if outcome != nil && outcome.Kind != domain.OperationNone && outcome.Kind != "" {
		verb = outcome.Kind.GitVerb()
	}
	err = fmt.Errorf("failed to resolve %s: %w", verb, err)
	if Recovery(err) != "" {
		return err
	}
	return withRecovery(err,
		fmt.Sprintf("git status  # resolve the conflicts, then: git %s --continue (or releasesync resolve)", verb))
}

// ResolveStuck runs the conflict loop outside a reconcile run and journals
// the session, so stashes it kept show up in the stash listing.
func (e *ReconcileEngine) ResolveStuck(ctx context.Context) error {
	err := e.ResolveConflicts(ctx)
	e.closeSession(ctx, err)
	return err
}

// AbortOperation unwinds a stuck rebase, merge or cherry-pick. It reports
// false when nothing was in progress.
func (e *ReconcileEngine) AbortOperation(ctx context.Context) (bool, error) {
	aborted, err := e.abortOperation(ctx)
	if (aborted || err != nil) && !e.cfg.DryRun {
		e.closeSession(ctx, err)
	}
	return aborted, err
}

func (e *ReconcileEngine) abortOperation(ctx context.Context) (bool, error) {
	e.ensureSession()
	kind, err := e.deps.Operations.Detect()
	if err != nil {
		return false, err
	}
	if kind == domain.OperationNone || kind == "" {
		return false, nil
	}
	if e.cfg.DryRun {
		e.printer.DryRun("abort", kind.GitVerb())
		return true, nil
	}
	res, err := e.deps.Guard.Guarded(context.WithoutCancel(ctx), func(ctx context.Context) (*domain.CommandResult, error) {
		return e.deps.WorkingCopy.Abort(ctx, kind)
	}, e.cfg.Patterns, "abort "+kind.GitVerb())
	if res.LeftStashed() {
		e.recordKept(res)
	}
	if err != nil {
		return false, err
	}
	if !res.Command.Succeeded() {
		return false, withRecovery(fmt.Errorf("failed to abort %s: %s", kind.GitVerb(), res.Command.Output()),
			fmt.Sprintf("git %s --abort", kind.GitVerb()))
	}
	e.printer.Touched("abort", kind.GitVerb())
	return true, nil
}

// closeSession records how the session ended and persists it
func (e *ReconcileEngine) closeSession(ctx context.Context, err error) {
	e.ensureSession()
	status := domain.SessionStatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled), errors.Is(err, conflict.ErrAborted), errors.Is(err, context.Canceled):
		status = domain.SessionStatusCancelled
	default:
		status = domain.SessionStatusFailed
	}
	e.session.Finish(status, err)
	e.save(ctx)
}

// finish closes the session and builds the report
func (e *ReconcileEngine) finish(ctx context.Context, err error) (*Report, error) {
	e.closeSession(ctx, err)
	report := &Report{
		SessionID: e.session.SessionID,
		Passes:    e.session.Passes,
		Mutations: e.runner.Mutations(),
		Stashes:   e.session.Stashes,
	}
	if n := len(e.session.Passes); n > 0 {
		report.Final = e.session.Passes[n-1].Scenario
	}
	if err == nil {
		e.printer.Done(report)
	}
	return report, err
}

func (e *ReconcileEngine) save(ctx context.Context) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.Save(context.WithoutCancel(ctx), e.session); err != nil {
		e.logger.Warn("failed to save journal", zap.Error(err))
	}
}

// reportOrphans lists guard stashes left by earlier runs. They are never popped automatically.
func (e *ReconcileEngine) reportOrphans(ctx context.Context) {
	orphans, err := e.deps.Guard.FindOrphans(ctx)
	if err != nil {
		e.logger.Warn("failed to scan for guard stashes", zap.Error(err))
		return
	}
	for _, o := range orphans {
		e.printer.Warn("stash %s from an earlier run still holds generated files: %s", o.Ref, o.Subject)
		e.printer.Info("Restore with: git stash pop %s", o.Ref)
	}
}

// previewStash shows what the guard would set aside
func (e *ReconcileEngine) previewStash(ctx context.Context) {
	entries, err := e.deps.WorkingCopy.Status(ctx)
	if err != nil {
		return
	}
	var paths []string
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}
	if matched := e.cfg.Patterns.Filter(paths); len(matched) > 0 {
		e.printer.DryRun("stash", strings.Join(matched, ", "))
	}
}

func (e *ReconcileEngine) recordKept(res *guard.Result) {
	e.session.RecordStash(res.StashRef, res.StashMessage, res.Description, "left stashed; restore with "+res.Recovery)
}

// repoPath turns a configured file path into one relative to the repository root
func (e *ReconcileEngine) repoPath(p string) string {
	root := e.deps.GitRepo.Root()
	if root == "" || !filepath.IsAbs(p) {
		return filepath.ToSlash(p)
	}
	if rel, err := filepath.Rel(root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}
