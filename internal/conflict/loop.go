package conflict

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/guard"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// State is a node of the resolution state machine.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingResolution State = "awaiting_resolution"
	StateResolved           State = "resolved"
	StateContinuing         State = "continuing"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)

var (
	// ErrAborted is returned after the operator aborted and the operation was unwound.
	ErrAborted = errors.New("operation aborted")
	// ErrIterationCap is returned when conflicts kept appearing past the operation's commit range.
	ErrIterationCap = errors.New("conflict resolution exceeded the operation range")
	// ErrContinueFailed is returned when continuing failed without reporting conflicts.
	ErrContinueFailed = errors.New("failed to continue operation")
)

// Worktree is the working-copy surface the loop drives.
type Worktree interface {
	ConflictedFiles(ctx context.Context) ([]string, error)
	IsBinary(ctx context.Context, path string) (bool, error)
	Checkout(ctx context.Context, side domain.Resolution, path string) (*domain.CommandResult, error)
	Add(ctx context.Context, paths ...string) (*domain.CommandResult, error)
	Continue(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)
	Skip(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)
	Abort(ctx context.Context, kind domain.OperationKind) (*domain.CommandResult, error)
}

// OperationInspector reports the in-progress operation and its remaining range.
type OperationInspector interface {
	Detect() (domain.OperationKind, error)
	RangeSize(kind domain.OperationKind) (int, error)
}

// Resolver asks for a decision on one conflicting path.
type Resolver interface {
	ResolvePath(ctx context.Context, kind domain.OperationKind, path string) (domain.Resolution, error)
}

// GuardRunner runs a mutation inside the stash envelope.
type GuardRunner interface {
	Guarded(ctx context.Context, op guard.Operation, patterns domain.IgnoreSet, description string) (*guard.Result, error)
}

// Dependencies wires the loop.
type Dependencies struct {
	Worktree  Worktree
	Inspector OperationInspector
	Resolver  Resolver
	Guard     GuardRunner
	Patterns  domain.IgnoreSet
	// FS and Root locate files for the conflict-marker check after a manual edit.
	FS     afero.Fs
	Root   string
	Logger *zap.Logger
	Out    io.Writer
}

// Outcome summarizes one run of the loop.
type Outcome struct {
	Kind         domain.OperationKind
	Final        State
	History      []State
	Visits       int
	Cap          int
	AutoResolved []string
	// Kept lists guard stashes that could not be restored during the run.
	Kept []*guard.Result
}

// Loop drives an in-progress rebase, merge or cherry-pick to completion.
type Loop struct {
	deps    Dependencies
	outcome *Outcome
}

// NewLoop creates a Loop.
func NewLoop(deps Dependencies) *Loop {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	return &Loop{deps: deps}
}

func (l *Loop) enter(s State) {
	l.outcome.History = append(l.outcome.History, s)
	l.outcome.Final = s
	l.deps.Logger.Debug("conflict loop state", zap.String("state", string(s)), zap.Int("visit", l.outcome.Visits))
}

// Run resolves the detected operation. It returns a Done outcome immediately
// when nothing is in progress.
func (l *Loop) Run(ctx context.Context) (*Outcome, error) {
	l.outcome = &Outcome{}
	l.enter(StateIdle)
	kind, err := l.deps.Inspector.Detect()
	if err != nil {
		return l.outcome, fmt.Errorf("failed to detect operation: %w", err)
	}
	l.outcome.Kind = kind
	if kind == domain.OperationNone {
		l.enter(StateDone)
		return l.outcome, nil
	}
	limit, err := l.deps.Inspector.RangeSize(kind)
	if err != nil {
		return l.outcome, fmt.Errorf("failed to size %s: %w", kind.GitVerb(), err)
	}
	l.outcome.Cap = limit
	fmt.Fprintf(l.deps.Out, "A %s is in progress (%d step(s) remaining).\n", kind.GitVerb(), limit)
	for {
		if err := ctx.Err(); err != nil {
			return l.outcome, err
		}
		l.outcome.Visits++
		if l.outcome.Visits > limit {
			return l.outcome, fmt.Errorf("%w: %d visits for %d step(s)", ErrIterationCap, l.outcome.Visits-1, limit)
		}
		l.enter(StateAwaitingResolution)
		skipped, err := l.resolveAll(ctx, kind)
		if err != nil {
			return l.outcome, err
		}
		l.enter(StateResolved)
		l.enter(StateContinuing)
		verb, step := "continue", l.deps.Worktree.Continue
		if skipped {
			verb, step = "skip", l.deps.Worktree.Skip
		}
		res, err := l.guarded(ctx, kind, verb, step)
		if err != nil {
			return l.outcome, err
		}
		done, err := l.afterContinue(ctx, kind, res.Command)
		if err != nil {
			return l.outcome, err
		}
		if done {
			l.enter(StateDone)
			return l.outcome, nil
		}
	}
}

// resolveAll settles every conflicting path. It reports true when the operator
// chose to skip the current commit.
func (l *Loop) resolveAll(ctx context.Context, kind domain.OperationKind) (bool, error) {
	files, err := l.deps.Worktree.ConflictedFiles(ctx)
	if err != nil {
		return false, err
	}
	for _, path := range files {
		auto, err := l.autoResolvable(ctx, path)
		if err != nil {
			return false, err
		}
		if auto {
			if err := l.take(ctx, domain.ResolveKeepTheirs, path); err != nil {
				return false, err
			}
			l.outcome.AutoResolved = append(l.outcome.AutoResolved, path)
			fmt.Fprintf(l.deps.Out, "  %s: kept incoming version (regenerable)\n", path)
			continue
		}
		skip, err := l.resolveOne(ctx, kind, path)
		if err != nil || skip {
			return skip, err
		}
	}
	return false, nil
}

func (l *Loop) autoResolvable(ctx context.Context, path string) (bool, error) {
	if l.deps.Patterns.Match(path) {
		return true, nil
	}
	return l.deps.Worktree.IsBinary(ctx, path)
}

func (l *Loop) resolveOne(ctx context.Context, kind domain.OperationKind, path string) (bool, error) {
	for {
		choice, err := l.deps.Resolver.ResolvePath(ctx, kind, path)
		if err != nil {
			return false, err
		}
		switch choice {
		case domain.ResolveKeepOurs, domain.ResolveKeepTheirs:
			return false, l.take(ctx, choice, path)
		case domain.ResolveManualEdit:
			marked, err := l.hasMarkers(path)
			if err != nil {
				return false, err
			}
			if marked {
				fmt.Fprintf(l.deps.Out, "  %s still contains conflict markers\n", path)
				continue
			}
			return false, l.add(ctx, path)
		case domain.ResolveSkip:
			if kind == domain.OperationMerge {
				fmt.Fprintln(l.deps.Out, "  a merge cannot skip a commit; choose another resolution")
				continue
			}
			return true, nil
		case domain.ResolveAbort:
			return false, l.abort(ctx, kind)
		default:
			return false, fmt.Errorf("unknown resolution %q", choice)
		}
	}
}

func (l *Loop) take(ctx context.Context, side domain.Resolution, path string) error {
	res, err := l.deps.Worktree.Checkout(ctx, side, path)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to take %s for %s: %s", side, path, res.Output())
	}
	if strings.HasPrefix(res.CommandLine(), "git rm") {
		return nil
	}
	return l.add(ctx, path)
}

func (l *Loop) add(ctx context.Context, path string) error {
	res, err := l.deps.Worktree.Add(ctx, path)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to stage %s: %s", path, res.Output())
	}
	return nil
}

func (l *Loop) abort(ctx context.Context, kind domain.OperationKind) error {
	res, err := l.deps.Worktree.Abort(ctx, kind)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("failed to abort %s: %s", kind.GitVerb(), res.Output())
	}
	l.enter(StateAborted)
	fmt.Fprintf(l.deps.Out, "Aborted %s; the branch is back where it started.\n", kind.GitVerb())
	return ErrAborted
}

func (l *Loop) guarded(ctx context.Context, kind domain.OperationKind, verb string,
	fn func(context.Context, domain.OperationKind) (*domain.CommandResult, error)) (*guard.Result, error) {
	res, err := l.deps.Guard.Guarded(ctx, func(ctx context.Context) (*domain.CommandResult, error) {
		return fn(ctx, kind)
	}, l.deps.Patterns, verb+" "+kind.GitVerb())
	if res != nil && res.LeftStashed() {
		l.outcome.Kept = append(l.outcome.Kept, res)
	}
	return res, err
}

// afterContinue decides whether the operation finished, needs another round, or failed.
func (l *Loop) afterContinue(ctx context.Context, kind domain.OperationKind, cmd *domain.CommandResult) (bool, error) {
	class := cmd.Class()
	if class == domain.ExitHard {
		return false, fmt.Errorf("%w: %s: %s", ErrContinueFailed, cmd.CommandLine(), cmd.Output())
	}
	still, err := l.deps.Inspector.Detect()
	if err != nil {
		return false, err
	}
	if still == domain.OperationNone {
		return true, nil
	}
	if class == domain.ExitSuccess || class == domain.ExitConflict {
		return false, nil
	}
	files, err := l.deps.Worktree.ConflictedFiles(ctx)
	if err != nil {
		return false, err
	}
	if len(files) > 0 {
		return false, nil
	}
	// the resolution emptied the commit; git wants an explicit skip
	if kind != domain.OperationMerge && strings.Contains(cmd.Output(), "nothing to commit") {
		fmt.Fprintln(l.deps.Out, "  commit became empty after resolution; skipping it")
		res, err := l.guarded(ctx, kind, "skip", l.deps.Worktree.Skip)
		if err != nil {
			return false, err
		}
		return l.afterContinue(ctx, kind, res.Command)
	}
	return false, fmt.Errorf("%w: %s", ErrContinueFailed, cmd.Output())
}

func (l *Loop) hasMarkers(path string) (bool, error) {
	data, err := afero.ReadFile(l.deps.FS, filepath.Join(l.deps.Root, path))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "<<<<<<< ") || strings.HasPrefix(line, ">>>>>>> ") || line == "=======" {
			return true, nil
		}
	}
	return false, scanner.Err()
}
