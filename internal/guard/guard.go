package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StashPrefix marks every stash the guard creates.
const StashPrefix = "releasesync-guard"

const listedFiles = 5

// ErrStashFailed is returned when the protective stash could not be created.
// The operation did not run.
var ErrStashFailed = errors.New("failed to stash generated files")

// Operation is one git mutation run under the guard.
type Operation func(ctx context.Context) (*domain.CommandResult, error)

// Worktree is the slice of the working copy the guard needs.
type Worktree interface {
	Status(ctx context.Context) ([]domain.FileStatus, error)
	StashPush(ctx context.Context, message string, includeUntracked bool, pathspecs []string) (*domain.CommandResult, error)
	StashList(ctx context.Context) ([]domain.StashEntry, error)
	StashPop(ctx context.Context, ref string) (*domain.CommandResult, error)
}

// Result describes what the guard did around one operation.
type Result struct {
	Command      *domain.CommandResult
	Description  string
	Stashed      bool
	Restored     bool
	StashRef     string
	StashMessage string
	Files        []string
	// Recovery is the command that restores the files when they were left stashed.
	Recovery string
}

// LeftStashed reports a stash that still holds the operator's files.
func (r *Result) LeftStashed() bool {
	return r != nil && r.Stashed && !r.Restored
}

// Guard stashes files matching an ignore set around a mutation and restores
// them afterwards, unless the mutation left the repository in a state where
// popping could lose work.
type Guard struct {
	wc     Worktree
	logger *zap.Logger
	out    io.Writer
	nonce  func() string
}

// Option configures a Guard.
type Option func(*Guard)

// WithOutput sets where operator-facing messages go.
func WithOutput(w io.Writer) Option {
	return func(g *Guard) { g.out = w }
}

// WithNonce replaces the stash message nonce generator.
func WithNonce(fn func() string) Option {
	return func(g *Guard) { g.nonce = fn }
}

// New creates a Guard over wc.
func New(wc Worktree, logger *zap.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		wc:     wc,
		logger: logger,
		out:    io.Discard,
		nonce:  func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Guarded runs op with every dirty path matching patterns stashed away. The
// operation's result and error are returned unchanged in Result.Command and the
// error; the guard only adds its own error when it could not stash at all.
func (g *Guard) Guarded(ctx context.Context, op Operation, patterns domain.IgnoreSet, description string) (*Result, error) {
	result := &Result{Description: description}
	entries, err := g.wc.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStashFailed, err)
	}
	var (
		matched   []string
		untracked bool
	)
	for _, e := range entries {
		if !patterns.Match(e.Path) {
			continue
		}
		matched = append(matched, e.Path)
		untracked = untracked || e.Untracked()
	}
	if len(matched) == 0 {
		result.Command, err = op(ctx)
		return result, err
	}
	result.Files = matched
	result.StashMessage = stashMessage(description, g.nonce(), matched)
	// git refuses the whole stash when one pathspec matches nothing, so only
	// paths it just reported are named
	push, err := g.wc.StashPush(ctx, result.StashMessage, untracked, matched)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStashFailed, err)
	}
	if !push.Succeeded() {
		return nil, fmt.Errorf("%w: %s", ErrStashFailed, push.Output())
	}
	if strings.Contains(push.Output(), "No local changes to save") {
		result.Command, err = op(ctx)
		return result, err
	}
	ref, err := g.resolve(ctx, result.StashMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStashFailed, err)
	}
	result.Stashed = true
	result.StashRef = ref
	g.logger.Debug("stashed generated files",
		zap.String("ref", ref), zap.Strings("files", matched), zap.String("operation", description))

	cmd, opErr := op(ctx)
	result.Command = cmd
	// a command that never started changed nothing
	if opErr == nil && cmd.Class() == domain.ExitHard {
		g.keep(result, fmt.Sprintf("%s failed hard (exit %d)", description, cmd.ExitCode))
		return result, nil
	}
	g.restore(ctx, result)
	return result, opErr
}

// restore pops the stash, re-resolving its ref since the operation may have shifted indices.
func (g *Guard) restore(ctx context.Context, result *Result) {
	ref, err := g.resolve(ctx, result.StashMessage)
	if err != nil {
		g.keep(result, err.Error())
		return
	}
	result.StashRef = ref
	pop, err := g.wc.StashPop(ctx, ref)
	if err != nil || !pop.Succeeded() {
		reason := "stash pop failed"
		if err != nil {
			reason = err.Error()
		} else if pop.HasConflict() {
			reason = "stash pop conflicted"
		}
		g.keep(result, reason)
		return
	}
	result.Restored = true
	g.logger.Debug("restored generated files", zap.String("ref", ref))
}

func (g *Guard) keep(result *Result, reason string) {
	result.Recovery = "git stash pop " + result.StashRef
	fmt.Fprintf(g.out, "Generated files were left stashed (%s).\nRestore with: %s\n", reason, result.Recovery)
	g.logger.Warn("guard stash kept",
		zap.String("ref", result.StashRef), zap.String("reason", reason), zap.String("operation", result.Description))
}

func (g *Guard) resolve(ctx context.Context, message string) (string, error) {
	entries, err := g.wc.StashList(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.Contains(e.Subject, message) {
			return e.Ref, nil
		}
	}
	return "", fmt.Errorf("stash %q not found", message)
}

// FindOrphans lists guard stashes still present in the repository.
func (g *Guard) FindOrphans(ctx context.Context) ([]domain.StashEntry, error) {
	entries, err := g.wc.StashList(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []domain.StashEntry
	for _, e := range entries {
		if strings.Contains(e.Subject, StashPrefix) {
			orphans = append(orphans, e)
		}
	}
	return orphans, nil
}

func stashMessage(description, nonce string, files []string) string {
	shown := files
	if len(shown) > listedFiles {
		shown = shown[:listedFiles]
	}
	msg := fmt.Sprintf("%s [%s #%s]: %s", StashPrefix, description, nonce, strings.Join(shown, ", "))
	if extra := len(files) - len(shown); extra > 0 {
		msg += fmt.Sprintf(" (+%d more)", extra)
	}
	return msg
}
