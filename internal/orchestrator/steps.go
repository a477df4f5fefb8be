package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Step is one entry of a scenario script
type Step struct {
	Name   string
	Action domain.ActionType
	Target string
	// Recovery is the manual command that finishes the step when it fails
	Recovery string
	// Retryable steps are hosting-platform calls that are safe to repeat
	Retryable bool
	// Execute performs the mutation and returns the identifier it touched
	Execute func(ctx context.Context) (string, error)
}

// StepRunner executes scripted steps strictly in order, journaling each one
type StepRunner struct {
	session    *domain.Session
	journal    repository.JournalRepository
	printer    *Printer
	logger     *zap.Logger
	dryRun     bool
	timeout    time.Duration
	retryCount uint64
	retryDelay time.Duration
	mutations  int
}

// NewStepRunner creates a step runner bound to one session
func NewStepRunner(
	session *domain.Session,
	journal repository.JournalRepository,
	printer *Printer,
	logger *zap.Logger,
	dryRun bool,
	timeout time.Duration,
) *StepRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StepRunner{
		session:    session,
		journal:    journal,
		printer:    printer,
		logger:     logger,
		dryRun:     dryRun,
		timeout:    timeout,
		retryCount: DefaultRetryCount,
		retryDelay: DefaultRetryDelay,
	}
}

// Mutations returns how many steps actually changed something
func (r *StepRunner) Mutations() int {
	return r.mutations
}

// Run executes steps until one fails. Cancellation is only observed between steps.
func (r *StepRunner) Run(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w before %s: %v", ErrCancelled, step.Name, err)
		}
		if r.dryRun {
			i := r.session.StartStep(step.Action, step.Target)
			r.session.FinishStep(i, domain.StepStatusDryRun, "")
			r.printer.DryRun(step.Action, step.Target)
			continue
		}
		if err := r.execute(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *StepRunner) execute(ctx context.Context, step Step) error {
	i := r.session.StartStep(step.Action, step.Target)
	r.save(ctx)
	r.logger.Info("executing step", zap.String("step", step.Name), zap.String("target", step.Target))
	// in-flight mutations are never interrupted
	stepCtx := context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, r.timeout)
		defer cancel()
	}
	touched, err := r.attempt(stepCtx, step)
	if err != nil {
		r.session.FailStep(i, err)
		r.save(ctx)
		r.logger.Error("step failed", zap.String("step", step.Name), zap.Error(err))
		return &ActionError{
			Step:     step.Name,
			Action:   step.Action,
			Target:   step.Target,
			Recovery: recoveryFor(step, err),
			Err:      err,
		}
	}
	if touched == "" {
		touched = step.Target
	}
	r.session.FinishStep(i, domain.StepStatusCompleted, touched)
	r.mutations++
	r.save(ctx)
	r.logger.Info("step completed", zap.String("step", step.Name), zap.String("touched", touched))
	r.printer.Touched(step.Action, touched)
	return nil
}

// attempt runs the step once, or with exponential backoff when it is retryable
func (r *StepRunner) attempt(ctx context.Context, step Step) (string, error) {
	if !step.Retryable {
		return step.Execute(ctx)
	}
	var touched string
	strategy := retry.WithMaxRetries(r.retryCount, retry.NewExponential(r.retryDelay))
	err := retry.Do(ctx, strategy, func(retryCtx context.Context) error {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}
		out, execErr := step.Execute(retryCtx)
		if execErr != nil {
			if errors.Is(execErr, ErrUnsafeTag) {
				return execErr
			}
			return retry.RetryableError(execErr)
		}
		touched = out
		return nil
	})
	return touched, err
}

// save persists the session; journaling is best effort
func (r *StepRunner) save(ctx context.Context) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Save(context.WithoutCancel(ctx), r.session); err != nil {
		r.logger.Warn("failed to save journal", zap.Error(err))
	}
}

// recoverable carries a recovery command decided while the step ran
type recoverable struct {
	err     error
	command string
}

func (e *recoverable) Error() string { return e.err.Error() }

func (e *recoverable) Unwrap() error { return e.err }

func withRecovery(err error, command string) error {
	return &recoverable{err: err, command: command}
}

// recoveryFor prefers the command found while the step ran over the static one
func recoveryFor(step Step, err error) string {
	var r *recoverable
	if errors.As(err, &r) && r.command != "" {
		return r.command
	}
	return step.Recovery
}
