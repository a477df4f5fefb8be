package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRunner(journal repository.JournalRepository, dryRun bool) (*StepRunner, *domain.Session, *bytes.Buffer) {
	session := domain.NewSession("test-session")
	out := &bytes.Buffer{}
	runner := NewStepRunner(session, journal, NewPrinter(out, true), nil, dryRun, 0)
	return runner, session, out
}

func countingStep(action domain.ActionType, retryable bool, failures int, calls *int) Step {
	return Step{
		Name:      string(action),
		Action:    action,
		Target:    "target",
		Recovery:  "do it by hand",
		Retryable: retryable,
		Execute: func(context.Context) (string, error) {
			*calls++
			if *calls <= failures {
				return "", errors.New("transient")
			}
			return "touched", nil
		},
	}
}

func TestStepRunner_Run(t *testing.T) {
	t.Run("Should run steps in order and journal each transition", func(t *testing.T) {
		journal := new(mockJournal)
		journal.On("Save", mock.Anything, mock.Anything).Return(nil)
		runner, session, out := newTestRunner(journal, false)
		var a, b int

		err := runner.Run(context.Background(), []Step{
			countingStep(domain.ActionDeleteLocalTag, false, 0, &a),
			countingStep(domain.ActionPushTag, false, 0, &b),
		})

		require.NoError(t, err)
		assert.Equal(t, 2, runner.Mutations())
		require.Len(t, session.Steps, 2)
		assert.Equal(t, domain.ActionDeleteLocalTag, session.Steps[0].Action)
		assert.Equal(t, "touched", session.Steps[1].Target)
		assert.Contains(t, out.String(), "push_tag=touched")
		journal.AssertNumberOfCalls(t, "Save", 4)
	})

	t.Run("Should retry hosting-platform steps", func(t *testing.T) {
		journal := new(mockJournal)
		journal.On("Save", mock.Anything, mock.Anything).Return(nil)
		runner, _, _ := newTestRunner(journal, false)
		calls := 0

		err := runner.Run(context.Background(), []Step{countingStep(domain.ActionCreateRelease, true, 1, &calls)})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Should never retry other steps", func(t *testing.T) {
		journal := new(mockJournal)
		journal.On("Save", mock.Anything, mock.Anything).Return(nil)
		runner, session, _ := newTestRunner(journal, false)
		calls := 0

		err := runner.Run(context.Background(), []Step{countingStep(domain.ActionDeleteRemoteTag, false, 1, &calls)})

		var actionErr *ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "do it by hand", actionErr.Recovery)
		assert.Equal(t, domain.ActionDeleteRemoteTag, actionErr.Action)
		assert.Equal(t, domain.StepStatusFailed, session.Steps[0].Status)
		assert.Equal(t, "transient", session.Steps[0].Error)
	})

	t.Run("Should prefer a recovery found while the step ran", func(t *testing.T) {
		runner, _, _ := newTestRunner(nil, false)
		step := Step{
			Name:     "push tag",
			Action:   domain.ActionPushTag,
			Recovery: "git push origin refs/tags/v1.0.0",
			Execute: func(context.Context) (string, error) {
				return "", withRecovery(errors.New("hard failure"), "git stash pop stash@{0}")
			},
		}

		err := runner.Run(context.Background(), []Step{step})

		assert.Equal(t, "git stash pop stash@{0}", Recovery(err))
	})

	t.Run("Should not start a step after cancellation", func(t *testing.T) {
		runner, session, _ := newTestRunner(nil, false)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0

		err := runner.Run(ctx, []Step{countingStep(domain.ActionPushTag, false, 0, &calls)})

		assert.ErrorIs(t, err, ErrCancelled)
		assert.Zero(t, calls)
		assert.Empty(t, session.Steps)
	})

	t.Run("Should keep a running mutation alive when the caller cancels", func(t *testing.T) {
		runner, _, _ := newTestRunner(nil, false)
		ctx, cancel := context.WithCancel(context.Background())
		var seen error
		step := Step{
			Name:   "push commits",
			Action: domain.ActionPushCommits,
			Execute: func(stepCtx context.Context) (string, error) {
				cancel()
				seen = stepCtx.Err()
				return "origin/main", nil
			},
		}

		err := runner.Run(ctx, []Step{step})

		require.NoError(t, err)
		assert.NoError(t, seen)
	})

	t.Run("Should record dry-run steps without executing them", func(t *testing.T) {
		runner, session, out := newTestRunner(nil, true)
		calls := 0

		err := runner.Run(context.Background(), []Step{countingStep(domain.ActionCreateTag, false, 0, &calls)})

		require.NoError(t, err)
		assert.Zero(t, calls)
		assert.Zero(t, runner.Mutations())
		assert.Equal(t, domain.StepStatusDryRun, session.Steps[0].Status)
		assert.Contains(t, out.String(), "[dry-run] create_tag target")
	})
}
