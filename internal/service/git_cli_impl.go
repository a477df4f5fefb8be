package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/compozy/releasesync/internal/domain"
	"go.uber.org/zap"
)

// gitCLIService is the implementation of the GitCLIService interface.
type gitCLIService struct {
	binary          string
	dir             string
	queryTimeout    time.Duration
	mutationTimeout time.Duration
	logger          *zap.Logger
}

// GitCLIOption customizes the git runner.
type GitCLIOption func(*gitCLIService)

// WithQueryTimeout overrides DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) GitCLIOption {
	return func(s *gitCLIService) { s.queryTimeout = d }
}

// WithMutationTimeout bounds mutating commands; zero means no timeout.
func WithMutationTimeout(d time.Duration) GitCLIOption {
	return func(s *gitCLIService) { s.mutationTimeout = d }
}

// WithBinary replaces the git executable, mostly for tests.
func WithBinary(path string) GitCLIOption {
	return func(s *gitCLIService) { s.binary = path }
}

// NewGitCLIService creates a GitCLIService rooted at dir.
func NewGitCLIService(dir string, logger *zap.Logger, opts ...GitCLIOption) GitCLIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &gitCLIService{
		binary:          "git",
		dir:             dir,
		queryTimeout:    DefaultQueryTimeout,
		mutationTimeout: DefaultMutationTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *gitCLIService) Dir() string {
	return s.dir
}

// Query runs a read-only command with the query timeout.
func (s *gitCLIService) Query(ctx context.Context, args ...string) (*domain.CommandResult, error) {
	return s.execute(ctx, s.queryTimeout, args)
}

// Run runs a command with the mutation timeout.
func (s *gitCLIService) Run(ctx context.Context, args ...string) (*domain.CommandResult, error) {
	return s.execute(ctx, s.mutationTimeout, args)
}

// execute runs git with captured output. Exit errors become ExitCode.
func (s *gitCLIService) execute(ctx context.Context, timeout time.Duration, args []string) (*domain.CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = s.dir
	// stable English output so CONFLICT detection works; never prompt for credentials
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	started := time.Now()
	runErr := cmd.Run()
	result := &domain.CommandResult{
		Args:     append([]string{}, args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			s.logger.Debug("git failed to start", zap.Strings("args", args), zap.Error(runErr))
			return nil, fmt.Errorf("failed to run git %v: %w", args, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
		if ctx.Err() == context.DeadlineExceeded {
			result.Stderr += fmt.Sprintf("\ncommand timed out after %v", timeout)
		}
	}
	s.logger.Debug("git",
		zap.Strings("args", args),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
