package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/compozy/releasesync/internal/config"
	"github.com/compozy/releasesync/internal/conflict"
	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/guard"
	"github.com/compozy/releasesync/internal/logging"
	"github.com/compozy/releasesync/internal/orchestrator"
	"github.com/compozy/releasesync/internal/repository"
	"github.com/compozy/releasesync/internal/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// container holds all the dependencies for the application.

type container struct {
	cfg    *config.Config
	logger *zap.Logger

	fsRepo      repository.FileSystemRepository
	gitRepo     repository.GitRepository
	workingCopy repository.WorkingCopyRepository
	ghRepo      repository.GithubRepository
	registry    repository.RegistryRepository
	manifest    repository.ManifestRepository
	changelog   repository.ChangelogRepository
	operations  repository.OperationStateRepository
	journal     repository.JournalRepository
	guard       *guard.Guard
	printer     *orchestrator.Printer
}

// newContainer loads configuration, applies flag overrides and wires every collaborator.
func newContainer(ctx context.Context, out io.Writer) (*container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	applyGlobals(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := logging.NewFactory().CreateLogger(logging.Level(cfg.LogLevel), logging.Format(cfg.LogFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	gitRepo, err := repository.NewGitRepository(".")
	if err != nil {
		return nil, err
	}
	root := gitRepo.Root()
	fsRepo := repository.FileSystemRepository(afero.NewOsFs())
	gitCLI := service.NewGitCLIService(root, logger.Named("git"),
		service.WithQueryTimeout(cfg.QueryTimeout),
		service.WithMutationTimeout(cfg.MutationTimeout),
	)
	workingCopy := repository.NewWorkingCopyRepository(gitCLI)
	// a linked worktree keeps its operation markers outside <root>/.git
	gitDir, err := workingCopy.GitDir(ctx)
	if err != nil {
		return nil, err
	}

	// GitHub repository is optional - reads degrade to "nothing found" without a token
	var ghRepo repository.GithubRepository
	if cfg.GithubToken != "" && cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		ghRepo, err = repository.NewGithubRepository(cfg.GithubToken, cfg.GithubOwner, cfg.GithubRepo)
		if err != nil {
			return nil, err
		}
	} else {
		ghRepo = repository.NewGithubNoopRepository(cfg.GithubOwner, cfg.GithubRepo)
	}

	printer := orchestrator.NewPrinter(out, globals.ciOutput)
	return &container{
		cfg:         cfg,
		logger:      logger,
		fsRepo:      fsRepo,
		gitRepo:     gitRepo,
		workingCopy: workingCopy,
		ghRepo:      ghRepo,
		registry:    repository.NewRegistryRepository(cfg.RegistryURL, &http.Client{Timeout: cfg.QueryTimeout}),
		manifest:    repository.NewManifestRepository(fsRepo, inRoot(root, cfg.ManifestPath)),
		changelog:   repository.NewChangelogRepository(fsRepo, inRoot(root, cfg.ChangelogPath)),
		operations:  repository.NewOperationStateRepository(fsRepo, gitDir),
		journal:     repository.NewJSONJournalRepository(fsRepo, repository.JournalDir(gitDir)),
		guard:       guard.New(workingCopy, logger.Named("guard"), guard.WithOutput(out)),
		printer:     printer,
	}, nil
}

func applyGlobals(cfg *config.Config) {
	if globals.branch != "" {
		cfg.Branch = globals.branch
	}
	if globals.remote != "" {
		cfg.Remote = globals.remote
	}
	if len(globals.ignorePatterns) > 0 {
		cfg.IgnorePatterns = globals.ignorePatterns
	}
	if globals.logLevel != "" {
		cfg.LogLevel = globals.logLevel
	}
	if globals.logFormat != "" {
		cfg.LogFormat = globals.logFormat
	}
}

func inRoot(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// engine builds a reconcile engine for one command invocation.
func (c *container) engine(opts engineOptions, operator orchestrator.Operator, resolver conflict.Resolver) *orchestrator.ReconcileEngine {
	return orchestrator.NewReconcileEngine(orchestrator.Config{
		Remote:          c.cfg.Remote,
		Branch:          c.cfg.Branch,
		Workflow:        c.cfg.PublishWorkflow,
		PackageName:     c.cfg.PackageName,
		Patterns:        domain.IgnoreSet(c.cfg.IgnorePatterns),
		Bump:            opts.bump,
		ReleaseDraft:    c.cfg.ReleaseDraft,
		DryRun:          opts.dryRun,
		Fetch:           c.cfg.Fetch,
		MaxPasses:       c.cfg.MaxPasses,
		ProbeTimeout:    c.cfg.ProbeTimeout,
		MutationTimeout: c.cfg.MutationTimeout,
	}, orchestrator.Dependencies{
		GitRepo:     c.gitRepo,
		WorkingCopy: c.workingCopy,
		Github:      c.ghRepo,
		Registry:    c.registry,
		Manifest:    c.manifest,
		Changelog:   c.changelog,
		Operations:  c.operations,
		Journal:     c.journal,
		Guard:       c.guard,
		Operator:    operator,
		Resolver:    resolver,
		FS:          c.fsRepo,
		Printer:     c.printer,
		Logger:      c.logger,
	})
}

// InitCommands initializes all commands. Dependencies are wired per invocation
// once flags are parsed.
func InitCommands() error {
	rootCmd.AddCommand(
		newReconcileCmd(),
		newResolveCmd(),
		newStashesCmd(),
		newVersionCmd(),
	)
	return nil
}
