package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/viper"
)

type Config struct {
	GithubToken     string        `mapstructure:"github_token"`
	GithubOwner     string        `mapstructure:"github_owner"`
	GithubRepo      string        `mapstructure:"github_repo"`
	Remote          string        `mapstructure:"remote"`
	Branch          string        `mapstructure:"branch"`
	ManifestPath    string        `mapstructure:"manifest_path"`
	ChangelogPath   string        `mapstructure:"changelog_path"`
	PackageName     string        `mapstructure:"package_name"`
	IgnorePatterns  []string      `mapstructure:"ignore_patterns"`
	RegistryURL     string        `mapstructure:"registry_url"`
	PublishWorkflow string        `mapstructure:"publish_workflow"`
	ReleaseDraft    bool          `mapstructure:"release_draft"`
	Fetch           bool          `mapstructure:"fetch"`
	MaxPasses       int           `mapstructure:"max_passes"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	MutationTimeout time.Duration `mapstructure:"mutation_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Remote:          "origin",
		Branch:          "main",
		ManifestPath:    "pyproject.toml",
		ChangelogPath:   "CHANGELOG.md",
		IgnorePatterns:  []string{"*.po", "*.mo"},
		RegistryURL:     "https://pypi.org/pypi",
		PublishWorkflow: "publish.yml",
		ReleaseDraft:    true,
		Fetch:           true,
		MaxPasses:       6,
		QueryTimeout:    30 * time.Second,
		ProbeTimeout:    60 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

var (
	classicPAT     = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	prefixedPAT    = regexp.MustCompile(`^ghp_[a-zA-Z0-9]{36}$`)
	fineGrainedPAT = regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{82}$`)
	appToken       = regexp.MustCompile(`^ghs_[a-zA-Z0-9]{36}$`)
	oauthToken     = regexp.MustCompile(`^gho_[a-zA-Z0-9]{36}$`)
	validName      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
)

// Validate validates the configuration
func (c *Config) Validate() error {
	// GitHub token is optional - only validate if provided
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			return fmt.Errorf("invalid github_token: %w", err)
		}
	}
	// owner/repo may stay empty outside a hosted checkout; a half-set slug is a mistake
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			return fmt.Errorf("invalid github configuration: %w", err)
		}
	}
	if c.Remote == "" {
		return fmt.Errorf("remote cannot be empty")
	}
	if c.Branch == "" {
		return fmt.Errorf("branch cannot be empty")
	}
	for key, p := range map[string]string{"manifest_path": c.ManifestPath, "changelog_path": c.ChangelogPath} {
		if p == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
		if strings.Contains(p, "..") {
			return fmt.Errorf("%s contains invalid path traversal", key)
		}
	}
	for _, pattern := range c.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	if c.RegistryURL != "" {
		u, err := url.Parse(c.RegistryURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid registry_url: %s", c.RegistryURL)
		}
	}
	if c.MaxPasses < 1 {
		return fmt.Errorf("max_passes must be at least 1, got %d", c.MaxPasses)
	}
	if c.QueryTimeout < 0 || c.ProbeTimeout < 0 || c.MutationTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

// ValidateForGitHubOperations validates that GitHub token is present for operations that require it
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub operations")
	}
	if c.GithubOwner == "" || c.GithubRepo == "" {
		return fmt.Errorf("github_owner and github_repo are required for GitHub operations")
	}
	return c.Validate()
}

// ValidateGitHubToken validates GitHub token format (exported for reuse)
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) < 40 {
		return fmt.Errorf("token too short: expected at least 40 characters")
	}
	if !classicPAT.MatchString(token) &&
		!prefixedPAT.MatchString(token) &&
		!fineGrainedPAT.MatchString(token) &&
		!appToken.MatchString(token) &&
		!oauthToken.MatchString(token) {
		return fmt.Errorf("invalid token format")
	}
	return nil
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names (exported for reuse)
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	if !validName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

var envBindings = map[string][]string{
	"github_token":     {"GITHUB_TOKEN", "GH_TOKEN", "RELEASESYNC_GITHUB_TOKEN"},
	"github_owner":     {"GITHUB_OWNER", "RELEASESYNC_GITHUB_OWNER"},
	"github_repo":      {"GITHUB_REPO", "RELEASESYNC_GITHUB_REPO"},
	"registry_url":     {"RELEASESYNC_REGISTRY_URL"},
	"publish_workflow": {"RELEASESYNC_PUBLISH_WORKFLOW"},
	"log_level":        {"RELEASESYNC_LOG_LEVEL"},
	"log_format":       {"RELEASESYNC_LOG_FORMAT"},
}

// LoadConfig reads .releasesync.yaml from the working directory, then the environment.
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, dir string) (*Config, error) {
	v.SetConfigName(".releasesync")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("RELEASESYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// BindEnv checks the variables in order
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	defaults := DefaultConfig()
	v.SetDefault("remote", defaults.Remote)
	v.SetDefault("branch", defaults.Branch)
	v.SetDefault("manifest_path", defaults.ManifestPath)
	v.SetDefault("changelog_path", defaults.ChangelogPath)
	v.SetDefault("ignore_patterns", defaults.IgnorePatterns)
	v.SetDefault("registry_url", defaults.RegistryURL)
	v.SetDefault("publish_workflow", defaults.PublishWorkflow)
	v.SetDefault("release_draft", defaults.ReleaseDraft)
	v.SetDefault("fetch", defaults.Fetch)
	v.SetDefault("max_passes", defaults.MaxPasses)
	v.SetDefault("query_timeout", defaults.QueryTimeout)
	v.SetDefault("probe_timeout", defaults.ProbeTimeout)
	v.SetDefault("mutation_timeout", defaults.MutationTimeout)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := populateRepositoryDefaults(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// populateRepositoryDefaults fills owner/repo from the Actions environment,
// then from the origin remote of the enclosing git repository.
func populateRepositoryDefaults(cfg *Config) error {
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		owner, repo, ok := strings.Cut(slug, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("invalid GITHUB_REPOSITORY %q: expected owner/repo", slug)
		}
		fill(cfg, owner, repo)
		return nil
	}
	if owner, repo := os.Getenv("GITHUB_REPOSITORY_OWNER"), os.Getenv("GITHUB_REPOSITORY_NAME"); owner != "" && repo != "" {
		fill(cfg, owner, repo)
		return nil
	}
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// not a checkout; hosting stays unconfigured
		return nil
	}
	remoteName := cfg.Remote
	if remoteName == "" {
		remoteName = "origin"
	}
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return nil
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil
	}
	owner, name, err := parseGitRemoteURL(urls[0])
	if err != nil {
		return fmt.Errorf("failed to discover repository from %s: %w", remoteName, err)
	}
	fill(cfg, owner, name)
	return nil
}

func fill(cfg *Config, owner, repo string) {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = owner
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = repo
	}
}

// parseGitRemoteURL extracts owner/repo from https, ssh, scp-style and file remotes.
func parseGitRemoteURL(raw string) (string, string, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil {
			return "", "", fmt.Errorf("invalid remote url %q: %w", raw, err)
		}
		s = u.Path
	case strings.Contains(s, ":") && !filepath.IsAbs(s):
		// scp-like git@host:owner/repo
		_, s, _ = strings.Cut(s, ":")
	}
	s = strings.TrimSuffix(strings.TrimSuffix(filepath.ToSlash(s), "/"), ".git")
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", fmt.Errorf("remote url %q has no owner/repo path", raw)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
