package repository

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// DefaultManifestVersion is declared when the manifest has no version field.
const DefaultManifestVersion = "0.0.0"

// ErrManifestVersionMissing is returned by WriteVersion when there is no version line to rewrite.
var ErrManifestVersionMissing = errors.New("manifest has no version line")

var (
	versionLine = regexp.MustCompile(`^(\s*version\s*=\s*)"[^"]*"`)
	tableHeader = regexp.MustCompile(`^\s*\[\[?([^\[\]]+)\]\]?\s*(#.*)?\s*$`)
)

// Manifest is the part of the project descriptor reconcile relies on.
type Manifest struct {
	Name    string
	Version string
}

// ManifestRepository reads and rewrites the declared version.
type ManifestRepository interface {
	Read() (Manifest, error)
	WriteVersion(version string) error
	Path() string
}

type manifestDocument struct {
	Project struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

type manifestRepository struct {
	fs   afero.Fs
	path string
}

// NewManifestRepository creates a ManifestRepository for a pyproject-style TOML file.
func NewManifestRepository(fs afero.Fs, path string) ManifestRepository {
	return &manifestRepository{fs: fs, path: path}
}

func (r *manifestRepository) Path() string {
	return r.path
}

// Read decodes [project], falling back to [tool.poetry].
func (r *manifestRepository) Read() (Manifest, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("manifest %s not found: %w", r.path, err)
		}
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var doc manifestDocument
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", r.path, err)
	}
	m := Manifest{Name: doc.Project.Name, Version: doc.Project.Version}
	if m.Name == "" {
		m.Name = doc.Tool.Poetry.Name
	}
	if m.Version == "" {
		m.Version = doc.Tool.Poetry.Version
	}
	if m.Version == "" {
		m.Version = DefaultManifestVersion
	}
	return m, nil
}

// WriteVersion rewrites the version line of [project] (or [tool.poetry]) in
// place, keeping the rest of the file untouched.
func (r *manifestRepository) WriteVersion(version string) error {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	table := ""
	replaced := false
	for i, line := range lines {
		if m := tableHeader.FindStringSubmatch(line); m != nil {
			table = strings.TrimSpace(m[1])
			continue
		}
		if table != "project" && table != "tool.poetry" {
			continue
		}
		if loc := versionLine.FindStringSubmatchIndex(line); loc != nil {
			lines[i] = line[:loc[3]] + `"` + version + `"` + line[loc[1]:]
			replaced = true
			break
		}
	}
	if !replaced {
		return ErrManifestVersionMissing
	}
	info, err := r.fs.Stat(r.path)
	if err != nil {
		return fmt.Errorf("failed to stat manifest: %w", err)
	}
	if err := afero.WriteFile(r.fs, r.path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
