package repository

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const changelogHeader = `# Changelog

All notable changes to this project will be documented in this file.

The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.0.0/),
and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html).
`

const entryPrefix = "## ["

// ChangelogRepository reads and writes Keep-a-Changelog entries.
type ChangelogRepository interface {
	// Section returns the body of the entry for version, or "" when absent.
	Section(version string) (string, error)
	// WriteEntry inserts the entry newest-first, replacing any entry for the same version.
	WriteEntry(version, body string, date time.Time) error
	Path() string
}

type changelogRepository struct {
	fs   afero.Fs
	path string
}

// NewChangelogRepository creates a ChangelogRepository for path.
func NewChangelogRepository(fs afero.Fs, path string) ChangelogRepository {
	return &changelogRepository{fs: fs, path: path}
}

func (r *changelogRepository) Path() string {
	return r.path
}

func (r *changelogRepository) read() (string, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read changelog: %w", err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

func (r *changelogRepository) Section(version string) (string, error) {
	content, err := r.read()
	if err != nil {
		return "", err
	}
	_, entries := splitChangelog(content)
	for _, e := range entries {
		if e.version == version {
			return strings.TrimSpace(e.body), nil
		}
	}
	return "", nil
}

func (r *changelogRepository) WriteEntry(version, body string, date time.Time) error {
	content, err := r.read()
	if err != nil {
		return err
	}
	preamble, entries := splitChangelog(content)
	if strings.TrimSpace(preamble) == "" {
		preamble = changelogHeader
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(preamble, "\n"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s%s] - %s\n\n%s\n", entryPrefix, version, date.Format("2006-01-02"), strings.TrimSpace(body))
	for _, e := range entries {
		if e.version == version {
			continue
		}
		b.WriteString("\n")
		b.WriteString(e.heading)
		b.WriteString("\n")
		if text := strings.Trim(e.body, "\n"); text != "" {
			b.WriteString("\n")
			b.WriteString(text)
			b.WriteString("\n")
		}
	}
	if err := afero.WriteFile(r.fs, r.path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}
	return nil
}

type changelogEntry struct {
	version string
	heading string
	body    string
}

// splitChangelog separates the preamble from the versioned entries, keeping file order.
func splitChangelog(content string) (string, []changelogEntry) {
	var (
		preamble strings.Builder
		entries  []changelogEntry
	)
	for _, line := range strings.SplitAfter(content, "\n") {
		if strings.HasPrefix(line, entryPrefix) {
			heading := strings.TrimRight(line, "\n")
			version, _, _ := strings.Cut(strings.TrimPrefix(heading, entryPrefix), "]")
			entries = append(entries, changelogEntry{version: version, heading: heading})
			continue
		}
		if len(entries) == 0 {
			preamble.WriteString(line)
			continue
		}
		entries[len(entries)-1].body += line
	}
	return preamble.String(), entries
}
