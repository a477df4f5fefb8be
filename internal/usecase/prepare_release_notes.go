package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/compozy/releasesync/internal/domain"
)

// PrepareReleaseNotesUseCase turns a changelog section into a release title and body.
type PrepareReleaseNotesUseCase struct {
}

// sanitizeNotes HTML-escapes notes while keeping the markdown constructs a release page renders.
func (uc *PrepareReleaseNotesUseCase) sanitizeNotes(notes string) string {
	if notes == "" {
		return ""
	}
	sanitized := html.EscapeString(notes)
	// angle brackets stay escaped everywhere
	replacements := map[string]string{
		"&#34;": "\"",
		"&#39;": "'",
		"&amp;": "&",
	}
	lines := strings.Split(sanitized, "\n")
	for i, line := range lines {
		if after, ok := strings.CutPrefix(line, "&gt; "); ok {
			lines[i] = "> " + after
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "**") {
			for escaped, original := range replacements {
				lines[i] = strings.ReplaceAll(lines[i], escaped, original)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Title builds "<package> <tag>" with the section's leading plain line as a suffix.
func (uc *PrepareReleaseNotesUseCase) Title(pkg string, version *domain.Version, section string) string {
	title := version.Tag()
	if pkg != "" {
		title = pkg + " " + title
	}
	first, _, _ := strings.Cut(strings.TrimSpace(section), "\n")
	first = strings.TrimSpace(first)
	if first == "" || strings.HasPrefix(first, "**") || strings.HasPrefix(first, "#") ||
		strings.HasPrefix(first, "- ") || strings.HasPrefix(first, "* ") {
		return title
	}
	return title + " - " + first
}

// Execute fills release.Title and release.Notes from section.
func (uc *PrepareReleaseNotesUseCase) Execute(_ context.Context, release *domain.Release, section string) error {
	if release == nil {
		return fmt.Errorf("release cannot be nil")
	}
	if release.Version == nil {
		return fmt.Errorf("release version cannot be nil")
	}
	safeData := struct {
		Version string
		Notes   string
	}{
		Version: html.EscapeString(release.Version.Tag()),
		Notes:   uc.sanitizeNotes(strings.TrimSpace(section)),
	}
	tmpl, err := template.New("release-notes").Option("missingkey=error").Parse(releaseNotesTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse release notes template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, safeData); err != nil {
		return fmt.Errorf("failed to execute release notes template: %w", err)
	}
	output := buf.String()
	lower := strings.ToLower(output)
	if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") ||
		strings.Contains(output, "{{") || strings.Contains(output, "}}") {
		return fmt.Errorf("potential injection detected in release notes")
	}
	release.Title = uc.Title(release.Package, release.Version, section)
	release.Notes = strings.TrimSpace(output) + "\n"
	return nil
}

const releaseNotesTemplate = `
## What's changed in {{.Version}}

{{.Notes}}
`
