package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/releasesync/internal/repository"
)

// ReleaseCommitPrefix starts every commit this tool creates for a release.
const ReleaseCommitPrefix = "release: "

// DraftNotesUseCase builds a changelog body from commit subjects since a tag.

type DraftNotesUseCase struct {
	WorkingCopy repository.WorkingCopyRepository
}

// Execute runs the use case.
func (uc *DraftNotesUseCase) Execute(ctx context.Context, sinceTag string) (string, error) {
	subjects, err := uc.WorkingCopy.CommitSubjects(ctx, sinceTag)
	if err != nil {
		return "", fmt.Errorf("failed to collect commit subjects: %w", err)
	}
	var lines []string
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, ReleaseCommitPrefix) {
			continue
		}
		lines = append(lines, "- "+s)
	}
	if len(lines) == 0 {
		return "- Maintenance release", nil
	}
	return strings.Join(lines, "\n"), nil
}
