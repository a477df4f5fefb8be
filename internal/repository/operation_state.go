package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/spf13/afero"
)

// OperationStateRepository reads in-progress operation markers from the git directory.
type OperationStateRepository interface {
	Detect() (domain.OperationKind, error)
	// RangeSize is the number of commits the operation still has to apply, at least 1.
	RangeSize(kind domain.OperationKind) (int, error)
}

type operationStateRepository struct {
	fs     afero.Fs
	gitDir string
}

// NewOperationStateRepository creates an OperationStateRepository over gitDir.
func NewOperationStateRepository(fs afero.Fs, gitDir string) OperationStateRepository {
	return &operationStateRepository{fs: fs, gitDir: gitDir}
}

func (r *operationStateRepository) exists(name string) (bool, error) {
	ok, err := afero.Exists(r.fs, filepath.Join(r.gitDir, name))
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return ok, nil
}

// Detect reports which operation, if any, is in progress.
func (r *operationStateRepository) Detect() (domain.OperationKind, error) {
	checks := []struct {
		marker string
		kind   domain.OperationKind
	}{
		{"rebase-merge", domain.OperationRebase},
		{"rebase-apply", domain.OperationRebase},
		{"MERGE_HEAD", domain.OperationMerge},
		{"CHERRY_PICK_HEAD", domain.OperationCherryPick},
	}
	for _, c := range checks {
		ok, err := r.exists(c.marker)
		if err != nil {
			return domain.OperationNone, err
		}
		if ok {
			return c.kind, nil
		}
	}
	return domain.OperationNone, nil
}

func (r *operationStateRepository) RangeSize(kind domain.OperationKind) (int, error) {
	switch kind {
	case domain.OperationRebase:
		if ok, err := r.exists("rebase-merge"); err != nil {
			return 0, err
		} else if ok {
			return r.remaining("rebase-merge", "msgnum", "end")
		}
		return r.remaining("rebase-apply", "next", "last")
	case domain.OperationCherryPick:
		data, err := afero.ReadFile(r.fs, filepath.Join(r.gitDir, "sequencer", "todo"))
		if os.IsNotExist(err) {
			return 1, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read sequencer todo: %w", err)
		}
		n := 0
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				n++
			}
		}
		return max(n, 1), nil
	}
	return 1, nil
}

func (r *operationStateRepository) remaining(dir, currentFile, lastFile string) (int, error) {
	current, err := r.readInt(filepath.Join(dir, currentFile))
	if err != nil {
		return 0, err
	}
	last, err := r.readInt(filepath.Join(dir, lastFile))
	if err != nil {
		return 0, err
	}
	return max(last-current+1, 1), nil
}

func (r *operationStateRepository) readInt(name string) (int, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.gitDir, name))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return n, nil
}
