package repository

import (
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationState_Detect(t *testing.T) {
	t.Run("Should report none for a quiet repository", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/repo/.git", 0755))
		kind, err := NewOperationStateRepository(fs, "/repo/.git").Detect()
		require.NoError(t, err)
		assert.Equal(t, domain.OperationNone, kind)
	})
	t.Run("Should detect each operation marker", func(t *testing.T) {
		cases := map[string]domain.OperationKind{
			"rebase-merge/msgnum": domain.OperationRebase,
			"rebase-apply/next":   domain.OperationRebase,
			"MERGE_HEAD":          domain.OperationMerge,
			"CHERRY_PICK_HEAD":    domain.OperationCherryPick,
		}
		for marker, want := range cases {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/repo/.git/"+marker, []byte("1"), 0644))
			kind, err := NewOperationStateRepository(fs, "/repo/.git").Detect()
			require.NoError(t, err)
			assert.Equal(t, want, kind, marker)
		}
	})
}

func TestOperationState_RangeSize(t *testing.T) {
	t.Run("Should count remaining rebase commits", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/g/rebase-merge/msgnum", []byte("2\n"), 0644))
		require.NoError(t, afero.WriteFile(fs, "/g/rebase-merge/end", []byte("5\n"), 0644))
		n, err := NewOperationStateRepository(fs, "/g").RangeSize(domain.OperationRebase)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
	t.Run("Should count am-style rebase commits", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/g/rebase-apply/next", []byte("3"), 0644))
		require.NoError(t, afero.WriteFile(fs, "/g/rebase-apply/last", []byte("3"), 0644))
		n, err := NewOperationStateRepository(fs, "/g").RangeSize(domain.OperationRebase)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
	t.Run("Should count sequencer todo for cherry-picks", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		todo := "pick abc one\n# comment\npick def two\n\n"
		require.NoError(t, afero.WriteFile(fs, "/g/sequencer/todo", []byte(todo), 0644))
		n, err := NewOperationStateRepository(fs, "/g").RangeSize(domain.OperationCherryPick)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = NewOperationStateRepository(afero.NewMemMapFs(), "/g").RangeSize(domain.OperationCherryPick)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
	t.Run("Should treat merges as a single step", func(t *testing.T) {
		n, err := NewOperationStateRepository(afero.NewMemMapFs(), "/g").RangeSize(domain.OperationMerge)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
