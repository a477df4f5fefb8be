package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONJournalRepository(t *testing.T) {
	ctx := context.Background()
	t.Run("Should save and load the latest session", func(t *testing.T) {
		dir := JournalDir(t.TempDir())
		repo := NewJSONJournalRepository(afero.NewOsFs(), dir)
		first := domain.NewSession("one")
		require.NoError(t, repo.Save(ctx, first))
		second := domain.NewSession("two")
		second.AddPass(domain.ScenarioOrphanedTag, "fp")
		i := second.StartStep(domain.ActionDeleteRemoteTag, "v1.0.0")
		second.FinishStep(i, domain.StepStatusCompleted, "")
		require.NoError(t, repo.Save(ctx, second))
		latest, err := repo.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "two", latest.SessionID)
		require.Len(t, latest.Steps, 1)
		assert.Equal(t, domain.ActionDeleteRemoteTag, latest.Steps[0].Action)
		loaded, err := repo.Load(ctx, "one")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusRunning, loaded.Status)
	})
	t.Run("Should detect tampered journals", func(t *testing.T) {
		dir := t.TempDir()
		fs := afero.NewOsFs()
		repo := NewJSONJournalRepository(fs, dir)
		session := domain.NewSession("abc")
		session.Finish(domain.SessionStatusFailed, errors.New("push rejected"))
		require.NoError(t, repo.Save(ctx, session))
		path := filepath.Join(dir, "session-abc.json")
		data, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		tampered := []byte(strings.Replace(string(data), "push rejected", "push accepted", 1))
		require.NoError(t, afero.WriteFile(fs, path, tampered, 0600))
		_, err = repo.Load(ctx, "abc")
		assert.ErrorContains(t, err, "checksum mismatch")
	})
	t.Run("Should report missing journals", func(t *testing.T) {
		repo := NewJSONJournalRepository(afero.NewOsFs(), t.TempDir())
		_, err := repo.LoadLatest(ctx)
		assert.Error(t, err)
	})
}
