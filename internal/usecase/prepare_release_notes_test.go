package usecase

import (
	"context"
	"testing"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareReleaseNotesUseCase_Execute(t *testing.T) {
	t.Run("Should build title and body from the changelog section", func(t *testing.T) {
		uc := &PrepareReleaseNotesUseCase{}
		release := &domain.Release{Version: domain.MustVersion("1.2.0"), Package: "widgets"}
		err := uc.Execute(context.Background(), release, "Faster sync\n\n- Fixed \"quoted\" bug\n- Added A & B")
		require.NoError(t, err)
		assert.Equal(t, "widgets v1.2.0 - Faster sync", release.Title)
		assert.Contains(t, release.Notes, "## What's changed in v1.2.0")
		assert.Contains(t, release.Notes, "- Fixed \"quoted\" bug")
		assert.Contains(t, release.Notes, "- Added A & B")
	})
	t.Run("Should escape HTML in notes", func(t *testing.T) {
		uc := &PrepareReleaseNotesUseCase{}
		release := &domain.Release{Version: domain.MustVersion("1.0.0")}
		err := uc.Execute(context.Background(), release, "- <img src=x onerror=alert(1)>")
		require.NoError(t, err)
		assert.NotContains(t, release.Notes, "<img")
		assert.Contains(t, release.Notes, "&lt;img")
	})
	t.Run("Should keep blockquotes", func(t *testing.T) {
		uc := &PrepareReleaseNotesUseCase{}
		release := &domain.Release{Version: domain.MustVersion("1.0.0")}
		require.NoError(t, uc.Execute(context.Background(), release, "> note"))
		assert.Contains(t, release.Notes, "> note")
	})
	t.Run("Should reject template syntax in notes", func(t *testing.T) {
		uc := &PrepareReleaseNotesUseCase{}
		release := &domain.Release{Version: domain.MustVersion("1.0.0")}
		err := uc.Execute(context.Background(), release, "- {{.Secret}}")
		assert.Error(t, err)
	})
	t.Run("Should reject a release without version", func(t *testing.T) {
		uc := &PrepareReleaseNotesUseCase{}
		assert.Error(t, uc.Execute(context.Background(), &domain.Release{}, ""))
		assert.Error(t, uc.Execute(context.Background(), nil, ""))
	})
}

func TestPrepareReleaseNotesUseCase_Title(t *testing.T) {
	uc := &PrepareReleaseNotesUseCase{}
	v := domain.MustVersion("2026.3")
	t.Run("Should fall back to the bare tag", func(t *testing.T) {
		assert.Equal(t, "v2026.3", uc.Title("", v, ""))
		assert.Equal(t, "widgets v2026.3", uc.Title("widgets", v, "**Highlights**\n- x"))
		assert.Equal(t, "widgets v2026.3", uc.Title("widgets", v, "- only bullets"))
	})
}
