package usecase

import (
	"context"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/repository"
	"go.uber.org/zap"
)

// ProbeRegistryUseCase checks whether a version reached the package registry.
// The answer is advisory, so lookup failures degrade to an unchecked state.

type ProbeRegistryUseCase struct {
	Registry repository.RegistryRepository
	Logger   *zap.Logger
}

// Execute runs the use case.
func (uc *ProbeRegistryUseCase) Execute(ctx context.Context, pkg, version string) domain.RegistryState {
	state := domain.RegistryState{Package: pkg, Version: version}
	if pkg == "" || uc.Registry == nil {
		return state
	}
	info, err := uc.Registry.Package(ctx, pkg)
	if err != nil {
		if uc.Logger != nil {
			uc.Logger.Warn("registry lookup failed; treating publication as unknown",
				zap.String("package", pkg), zap.Error(err))
		}
		return state
	}
	state.Checked = true
	state.AnyPublished = info.Exists
	state.VersionPublished = info.Published(version)
	return state
}
