package registry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Seeder registers the bundled manifest at startup, so the local registry
// is populated before any page attaches.
type Seeder struct {
	manager      *Manager
	fs           afero.Fs
	manifestPath string
}

// NewSeeder creates a seeder for the manifest at manifestPath.
func NewSeeder(manager *Manager, fs afero.Fs, manifestPath string) *Seeder {
	return &Seeder{
		manager:      manager,
		fs:           fs,
		manifestPath: manifestPath,
	}
}

// Seed loads the manifest and registers it. A missing manifest is not an
// error: the registry is left as it was.
func (s *Seeder) Seed(ctx context.Context) ([]types.LocalModRecord, error) {
	manifest, err := localmods.LoadManifest(s.fs, s.manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		s.manager.log.Warn("local mod manifest not found", zap.String("path", s.manifestPath))
		return s.manager.LocalMods(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("seed local mods: %w", err)
	}

	mods, err := s.manager.RegisterLocalMods(ctx, manifest.Mods)
	if err != nil {
		return nil, fmt.Errorf("seed local mods: %w", err)
	}
	s.manager.log.Info("seeded local mods", zap.String("manifest", s.manifestPath), zap.Int("count", len(mods)))
	return mods, nil
}
