package localmods

import (
	"fmt"
	"io"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// Manifest lists the bundled mod candidates in registry order.
type Manifest struct {
	Mods []types.LocalModCandidate `yaml:"mods" json:"mods"`
}

// ParseManifest decodes a YAML manifest and validates every name.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for _, mod := range m.Mods {
		if err := ValidateName(mod.Name); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// LoadManifest reads a manifest from fs.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// Encode writes m as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(m)
}

// Names returns the mod names in order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Mods))
	for i, mod := range m.Mods {
		names[i] = mod.Name
	}
	return names
}
