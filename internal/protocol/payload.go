package protocol

import (
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/shared/types"
)

// GetScriptRequest asks for a script body by hash.
type GetScriptRequest struct {
	Hash string `json:"hash"`
}

// GetScriptResult carries a script body.
type GetScriptResult struct {
	ScriptContent string `json:"scriptContent"`
}

// ScriptsResult lists remote scripts. It is also the loadScripts push.
type ScriptsResult struct {
	Scripts []types.ScriptRecord `json:"scripts"`
}

// LoadScriptsRequest tells the page to execute the enabled scripts.
type LoadScriptsRequest struct {
	Scripts []types.ScriptRecord `json:"scripts"`
	Force   bool                 `json:"force,omitempty"`
}

type RegisterScriptRequest struct {
	Hash   string       `json:"hash"`
	Name   string       `json:"name"`
	Config types.Config `json:"config,omitempty"`
}

type ToggleScriptRequest struct {
	Hash    string `json:"hash"`
	Enabled bool   `json:"enabled"`
}

// UpdateScriptConfigRequest patches a mod's config. Mod takes precedence over
// Hash so local mods can be addressed without a name prefix convention.
type UpdateScriptConfigRequest struct {
	Hash   string               `json:"hash,omitempty"`
	Mod    *types.ModIdentifier `json:"mod,omitempty"`
	Config types.Config         `json:"config"`
}

// Identifier resolves the addressed mod.
func (r UpdateScriptConfigRequest) Identifier() (types.ModIdentifier, error) {
	if r.Mod != nil {
		if err := r.Mod.Validate(); err != nil {
			return types.ModIdentifier{}, err
		}
		return *r.Mod, nil
	}
	if r.Hash == "" {
		return types.ModIdentifier{}, fmt.Errorf("hash or mod required: %w", types.ErrInvalid)
	}
	return types.Remote(r.Hash), nil
}

type RemoveScriptRequest struct {
	Hash string `json:"hash"`
}

// RegisterLocalModsRequest carries the bundled manifest.
type RegisterLocalModsRequest struct {
	Mods []types.LocalModCandidate `json:"mods"`
}

// LocalModsResult is the local registry snapshot. As a push to the page it
// carries the epoch the page acknowledges with registryInstalled.
type LocalModsResult struct {
	Mods  []types.LocalModRecord `json:"mods"`
	Epoch uint64                 `json:"epoch,omitempty"`
}

type ToggleLocalModRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type GetLocalModConfigRequest struct {
	ModName string `json:"modName"`
}

type GetModConfigRequest struct {
	Mod types.ModIdentifier `json:"mod"`
}

type ConfigResult struct {
	Config types.Config `json:"config"`
}

// ExecuteLocalModRequest runs one bundled mod. The coordinator sends only
// the name; the bridge fills in source and config before posting it on.
type ExecuteLocalModRequest struct {
	Name   string       `json:"name"`
	Force  bool         `json:"force,omitempty"`
	Source string       `json:"source,omitempty"`
	Config types.Config `json:"config,omitempty"`
}

// RegistryInstalled acknowledges a registerLocalMods push.
type RegistryInstalled struct {
	Epoch uint64 `json:"epoch"`
}

type LocaleRequest struct {
	Locale string `json:"locale"`
}

type LocaleResult struct {
	Locale   string            `json:"locale"`
	Messages map[string]string `json:"messages,omitempty"`
}
