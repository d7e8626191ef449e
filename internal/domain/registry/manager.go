package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/modbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentProbes bounds presence probes during local registration.
const maxConcurrentProbes = 8

// ScriptSource resolves script content for a hash.
type ScriptSource interface {
	Lookup(ctx context.Context, hash string) (string, error)
}

// Prober reports whether a bundled mod is present in this build.
type Prober interface {
	Probe(ctx context.Context, name string) (bool, error)
}

// Manager owns the remote and local mod collections.
type Manager struct {
	store   *store.Store
	scripts ScriptSource
	prober  Prober
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex
}

// NewManager creates a registry over st.
func NewManager(st *store.Store, scripts ScriptSource, prober Prober, log *zap.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		store:   st,
		scripts: scripts,
		prober:  prober,
		log:     logging.OrNop(log),
		metrics: metrics,
	}
}

// RegisterScript resolves hash and upserts its record. An existing record
// keeps its enabled flag and has config merged in; a new one starts
// enabled. Nothing is written when the content cannot be resolved.
func (m *Manager) RegisterScript(ctx context.Context, hash, name string, config types.Config) (types.ScriptRecord, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return types.ScriptRecord{}, fmt.Errorf("script hash required: %w", types.ErrInvalid)
	}

	if _, err := m.scripts.Lookup(ctx, hash); err != nil {
		if !errors.Is(err, types.ErrFetch) {
			err = fmt.Errorf("%w: %w", types.ErrFetch, err)
		}
		return types.ScriptRecord{}, fmt.Errorf("could not load script %s, check the hash and your connection: %w", hash, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	scripts, err := m.loadScripts()
	if err != nil {
		return types.ScriptRecord{}, err
	}

	var rec types.ScriptRecord
	if i := indexScript(scripts, hash); i >= 0 {
		scripts[i].Config = scripts[i].Config.Merge(config)
		if name != "" {
			scripts[i].Name = name
		}
		rec = scripts[i]
	} else {
		if name == "" {
			name = hash
		}
		rec = types.ScriptRecord{Hash: hash, Name: name, Enabled: true, Config: config.Clone()}
		scripts = append(scripts, rec)
	}

	if err := m.saveScripts(scripts); err != nil {
		return types.ScriptRecord{}, err
	}
	m.log.Info("script registered", zap.String("hash", hash), zap.String("name", rec.Name))
	return rec, nil
}

// ToggleScript sets the enabled flag of a registered script.
func (m *Manager) ToggleScript(ctx context.Context, hash string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scripts, err := m.loadScripts()
	if err != nil {
		return err
	}
	i := indexScript(scripts, hash)
	if i < 0 {
		return fmt.Errorf("script %s: %w", hash, types.ErrNotFound)
	}
	if scripts[i].Enabled == enabled {
		return nil
	}
	scripts[i].Enabled = enabled
	return m.saveScripts(scripts)
}

// UpdateScriptConfig merges partial into a remote script's config.
func (m *Manager) UpdateScriptConfig(ctx context.Context, hash string, partial types.Config) (types.Config, error) {
	return m.UpdateConfig(ctx, types.Remote(hash), partial)
}

// UpdateConfig merges partial into the config of either kind of mod and
// returns the result.
func (m *Manager) UpdateConfig(ctx context.Context, id types.ModIdentifier, partial types.Config) (types.Config, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id.IsLocal() {
		mods, err := m.loadLocalMods()
		if err != nil {
			return nil, err
		}
		if indexLocal(mods, id.Key) < 0 {
			return nil, fmt.Errorf("local mod %s: %w", id.Key, types.ErrNotFound)
		}
		configs, err := m.loadLocalConfigs()
		if err != nil {
			return nil, err
		}
		merged := configs[id.Key].Merge(partial)
		configs[id.Key] = merged
		if err := m.store.Set(store.ScopeLocal, store.KeyLocalModsConfig, configs); err != nil {
			return nil, fmt.Errorf("save local mod config: %w", err)
		}
		return merged.Clone(), nil
	}

	scripts, err := m.loadScripts()
	if err != nil {
		return nil, err
	}
	i := indexScript(scripts, id.Key)
	if i < 0 {
		return nil, fmt.Errorf("script %s: %w", id.Key, types.ErrNotFound)
	}
	scripts[i].Config = scripts[i].Config.Merge(partial)
	if err := m.saveScripts(scripts); err != nil {
		return nil, err
	}
	return scripts[i].Config.Clone(), nil
}

// Config returns a mod's config. Local mods without stored config get an
// empty one.
func (m *Manager) Config(ctx context.Context, id types.ModIdentifier) (types.Config, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id.IsLocal() {
		configs, err := m.loadLocalConfigs()
		if err != nil {
			return nil, err
		}
		return configs[id.Key].Clone(), nil
	}

	scripts, err := m.loadScripts()
	if err != nil {
		return nil, err
	}
	i := indexScript(scripts, id.Key)
	if i < 0 {
		return nil, fmt.Errorf("script %s: %w", id.Key, types.ErrNotFound)
	}
	return scripts[i].Config.Clone(), nil
}

// LocalModConfig returns the config of a bundled mod.
func (m *Manager) LocalModConfig(ctx context.Context, name string) (types.Config, error) {
	return m.Config(ctx, types.Local(name))
}

// RemoveScript drops hash from the collection. Absent hashes are ignored.
func (m *Manager) RemoveScript(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scripts, err := m.loadScripts()
	if err != nil {
		return err
	}
	i := indexScript(scripts, hash)
	if i < 0 {
		return nil
	}
	scripts = append(scripts[:i], scripts[i+1:]...)
	if err := m.saveScripts(scripts); err != nil {
		return err
	}
	m.log.Info("script removed", zap.String("hash", hash))
	return nil
}

// ActiveScripts returns every registered remote script.
func (m *Manager) ActiveScripts(ctx context.Context) ([]types.ScriptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadScripts()
}

// RegisterLocalMods replaces the local registry with the candidates that
// are present in this build, in manifest order.
func (m *Manager) RegisterLocalMods(ctx context.Context, candidates []types.LocalModCandidate) ([]types.LocalModRecord, error) {
	candidates = dedupe(candidates)
	present, err := m.probeAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prior, err := m.loadLocalMods()
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(prior))
	for _, mod := range prior {
		enabled[mod.Name] = mod.Enabled
	}

	mods := make([]types.LocalModRecord, 0, len(candidates))
	for i, c := range candidates {
		if !present[i] {
			m.log.Info("local mod not bundled, skipping", zap.String("name", c.Name))
			continue
		}
		rec := types.LocalModRecord{
			Name:        c.Name,
			DisplayName: c.DisplayName,
			IsLocal:     true,
			Enabled:     true,
		}
		if rec.DisplayName == "" {
			rec.DisplayName = c.Name
		}
		if was, ok := enabled[c.Name]; ok {
			rec.Enabled = was
		}
		mods = append(mods, rec)
	}

	if err := m.saveLocalMods(mods); err != nil {
		return nil, err
	}
	m.log.Info("local mods registered", zap.Int("offered", len(candidates)), zap.Int("registered", len(mods)))
	return cloneLocal(mods), nil
}

// ToggleLocalMod sets a bundled mod's enabled flag and returns the updated
// registry.
func (m *Manager) ToggleLocalMod(ctx context.Context, name string, enabled bool) ([]types.LocalModRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mods, err := m.loadLocalMods()
	if err != nil {
		return nil, err
	}
	i := indexLocal(mods, name)
	if i < 0 {
		return nil, fmt.Errorf("local mod %s: %w", name, types.ErrNotFound)
	}
	mods[i].Enabled = enabled
	if err := m.saveLocalMods(mods); err != nil {
		return nil, err
	}
	return cloneLocal(mods), nil
}

// LocalMods returns the local registry snapshot.
func (m *Manager) LocalMods(ctx context.Context) ([]types.LocalModRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mods, err := m.loadLocalMods()
	if err != nil {
		return nil, err
	}
	return cloneLocal(mods), nil
}

// State reports where a mod sits in the registry lifecycle. Execution is
// tracked by the page, not here.
func (m *Manager) State(ctx context.Context, id types.ModIdentifier) (types.ModState, error) {
	if err := id.Validate(); err != nil {
		return types.StateUnregistered, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		enabled bool
		found   bool
	)
	if id.IsLocal() {
		mods, err := m.loadLocalMods()
		if err != nil {
			return types.StateUnregistered, err
		}
		if i := indexLocal(mods, id.Key); i >= 0 {
			enabled, found = mods[i].Enabled, true
		}
	} else {
		scripts, err := m.loadScripts()
		if err != nil {
			return types.StateUnregistered, err
		}
		if i := indexScript(scripts, id.Key); i >= 0 {
			enabled, found = scripts[i].Enabled, true
		}
	}

	switch {
	case !found:
		return types.StateUnregistered, nil
	case enabled:
		return types.StateEnabled, nil
	default:
		return types.StateDisabled, nil
	}
}

// probeAll checks every candidate concurrently. A failed probe counts as
// absent.
func (m *Manager) probeAll(ctx context.Context, candidates []types.LocalModCandidate) ([]bool, error) {
	present := make([]bool, len(candidates))
	if m.prober == nil {
		for i := range present {
			present[i] = true
		}
		return present, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, c := range candidates {
		g.Go(func() error {
			ok, err := m.prober.Probe(gctx, c.Name)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				m.log.Warn("local mod probe failed", zap.String("name", c.Name), zap.Error(err))
				return nil
			}
			present[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe local mods: %w", err)
	}
	return present, nil
}

func (m *Manager) loadScripts() ([]types.ScriptRecord, error) {
	var scripts []types.ScriptRecord
	if _, err := m.store.Get(store.ScopeSync, store.KeyActiveScripts, &scripts); err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	for i := range scripts {
		if scripts[i].Config == nil {
			scripts[i].Config = types.Config{}
		}
	}
	return scripts, nil
}

func (m *Manager) saveScripts(scripts []types.ScriptRecord) error {
	if scripts == nil {
		scripts = []types.ScriptRecord{}
	}
	if err := m.store.Set(store.ScopeSync, store.KeyActiveScripts, scripts); err != nil {
		return fmt.Errorf("save scripts: %w", err)
	}
	m.metrics.SetRegistered(string(types.KindRemote), len(scripts))
	return nil
}

// loadLocalMods prefers the synced copy and falls back to the local one
// when sync is empty.
func (m *Manager) loadLocalMods() ([]types.LocalModRecord, error) {
	var mods []types.LocalModRecord
	if _, err := m.store.Get(store.ScopeSync, store.KeyLocalMods, &mods); err != nil {
		m.log.Warn("synced local mods unreadable, using local copy", zap.Error(err))
		mods = nil
	}
	if len(mods) > 0 {
		return mods, nil
	}
	if _, err := m.store.Get(store.ScopeLocal, store.KeyLocalMods, &mods); err != nil {
		return nil, fmt.Errorf("load local mods: %w", err)
	}
	return mods, nil
}

// saveLocalMods writes both copies. Only the local write is required to
// succeed.
func (m *Manager) saveLocalMods(mods []types.LocalModRecord) error {
	if mods == nil {
		mods = []types.LocalModRecord{}
	}
	if err := m.store.Set(store.ScopeSync, store.KeyLocalMods, mods); err != nil {
		m.log.Warn("sync write of local mods failed", zap.Error(err))
	}
	if err := m.store.Set(store.ScopeLocal, store.KeyLocalMods, mods); err != nil {
		return fmt.Errorf("save local mods: %w", err)
	}
	m.metrics.SetRegistered(string(types.KindLocal), len(mods))
	return nil
}

func (m *Manager) loadLocalConfigs() (map[string]types.Config, error) {
	configs := make(map[string]types.Config)
	if _, err := m.store.Get(store.ScopeLocal, store.KeyLocalModsConfig, &configs); err != nil {
		return nil, fmt.Errorf("load local mod config: %w", err)
	}
	if configs == nil {
		configs = make(map[string]types.Config)
	}
	return configs, nil
}

func indexScript(scripts []types.ScriptRecord, hash string) int {
	for i, s := range scripts {
		if s.Hash == hash {
			return i
		}
	}
	return -1
}

func indexLocal(mods []types.LocalModRecord, name string) int {
	for i, mod := range mods {
		if mod.Name == name {
			return i
		}
	}
	return -1
}

func dedupe(candidates []types.LocalModCandidate) []types.LocalModCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]types.LocalModCandidate, 0, len(candidates))
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

func cloneLocal(mods []types.LocalModRecord) []types.LocalModRecord {
	out := make([]types.LocalModRecord, len(mods))
	copy(out, mods)
	return out
}
