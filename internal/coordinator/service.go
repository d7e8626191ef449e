package coordinator

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/locale"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"go.uber.org/zap"
)

// Script returns the source of a script through the cache.
func (c *Coordinator) Script(ctx context.Context, hash string) (string, error) {
	if hash == "" {
		return "", fmt.Errorf("empty hash: %w", types.ErrInvalid)
	}
	return c.scripts.Lookup(ctx, hash)
}

// ActiveScripts lists remote scripts.
func (c *Coordinator) ActiveScripts(ctx context.Context) ([]types.ScriptRecord, error) {
	return c.registry.ActiveScripts(ctx)
}

// RegisterScript registers a remote script and offers it to ready pages.
func (c *Coordinator) RegisterScript(ctx context.Context, hash, name string, config types.Config) (types.ScriptRecord, error) {
	rec, err := c.registry.RegisterScript(ctx, hash, name, config)
	if err != nil {
		return types.ScriptRecord{}, err
	}
	if rec.Enabled {
		c.reloadScripts(false)
	}
	return rec, nil
}

// ToggleScript enables or disables a remote script. Enabling offers it to
// ready pages; a disabled script stays loaded until the page reloads.
func (c *Coordinator) ToggleScript(ctx context.Context, hash string, enabled bool) error {
	if err := c.registry.ToggleScript(ctx, hash, enabled); err != nil {
		return err
	}
	if enabled {
		c.reloadScripts(false)
	}
	return nil
}

// UpdateConfig merges partial into a mod's config.
func (c *Coordinator) UpdateConfig(ctx context.Context, mod types.ModIdentifier, partial types.Config) (types.Config, error) {
	return c.registry.UpdateConfig(ctx, mod, partial)
}

// ModConfig returns a mod's config.
func (c *Coordinator) ModConfig(ctx context.Context, mod types.ModIdentifier) (types.Config, error) {
	return c.registry.Config(ctx, mod)
}

// RemoveScript drops a remote script and its in-memory source.
func (c *Coordinator) RemoveScript(ctx context.Context, hash string) error {
	if err := c.registry.RemoveScript(ctx, hash); err != nil {
		return err
	}
	c.scripts.Forget(hash)
	return nil
}

// LocalMods lists bundled mods.
func (c *Coordinator) LocalMods(ctx context.Context) ([]types.LocalModRecord, error) {
	return c.registry.LocalMods(ctx)
}

// LocalModConfig returns a bundled mod's config.
func (c *Coordinator) LocalModConfig(ctx context.Context, name string) (types.Config, error) {
	return c.registry.LocalModConfig(ctx, name)
}

// ToggleLocalMod flips a bundled mod and propagates the registry to every
// ready page.
func (c *Coordinator) ToggleLocalMod(ctx context.Context, name string, enabled bool) ([]types.LocalModRecord, error) {
	mods, err := c.registry.ToggleLocalMod(ctx, name, enabled)
	if err != nil {
		return nil, err
	}
	for _, t := range c.readyTabs() {
		c.propagateAsync(t)
	}
	return mods, nil
}

// ExecuteLocalMod asks the active page to run a bundled mod.
func (c *Coordinator) ExecuteLocalMod(ctx context.Context, name string, force bool) error {
	if name == "" {
		return fmt.Errorf("empty mod name: %w", types.ErrInvalid)
	}
	t, err := c.activeTab()
	if err != nil {
		return err
	}
	req := protocol.ExecuteLocalModRequest{Name: name, Force: force}
	return c.enqueueWait(ctx, t, func(tctx context.Context) error {
		return c.push(tctx, t, protocol.ActionExecuteLocalMod, req)
	})
}

// ReloadLocalMods asks every ready page to register its bundled mods again.
func (c *Coordinator) ReloadLocalMods(ctx context.Context) error {
	tabs := c.readyTabs()
	if len(tabs) == 0 {
		return ErrNoTab
	}
	c.broadcast(protocol.ActionReloadLocalMods, nil)
	return nil
}

// ReloadScripts pushes the remote registry to every ready page.
func (c *Coordinator) ReloadScripts(ctx context.Context, force bool) error {
	if len(c.readyTabs()) == 0 {
		return ErrNoTab
	}
	c.reloadScripts(force)
	return nil
}

func (c *Coordinator) reloadScripts(force bool) {
	for _, t := range c.readyTabs() {
		t := t
		c.enqueue(t, func(ctx context.Context) {
			if err := c.loadScripts(ctx, t, force); err != nil {
				c.log.Warn("could not push scripts", zap.String("tab", t.id.String()), zap.Error(err))
			}
		})
	}
}

// Locale returns the current locale with its merged messages.
func (c *Coordinator) Locale(ctx context.Context) (protocol.LocaleResult, error) {
	var current string
	ok, err := c.store.Get(store.ScopeLocal, store.KeyLocale, &current)
	if err != nil {
		return protocol.LocaleResult{}, err
	}
	if !ok || current == "" {
		current = c.catalog.Default()
	}
	return protocol.LocaleResult{Locale: current, Messages: c.catalog.Messages(current)}, nil
}

// SetLocale persists a locale and tells every ready page.
func (c *Coordinator) SetLocale(ctx context.Context, tag string) (protocol.LocaleResult, error) {
	normalized, err := locale.Normalize(tag)
	if err != nil {
		return protocol.LocaleResult{}, err
	}
	if err := c.store.Set(store.ScopeLocal, store.KeyLocale, normalized); err != nil {
		return protocol.LocaleResult{}, err
	}
	res := protocol.LocaleResult{Locale: normalized, Messages: c.catalog.Messages(normalized)}
	c.broadcast(protocol.ActionLocaleChanged, res)
	return res, nil
}
