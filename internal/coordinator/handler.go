package coordinator

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"go.uber.org/zap"
)

// handle serves one message from page t. Every error becomes a failed
// response.
func (c *Coordinator) handle(ctx context.Context, t *tab, msg protocol.Message) *protocol.Response {
	data, err := c.dispatch(ctx, t, msg)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("tab", t.id.String()),
			zap.String("action", string(msg.Action)),
			zap.Error(err))
		return protocol.Fail(err)
	}
	return protocol.OK(data)
}

func (c *Coordinator) dispatch(ctx context.Context, t *tab, msg protocol.Message) (interface{}, error) {
	switch msg.Action {
	case protocol.ActionPing:
		return nil, nil

	case protocol.ActionGetScript:
		var req protocol.GetScriptRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		src, err := c.Script(ctx, req.Hash)
		if err != nil {
			return nil, err
		}
		return protocol.GetScriptResult{ScriptContent: src}, nil

	case protocol.ActionGetActiveScripts:
		scripts, err := c.ActiveScripts(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.ScriptsResult{Scripts: scripts}, nil

	case protocol.ActionRegisterScript:
		var req protocol.RegisterScriptRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return c.RegisterScript(ctx, req.Hash, req.Name, req.Config)

	case protocol.ActionToggleScript:
		var req protocol.ToggleScriptRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return nil, c.ToggleScript(ctx, req.Hash, req.Enabled)

	case protocol.ActionUpdateScriptConfig:
		var req protocol.UpdateScriptConfigRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		mod, err := req.Identifier()
		if err != nil {
			return nil, err
		}
		cfg, err := c.UpdateConfig(ctx, mod, req.Config)
		if err != nil {
			return nil, err
		}
		return protocol.ConfigResult{Config: cfg}, nil

	case protocol.ActionRemoveScript:
		var req protocol.RemoveScriptRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return nil, c.RemoveScript(ctx, req.Hash)

	case protocol.ActionRegisterLocalMods:
		var req protocol.RegisterLocalModsRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		mods, err := c.registry.RegisterLocalMods(ctx, req.Mods)
		if err != nil {
			return nil, err
		}
		// A page re-registering after reloadLocalMods gets the new registry.
		if c.isReady(t) {
			c.propagateAsync(t)
		}
		return protocol.LocalModsResult{Mods: mods}, nil

	case protocol.ActionToggleLocalMod:
		var req protocol.ToggleLocalModRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		mods, err := c.ToggleLocalMod(ctx, req.Name, req.Enabled)
		if err != nil {
			return nil, err
		}
		return protocol.LocalModsResult{Mods: mods}, nil

	case protocol.ActionGetLocalMods:
		mods, err := c.LocalMods(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.LocalModsResult{Mods: mods}, nil

	case protocol.ActionGetLocalModConfig:
		var req protocol.GetLocalModConfigRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		cfg, err := c.LocalModConfig(ctx, req.ModName)
		if err != nil {
			return nil, err
		}
		return protocol.ConfigResult{Config: cfg}, nil

	case protocol.ActionGetModConfig:
		var req protocol.GetModConfigRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		if err := req.Mod.Validate(); err != nil {
			return nil, err
		}
		cfg, err := c.ModConfig(ctx, req.Mod)
		if err != nil {
			return nil, err
		}
		return protocol.ConfigResult{Config: cfg}, nil

	case protocol.ActionExecuteLocalMod:
		var req protocol.ExecuteLocalModRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return nil, c.ExecuteLocalMod(ctx, req.Name, req.Force)

	case protocol.ActionContentScriptReady:
		c.markReady(t)
		c.enqueue(t, func(ctx context.Context) {
			if err := c.loadScripts(ctx, t, false); err != nil {
				c.log.Warn("could not push scripts", zap.String("tab", t.id.String()), zap.Error(err))
			}
			if err := c.propagate(ctx, t); err != nil && ctx.Err() == nil {
				c.log.Warn("propagation failed", zap.String("tab", t.id.String()), zap.Error(err))
			}
		})
		return nil, nil

	case protocol.ActionReloadLocalMods:
		return nil, c.ReloadLocalMods(ctx)

	case protocol.ActionRegistryInstalled:
		var req protocol.RegistryInstalled
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		c.ack(t, req.Epoch)
		return nil, nil

	case protocol.ActionGetLocale:
		return c.Locale(ctx)

	case protocol.ActionSetLocale:
		var req protocol.LocaleRequest
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return c.SetLocale(ctx, req.Locale)

	default:
		return nil, fmt.Errorf("unknown action %q: %w", msg.Action, types.ErrInvalid)
	}
}
