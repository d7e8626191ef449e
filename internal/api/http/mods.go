package http

import (
	"net/http"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// ListMods lists bundled mods
func (h *Handlers) ListMods(c *gin.Context) {
	mods, err := h.svc.LocalMods(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.LocalModsResult{Mods: mods})
}

// ToggleMod enables or disables a bundled mod
func (h *Handlers) ToggleMod(c *gin.Context) {
	var req types.ToggleRequest
	if !bind(c, &req) {
		return
	}
	mods, err := h.svc.ToggleLocalMod(c.Request.Context(), c.Param("name"), *req.Enabled)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.LocalModsResult{Mods: mods})
}

// ModConfig returns a bundled mod's config
func (h *Handlers) ModConfig(c *gin.Context) {
	cfg, err := h.svc.LocalModConfig(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.ConfigResult{Config: cfg})
}

// UpdateModConfig merges into a bundled mod's config
func (h *Handlers) UpdateModConfig(c *gin.Context) {
	var req types.ConfigRequest
	if !bind(c, &req) {
		return
	}
	cfg, err := h.svc.UpdateConfig(c.Request.Context(), types.Local(c.Param("name")), req.Config)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.ConfigResult{Config: cfg})
}

// ExecuteMod runs a bundled mod on the active page
func (h *Handlers) ExecuteMod(c *gin.Context) {
	if err := h.svc.ExecuteLocalMod(c.Request.Context(), c.Param("name"), c.Query("force") == "true"); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusAccepted, nil)
}

// ReloadMods asks every ready page to register its bundled mods again
func (h *Handlers) ReloadMods(c *gin.Context) {
	if err := h.svc.ReloadLocalMods(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusAccepted, nil)
}
