package http

import (
	"net/http"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// ListScripts lists remote scripts
func (h *Handlers) ListScripts(c *gin.Context) {
	scripts, err := h.svc.ActiveScripts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.ScriptsResult{Scripts: scripts})
}

// RegisterScript registers a remote script by hash
func (h *Handlers) RegisterScript(c *gin.Context) {
	var req types.RegisterScriptRequest
	if !bind(c, &req) {
		return
	}
	rec, err := h.svc.RegisterScript(c.Request.Context(), req.Hash, req.Name, req.Config)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, rec)
}

// ToggleScript enables or disables a remote script
func (h *Handlers) ToggleScript(c *gin.Context) {
	var req types.ToggleRequest
	if !bind(c, &req) {
		return
	}
	hash := c.Param("hash")
	if err := h.svc.ToggleScript(c.Request.Context(), hash, *req.Enabled); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"hash": hash, "enabled": *req.Enabled})
}

// ScriptConfig returns a remote script's config
func (h *Handlers) ScriptConfig(c *gin.Context) {
	cfg, err := h.svc.ModConfig(c.Request.Context(), types.Remote(c.Param("hash")))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.ConfigResult{Config: cfg})
}

// UpdateScriptConfig merges into a remote script's config
func (h *Handlers) UpdateScriptConfig(c *gin.Context) {
	var req types.ConfigRequest
	if !bind(c, &req) {
		return
	}
	cfg, err := h.svc.UpdateConfig(c.Request.Context(), types.Remote(c.Param("hash")), req.Config)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.ConfigResult{Config: cfg})
}

// ScriptSource returns a script body through the cache
func (h *Handlers) ScriptSource(c *gin.Context) {
	src, err := h.svc.Script(c.Request.Context(), c.Param("hash"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, protocol.GetScriptResult{ScriptContent: src})
}

// RemoveScript drops a remote script
func (h *Handlers) RemoveScript(c *gin.Context) {
	if err := h.svc.RemoveScript(c.Request.Context(), c.Param("hash")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// ReloadScripts pushes the remote registry to every ready page
func (h *Handlers) ReloadScripts(c *gin.Context) {
	if err := h.svc.ReloadScripts(c.Request.Context(), c.Query("force") == "true"); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusAccepted, nil)
}
