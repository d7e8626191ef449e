package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/modbridge/internal/coordinator"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// Service is the coordinator surface the API needs.
type Service interface {
	Script(ctx context.Context, hash string) (string, error)
	ActiveScripts(ctx context.Context) ([]types.ScriptRecord, error)
	RegisterScript(ctx context.Context, hash, name string, config types.Config) (types.ScriptRecord, error)
	ToggleScript(ctx context.Context, hash string, enabled bool) error
	UpdateConfig(ctx context.Context, mod types.ModIdentifier, partial types.Config) (types.Config, error)
	ModConfig(ctx context.Context, mod types.ModIdentifier) (types.Config, error)
	RemoveScript(ctx context.Context, hash string) error
	ReloadScripts(ctx context.Context, force bool) error

	LocalMods(ctx context.Context) ([]types.LocalModRecord, error)
	ToggleLocalMod(ctx context.Context, name string, enabled bool) ([]types.LocalModRecord, error)
	LocalModConfig(ctx context.Context, name string) (types.Config, error)
	ExecuteLocalMod(ctx context.Context, name string, force bool) error
	ReloadLocalMods(ctx context.Context) error

	Locale(ctx context.Context) (protocol.LocaleResult, error)
	SetLocale(ctx context.Context, tag string) (protocol.LocaleResult, error)
	Tabs() []types.TabInfo
}

var _ Service = (*coordinator.Coordinator)(nil)

// Handlers contains all HTTP handlers
type Handlers struct {
	svc Service
}

// NewHandlers creates a new handler set
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	r.GET("/scripts", h.ListScripts)
	r.POST("/scripts", h.RegisterScript)
	r.POST("/scripts/reload", h.ReloadScripts)
	r.PUT("/scripts/:hash/enabled", h.ToggleScript)
	r.PATCH("/scripts/:hash/config", h.UpdateScriptConfig)
	r.GET("/scripts/:hash/config", h.ScriptConfig)
	r.GET("/scripts/:hash/source", h.ScriptSource)
	r.DELETE("/scripts/:hash", h.RemoveScript)

	r.GET("/mods", h.ListMods)
	r.POST("/mods/reload", h.ReloadMods)
	r.PUT("/mods/:name/enabled", h.ToggleMod)
	r.GET("/mods/:name/config", h.ModConfig)
	r.PATCH("/mods/:name/config", h.UpdateModConfig)
	r.POST("/mods/:name/execute", h.ExecuteMod)

	r.GET("/locale", h.Locale)
	r.PUT("/locale", h.SetLocale)

	r.GET("/tabs", h.Tabs)
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	tabs := h.svc.Tabs()
	ready := 0
	for _, t := range tabs {
		if t.Ready {
			ready++
		}
	}
	ok(c, http.StatusOK, gin.H{
		"status": "healthy",
		"tabs":   len(tabs),
		"ready":  ready,
	})
}

// Tabs lists attached pages
func (h *Handlers) Tabs(c *gin.Context) {
	ok(c, http.StatusOK, h.svc.Tabs())
}

// Locale returns the current locale and its messages
func (h *Handlers) Locale(c *gin.Context) {
	res, err := h.svc.Locale(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// SetLocale switches the locale for every page
func (h *Handlers) SetLocale(c *gin.Context) {
	var req types.LocaleRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.SetLocale(c.Request.Context(), req.Locale)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
}

// bind decodes a JSON body, answering 400 itself on failure.
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrFetch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
