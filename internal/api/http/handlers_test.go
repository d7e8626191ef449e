package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/coordinator"
	"github.com/GriffinCanCode/modbridge/internal/domain/registry"
	"github.com/GriffinCanCode/modbridge/internal/locale"
	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/scripts"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"github.com/GriffinCanCode/modbridge/tests/helpers/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(t *testing.T) (*gin.Engine, *registry.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	source := testutil.StaticScripts{"abc123": "console.log('demo')"}
	cache := scripts.NewCache(scripts.FetcherFunc(source.Lookup), st, nil, nil)
	resolver := testutil.NewStaticResolver(map[string]string{"Foo.js": "1", "Bar.js": "2"})
	reg := registry.NewManager(st, cache, resolver, nil, nil)
	c := coordinator.New(coordinator.Config{AckTimeout: 100 * time.Millisecond}, reg, cache, st, locale.NewCatalog("en"), nil, nil)
	t.Cleanup(func() { c.Close() })

	router := gin.New()
	NewHandlers(c).Register(router)
	return router, reg
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)

	code, env := do(t, router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"healthy","tabs":0,"ready":0}`, string(env.Data))
}

func TestScriptLifecycle(t *testing.T) {
	router, _ := newRouter(t)

	code, env := do(t, router, "POST", "/scripts", `{"hash":"abc123","name":"Demo","config":{"speed":1}}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var rec types.ScriptRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "Demo", rec.Name)
	assert.True(t, rec.Enabled)

	code, env = do(t, router, "GET", "/scripts", "")
	require.Equal(t, http.StatusOK, code)
	var list protocol.ScriptsResult
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Scripts, 1)

	code, _ = do(t, router, "PUT", "/scripts/abc123/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, router, "PATCH", "/scripts/abc123/config", `{"config":{"volume":"low"}}`)
	require.Equal(t, http.StatusOK, code)
	var cfg protocol.ConfigResult
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "low", cfg.Config["volume"])
	assert.EqualValues(t, 1, cfg.Config["speed"])

	code, env = do(t, router, "GET", "/scripts/abc123/config", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "low", cfg.Config["volume"])

	code, env = do(t, router, "GET", "/scripts/abc123/source", "")
	require.Equal(t, http.StatusOK, code)
	var src protocol.GetScriptResult
	require.NoError(t, json.Unmarshal(env.Data, &src))
	assert.Equal(t, "console.log('demo')", src.ScriptContent)

	code, _ = do(t, router, "DELETE", "/scripts/abc123", "")
	assert.Equal(t, http.StatusOK, code)

	_, env = do(t, router, "GET", "/scripts", "")
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Scripts)
}

func TestScriptErrorsMapToStatus(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unreachable hash", "POST", "/scripts", `{"hash":"nope"}`, http.StatusUnprocessableEntity},
		{"missing hash", "POST", "/scripts", `{"name":"x"}`, http.StatusBadRequest},
		{"malformed body", "POST", "/scripts", `{`, http.StatusBadRequest},
		{"toggle unknown", "PUT", "/scripts/nope/enabled", `{"enabled":true}`, http.StatusNotFound},
		{"toggle without flag", "PUT", "/scripts/abc123/enabled", `{}`, http.StatusBadRequest},
		{"config of unknown", "PATCH", "/scripts/nope/config", `{"config":{"a":1}}`, http.StatusNotFound},
		{"no page to reload", "POST", "/scripts/reload", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestLocalModRoutes(t *testing.T) {
	router, reg := newRouter(t)
	_, err := reg.RegisterLocalMods(context.Background(), testutil.Candidates("Foo.js", "Bar.js", "Ghost.js"))
	require.NoError(t, err)

	code, env := do(t, router, "GET", "/mods", "")
	require.Equal(t, http.StatusOK, code)
	var mods protocol.LocalModsResult
	require.NoError(t, json.Unmarshal(env.Data, &mods))
	require.Len(t, mods.Mods, 2)

	code, env = do(t, router, "PUT", "/mods/Bar.js/enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &mods))
	assert.False(t, mods.Mods[1].Enabled)

	code, env = do(t, router, "PATCH", "/mods/Foo.js/config", `{"config":{"volume":"high"}}`)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, router, "GET", "/mods/Foo.js/config", "")
	require.Equal(t, http.StatusOK, code)
	var cfg protocol.ConfigResult
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "high", cfg.Config["volume"])

	code, _ = do(t, router, "PATCH", "/mods/Ghost.js/config", `{"config":{"a":1}}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, router, "PUT", "/mods/Ghost.js/enabled", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, router, "POST", "/mods/Foo.js/execute?force=true", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, router, "POST", "/mods/reload", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLocaleRoutes(t *testing.T) {
	router, _ := newRouter(t)

	code, env := do(t, router, "GET", "/locale", "")
	require.Equal(t, http.StatusOK, code)
	var res protocol.LocaleResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "en", res.Locale)

	code, env = do(t, router, "PUT", "/locale", `{"locale":"pt-br"}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "pt-BR", res.Locale)

	code, _ = do(t, router, "PUT", "/locale", `{"locale":"!!"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, "GET", "/tabs", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", types.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", types.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("x: %w", types.ErrFetch), http.StatusUnprocessableEntity},
		{types.ErrTimeout, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
