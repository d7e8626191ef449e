package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "github.com/GriffinCanCode/modbridge/internal/api/http"
	"github.com/GriffinCanCode/modbridge/internal/coordinator"
	"github.com/GriffinCanCode/modbridge/internal/domain/registry"
	"github.com/GriffinCanCode/modbridge/internal/localmods"
	"github.com/GriffinCanCode/modbridge/internal/scripts"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/GriffinCanCode/modbridge/internal/store"
	"github.com/GriffinCanCode/modbridge/tests/helpers/testutil"
)

func startAPI(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	source := testutil.StaticScripts{"abc123": "game.x = 1;"}
	cache := scripts.NewCache(scripts.FetcherFunc(source.Lookup), st, nil, nil)
	reg := registry.NewManager(st, cache, testutil.NewStaticResolver(nil), nil, nil)
	coord := coordinator.New(coordinator.Config{AckTimeout: 100 * time.Millisecond}, reg, cache, st, nil, nil, nil)
	t.Cleanup(func() { coord.Close() })

	router := gin.New()
	apihttp.NewHandlers(coord).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, address string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	gs := newGlobalState(&out)
	root := newRootCommand(gs)
	root.SetArgs(append([]string{"--address", address}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScriptsCommands(t *testing.T) {
	address := startAPI(t)

	out, err := run(t, address, "scripts", "add", "abc123", "--name", "Demo", "--set", "speed=3")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Demo")
	assert.Contains(t, out, "speed:")

	_, err = run(t, address, "scripts", "toggle", "abc123", "off")
	require.NoError(t, err)

	out, err = run(t, address, "scripts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled: false")

	out, err = run(t, address, "scripts", "config", "abc123", "--set", "volume=low")
	require.NoError(t, err)
	assert.Contains(t, out, "volume: low")

	out, err = run(t, address, "scripts", "source", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "game.x = 1;\n", out)

	_, err = run(t, address, "scripts", "rm", "abc123")
	require.NoError(t, err)

	_, err = run(t, address, "scripts", "toggle", "abc123", "on")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLocaleCommands(t *testing.T) {
	address := startAPI(t)

	out, err := run(t, address, "locale", "set", "pt-br")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR\n", out)

	out, err = run(t, address, "locale", "get")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR\n", out)
}

func TestManifestGenerate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ui"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "speed.js"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "hud.js"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	out, err := run(t, "http://unused", "manifest", "generate", dir)
	require.NoError(t, err)

	m, err := localmods.ParseManifest([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"speed.js", "ui/hud.js"}, m.Names())
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "OFF": false, "true": true, "0": false, "enabled": true} {
		got, err := parseSwitch(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseSwitch("maybe")
	assert.ErrorIs(t, err, types.ErrInvalid)
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"speed=3", "muted=true", "name=fast mode", "empty="})
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg["speed"])
	assert.Equal(t, true, cfg["muted"])
	assert.Equal(t, "fast mode", cfg["name"])
	assert.Equal(t, "", cfg["empty"])

	_, err = parseConfig([]string{"novalue"})
	assert.ErrorIs(t, err, types.ErrInvalid)
}
