package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/modbridge/internal/protocol"
	"github.com/GriffinCanCode/modbridge/internal/shared/types"
	"github.com/go-resty/resty/v2"
)

// envelope is the JSON shape of every API answer.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a failed API call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Is maps statuses back onto the shared error kinds.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == types.ErrNotFound
	case http.StatusBadRequest:
		return target == types.ErrInvalid
	case http.StatusUnprocessableEntity:
		return target == types.ErrFetch
	case http.StatusGatewayTimeout:
		return target == types.ErrTimeout
	}
	return false
}

// Client talks to a coordinator's REST API.
type Client struct {
	resty *resty.Client
}

// New creates a client for the API at address.
func New(address string) (*Client, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("api address %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api address %q: %w", address, types.ErrInvalid)
	}
	return &Client{
		resty: resty.New().
			SetBaseURL(strings.TrimRight(address, "/")).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "modctl/1.0"),
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.resty.R().SetContext(ctx).SetError(&envelope{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	var env envelope
	req.SetResult(&env)

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*envelope); ok && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// Health returns the coordinator's liveness summary.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.call(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Tabs lists attached pages.
func (c *Client) Tabs(ctx context.Context) ([]types.TabInfo, error) {
	var out []types.TabInfo
	err := c.call(ctx, http.MethodGet, "/tabs", nil, &out)
	return out, err
}

// Scripts lists registered remote scripts.
func (c *Client) Scripts(ctx context.Context) ([]types.ScriptRecord, error) {
	var out protocol.ScriptsResult
	err := c.call(ctx, http.MethodGet, "/scripts", nil, &out)
	return out.Scripts, err
}

// RegisterScript registers a remote script by hash.
func (c *Client) RegisterScript(ctx context.Context, hash, name string, config types.Config) (types.ScriptRecord, error) {
	var out types.ScriptRecord
	err := c.call(ctx, http.MethodPost, "/scripts",
		types.RegisterScriptRequest{Hash: hash, Name: name, Config: config}, &out)
	return out, err
}

// ToggleScript enables or disables a remote script.
func (c *Client) ToggleScript(ctx context.Context, hash string, enabled bool) error {
	return c.call(ctx, http.MethodPut, "/scripts/"+escape(hash)+"/enabled",
		types.ToggleRequest{Enabled: &enabled}, nil)
}

// ScriptConfig returns a remote script's config.
func (c *Client) ScriptConfig(ctx context.Context, hash string) (types.Config, error) {
	var out protocol.ConfigResult
	err := c.call(ctx, http.MethodGet, "/scripts/"+escape(hash)+"/config", nil, &out)
	return out.Config, err
}

// UpdateScriptConfig merges partial into a remote script's config.
func (c *Client) UpdateScriptConfig(ctx context.Context, hash string, partial types.Config) (types.Config, error) {
	var out protocol.ConfigResult
	err := c.call(ctx, http.MethodPatch, "/scripts/"+escape(hash)+"/config",
		types.ConfigRequest{Config: partial}, &out)
	return out.Config, err
}

// ScriptSource returns a script body.
func (c *Client) ScriptSource(ctx context.Context, hash string) (string, error) {
	var out protocol.GetScriptResult
	err := c.call(ctx, http.MethodGet, "/scripts/"+escape(hash)+"/source", nil, &out)
	return out.ScriptContent, err
}

// RemoveScript drops a remote script.
func (c *Client) RemoveScript(ctx context.Context, hash string) error {
	return c.call(ctx, http.MethodDelete, "/scripts/"+escape(hash), nil, nil)
}

// ReloadScripts pushes the remote registry to every ready page.
func (c *Client) ReloadScripts(ctx context.Context, force bool) error {
	path := "/scripts/reload"
	if force {
		path += "?force=true"
	}
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

// Mods lists bundled mods in registry order.
func (c *Client) Mods(ctx context.Context) ([]types.LocalModRecord, error) {
	var out protocol.LocalModsResult
	err := c.call(ctx, http.MethodGet, "/mods", nil, &out)
	return out.Mods, err
}

// ToggleMod enables or disables a bundled mod.
func (c *Client) ToggleMod(ctx context.Context, name string, enabled bool) ([]types.LocalModRecord, error) {
	var out protocol.LocalModsResult
	err := c.call(ctx, http.MethodPut, "/mods/"+escape(name)+"/enabled",
		types.ToggleRequest{Enabled: &enabled}, &out)
	return out.Mods, err
}

// ModConfig returns a bundled mod's config.
func (c *Client) ModConfig(ctx context.Context, name string) (types.Config, error) {
	var out protocol.ConfigResult
	err := c.call(ctx, http.MethodGet, "/mods/"+escape(name)+"/config", nil, &out)
	return out.Config, err
}

// UpdateModConfig merges partial into a bundled mod's config.
func (c *Client) UpdateModConfig(ctx context.Context, name string, partial types.Config) (types.Config, error) {
	var out protocol.ConfigResult
	err := c.call(ctx, http.MethodPatch, "/mods/"+escape(name)+"/config",
		types.ConfigRequest{Config: partial}, &out)
	return out.Config, err
}

// ExecuteMod runs a bundled mod on the active page.
func (c *Client) ExecuteMod(ctx context.Context, name string, force bool) error {
	path := "/mods/" + escape(name) + "/execute"
	if force {
		path += "?force=true"
	}
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

// ReloadMods asks every ready page to register its bundled mods again.
func (c *Client) ReloadMods(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/mods/reload", nil, nil)
}

// Locale returns the current locale.
func (c *Client) Locale(ctx context.Context) (protocol.LocaleResult, error) {
	var out protocol.LocaleResult
	err := c.call(ctx, http.MethodGet, "/locale", nil, &out)
	return out, err
}

// SetLocale switches the locale for every page.
func (c *Client) SetLocale(ctx context.Context, tag string) (protocol.LocaleResult, error) {
	var out protocol.LocaleResult
	err := c.call(ctx, http.MethodPut, "/locale", types.LocaleRequest{Locale: tag}, &out)
	return out, err
}
