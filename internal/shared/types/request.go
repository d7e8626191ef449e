package types

// RegisterScriptRequest is the body of POST /scripts.
type RegisterScriptRequest struct {
	Hash   string `json:"hash" binding:"required"`
	Name   string `json:"name"`
	Config Config `json:"config"`
}

// ToggleRequest is the body of the enabled endpoints.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ConfigRequest is the body of the config endpoints.
type ConfigRequest struct {
	Config Config `json:"config" binding:"required"`
}

// LocaleRequest is the body of PUT /locale.
type LocaleRequest struct {
	Locale string `json:"locale" binding:"required"`
}

// TabInfo describes a page attached to the coordinator.
type TabInfo struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
	Ready  bool   `json:"ready"`
}
